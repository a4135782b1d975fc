package cmd

import (
	"github.com/spf13/cobra"
)

// groupCompletionLimit caps how many log groups are offered per completion.
const groupCompletionLimit = 50

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for hoard.

To load completions:

Bash:
  $ source <(hoard completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ hoard completion bash > /etc/bash_completion.d/hoard
  # macOS:
  $ hoard completion bash > $(brew --prefix)/etc/bash_completion.d/hoard

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ hoard completion zsh > "${fpath[1]}/_hoard"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ hoard completion fish | source

  # To load completions for each session, execute once:
  $ hoard completion fish > ~/.config/fish/completions/hoard.fish

PowerShell:
  PS> hoard completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> hoard completion powershell > hoard.ps1
  # and source this file from your PowerShell profile.

Log group arguments of query, streams and tail complete from CloudWatch.
Lookups go through the request cache like any other read.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
	for _, c := range []*cobra.Command{queryCmd, streamsCmd, tailCmd} {
		c.ValidArgsFunction = completeLogGroups
	}
}

// completeLogGroups offers log group names starting with toComplete. Errors
// produce no suggestions rather than a message in the shell.
func completeLogGroups(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	app, err := GetApp(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	logs, err := app.Logs(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	groups, err := logs.ListLogGroups(cmd.Context(), toComplete, groupCompletionLimit)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
