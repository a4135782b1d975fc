package cmd

import (
	"github.com/spf13/cobra"
)

var (
	groupsPrefix string
	groupsLimit  int
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List available log groups",
	Long: `List CloudWatch log groups in the account.

Examples:
  # List all log groups
  hoard groups

  # Filter by prefix
  hoard groups --prefix "/aws/lambda"

  # Output as JSON
  hoard groups -o json`,
	RunE: runGroups,
}

func init() {
	rootCmd.AddCommand(groupsCmd)

	groupsCmd.Flags().StringVar(&groupsPrefix, "prefix", "", "Filter log groups by prefix")
	groupsCmd.Flags().IntVarP(&groupsLimit, "limit", "l", 50, "Max log groups to return")
}

func runGroups(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	logs, err := app.Logs(ctx)
	if err != nil {
		return err
	}

	groups, err := logs.ListLogGroups(ctx, groupsPrefix, groupsLimit)
	if err != nil {
		return err
	}

	return app.Formatter(app.Out()).FormatLogGroups(groups)
}
