package cmd

import (
	"fmt"

	"github.com/jmurray2011/hoard/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged settings as YAML",
	Long: `Print the settings hoard will use after merging defaults, the config
file, environment variables and flags. Tokens are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		if _, err := config.Load(v); err != nil {
			return err
		}
		out, err := yaml.Marshal(config.Settings(v))
		if err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintln(cmd.OutOrStdout(), used)
			return nil
		}
		path, err := config.DefaultPath()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "no config file loaded (run 'hoard init' to create %s)\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd)
}
