package cmd

import (
	"github.com/spf13/cobra"
)

var (
	streamsPrefix string
	streamsLimit  int
)

var streamsCmd = &cobra.Command{
	Use:   "streams <log-group>",
	Short: "List log streams in a log group",
	Long: `List the most recently written log streams in a CloudWatch log group.

Examples:
  # List streams
  hoard streams /app/api

  # Only streams whose name starts with a prefix
  hoard streams /app/api --prefix 2025/06/01

  # Limit results
  hoard streams /app/api -l 50`,
	Args: cobra.ExactArgs(1),
	RunE: runStreams,
}

func init() {
	rootCmd.AddCommand(streamsCmd)

	streamsCmd.Flags().StringVar(&streamsPrefix, "prefix", "", "Filter streams by name prefix")
	streamsCmd.Flags().IntVarP(&streamsLimit, "limit", "l", 20, "Max streams to return")
}

func runStreams(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	logs, err := app.Logs(ctx)
	if err != nil {
		return err
	}

	app.Render.Status("Listing streams in %s...", args[0])
	streams, err := logs.ListStreams(ctx, args[0], streamsPrefix, streamsLimit)
	if err != nil {
		return groupError(ctx, logs, args[0], err)
	}

	return app.Formatter(app.Out()).FormatStreams(streams)
}
