package cmd

import (
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record <ptr>",
	Short: "Show the full log record behind a query result",
	Long: `Fetch every field of a single log event by the @ptr value that query
results carry. Records are cached like any other read.

Examples:
  # Pointers are shown under each result in text output
  hoard query /app/api -f "panic" -o json | jq -r '.[0].ptr'
  hoard record CmAKJwojMDEyMzQ1Njc4OTAxOi9hcHAvYXBp...`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	logs, err := app.Logs(ctx)
	if err != nil {
		return err
	}

	rec, err := logs.GetLogRecord(ctx, args[0])
	if err != nil {
		return err
	}

	return app.Formatter(app.Out()).FormatRecord(rec)
}
