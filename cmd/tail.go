package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/jmurray2011/hoard/internal/cloudwatch"

	"github.com/spf13/cobra"
)

var (
	tailFilter   string
	tailInterval int
)

var tailCmd = &cobra.Command{
	Use:   "tail <log-group>",
	Short: "Tail logs in real-time",
	Long: `Follow a log group in real-time, similar to 'tail -f'.

Tailing always reads fresh data and never goes through the request cache.

Examples:
  # Tail a log group
  hoard tail /app/api

  # Tail with a filter
  hoard tail /app/api -f "error|exception"

  # Faster polling (every second)
  hoard tail /app/api --interval 1`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().StringVarP(&tailFilter, "filter", "f", "", "Filter pattern for messages")
	tailCmd.Flags().IntVar(&tailInterval, "interval", 2, "Polling interval in seconds")
}

func runTail(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}
	group := args[0]

	if tailInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	var match *regexp.Regexp
	if tailFilter != "" {
		match, err = regexp.Compile("(?i)" + tailFilter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle Ctrl+C gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			app.Render.Info("\nStopping tail...")
			cancel()
		case <-ctx.Done():
		}
	}()

	reader, err := app.Tailer(ctx)
	if err != nil {
		return err
	}

	app.Render.Status("Tailing %s (%s, Ctrl+C to stop)...", group, app.describeTarget())
	app.Render.Newline()

	return streamTail(ctx, app, reader, cloudwatch.TailOptions{
		LogGroup:     group,
		Filter:       tailFilter,
		Match:        match,
		PollInterval: time.Duration(tailInterval) * time.Second,
		Logger:       app.Log,
	})
}

// streamTail prints events until the tail stops.
func streamTail(ctx context.Context, app *App, reader cloudwatch.EventFilterer, opts cloudwatch.TailOptions) error {
	formatter := app.Formatter(app.Out())
	if opts.Filter != "" {
		formatter.WithHighlight(opts.Filter)
	}

	for event := range cloudwatch.Tail(ctx, reader, opts) {
		if err := formatter.FormatTailEvent(event); err != nil {
			return err
		}
	}
	return nil
}
