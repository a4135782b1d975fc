package cmd

import (
	"fmt"
	"os"

	"github.com/jmurray2011/hoard/internal/config"
	"github.com/jmurray2011/hoard/internal/logging"
	"github.com/jmurray2011/hoard/internal/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	profile      string
	region       string
	outputFormat string
	cfgFile      string
	verbose      bool
	noColor      bool
	quiet        bool

	// render is the global renderer for all output
	render *ui.Renderer
)

var rootCmd = &cobra.Command{
	Use:   "hoard",
	Short: "Cache CloudWatch reads so you only pay for them once",
	Long: `hoard - keeps what it has already fetched.

A CLI and small HTTP service that puts a bounded LRU request cache in front
of CloudWatch Logs and CloudWatch Metrics. Repeated queries, group listings
and metric reads are answered from memory until they expire or are evicted.

Configuration:
  Run 'hoard init' to create ~/.hoard.yaml:

    region: us-east-1
    output: text        # text, json, csv
    log_level: info

    cache:
      capacity: 1024    # -1 unbounded, 0 disabled
      ttl: 5m
      key_resolution: 1m

    serve:
      addr: 127.0.0.1:8787

  Every key can be overridden from the environment, e.g. HOARD_CACHE_TTL=30s.

Examples:
  # Query a log group
  hoard query /app/api -s 2h -f "timeout"

  # Watch a query; refreshes inside the key resolution are cache hits
  hoard query /app/api -s 15m -f error --watch 10

  # Metric statistics
  hoard metrics -n AWS/Lambda -m Errors -d FunctionName=checkout -s 24h

  # Share one cache between many clients
  hoard serve
  hoard cache stats`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersion sets the version string for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

func init() {
	cobra.OnInitialize(initConfig, initRenderer, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.hoard.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "AWS profile")
	rootCmd.PersistentFlags().StringVarP(&region, "region", "r", "", "AWS region")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json, csv")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress status messages")

	_ = viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	_ = viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
}

func initConfig() {
	v := viper.GetViper()
	config.Setup(v, cfgFile)
	if err := config.Read(v); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// initRenderer initializes the global renderer with current settings.
func initRenderer() {
	render = ui.NewRendererWithOptions(
		ui.WithNoColor(noColor || os.Getenv("NO_COLOR") != ""),
		ui.WithQuiet(quiet),
		ui.WithVerbose(verbose),
	)
}

// initLogging applies log_level to the default logger; --verbose forces debug.
func initLogging() {
	level, err := logging.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if verbose {
		level = logging.LevelDebug
	}
	logging.Default().SetLevel(level)
}
