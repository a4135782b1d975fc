package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jmurray2011/hoard/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var (
	initForce bool
	initToken bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize hoard configuration",
	Long: `Create a config file holding the built-in defaults.

The file is written to --config if given, otherwise ~/.hoard.yaml
(%USERPROFILE%\.hoard.yaml on Windows).

Examples:
  # Create default config (won't overwrite existing)
  hoard init

  # Also generate a token for cache administration
  hoard init --token

  # Force overwrite existing config
  hoard init --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
	initCmd.Flags().BoolVar(&initToken, "token", false, "Generate a bearer token for cache administration")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}

	settings := initSettings(config.Defaults())
	token := ""
	if initToken {
		var err error
		if token, err = generateToken(); err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash token: %w", err)
		}
		serve := settings["serve"].(map[string]any)
		serve["token_hash"] = string(hash)
		serve["token"] = token
	}

	out := cmd.OutOrStdout()
	written, err := writeConfigFile(out, path, settings, initForce)
	if err != nil {
		return err
	}
	if !written {
		return nil
	}

	fmt.Fprintln(out, "Initialized hoard configuration:")
	fmt.Fprintf(out, "  Config: %s\n", path)
	if token != "" {
		fmt.Fprintf(out, "  Token:  %s\n", token)
	}
	fmt.Fprintf(out, "\nEdit %s to customize your settings.\n", path)
	return nil
}

// initSettings lays cfg out with the same keys the config file uses.
func initSettings(cfg config.Config) map[string]any {
	settings := map[string]any{
		"region":    cfg.Region,
		"output":    cfg.Output,
		"log_level": cfg.LogLevel,
		"cache": map[string]any{
			"capacity":       cfg.Cache.Capacity,
			"ttl":            cfg.Cache.TTL.String(),
			"key_resolution": cfg.Cache.KeyResolution.String(),
		},
		"serve": map[string]any{
			"addr":             cfg.Serve.Addr,
			"shutdown_timeout": cfg.Serve.ShutdownTimeout.String(),
			"allow":            append([]string{}, cfg.Serve.Allow...),
		},
	}
	if cfg.Profile != "" {
		settings["profile"] = cfg.Profile
	}
	return settings
}

const configHeader = `# hoard configuration
#
# cache.capacity: -1 unbounded, 0 disabled
# serve.allow:    CIDRs or addresses allowed to reach 'hoard serve'
# Every key can be overridden from the environment, e.g. HOARD_CACHE_TTL=30s.

`

// writeConfigFile writes settings to path unless it exists and force is
// unset. It reports whether the file was written.
func writeConfigFile(out io.Writer, path string, settings map[string]any, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "  %s already exists (use --force to overwrite)\n", path)
			return false, nil
		}
	}

	body, err := yaml.Marshal(settings)
	if err != nil {
		return false, fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), body...), 0600); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
