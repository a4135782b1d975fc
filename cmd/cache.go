package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	herrors "github.com/jmurray2011/hoard/internal/errors"
	"github.com/jmurray2011/hoard/internal/server"
	"github.com/jmurray2011/hoard/pkg/timeutil"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	cacheAddr  string
	cacheToken string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the cache of a running hoard server",
	Long: `Talk to the cache endpoints of 'hoard serve'.

The server address defaults to serve.addr and the token to serve.token.

Examples:
  hoard cache stats
  hoard cache keys
  hoard cache resize 256
  hoard cache ttl 10m
  hoard cache evict logs.query:3f2a...
  hoard cache purge --addr cache.internal:8787 --token $HOARD_TOKEN`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := GetApp(cmd)
		if err != nil {
			return err
		}
		client := newCacheClient(app)
		stats, err := client.Stats(cmd.Context())
		if err != nil {
			return clientError(client, err)
		}
		return app.Formatter(app.Out()).FormatCacheStats(stats)
	},
}

var cacheKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List cached keys, least recently used first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := GetApp(cmd)
		if err != nil {
			return err
		}
		client := newCacheClient(app)
		keys, err := client.Keys(cmd.Context())
		if err != nil {
			return clientError(client, err)
		}
		if len(keys) == 0 {
			app.Render.Info("Cache is empty.")
			return nil
		}
		for _, k := range keys {
			fmt.Fprintln(app.Out(), k)
		}
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop every cached response",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := GetApp(cmd)
		if err != nil {
			return err
		}
		client := newCacheClient(app)
		n, err := client.Purge(cmd.Context())
		if err != nil {
			return clientError(client, err)
		}
		app.Render.Success("Purged %d cached responses", n)
		return nil
	},
}

var cacheResizeCmd = &cobra.Command{
	Use:   "resize <capacity>",
	Short: "Change the cache capacity (-1 unbounded, 0 disabled)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		capacity, err := strconv.Atoi(args[0])
		if err != nil || capacity < -1 {
			return fmt.Errorf("invalid capacity %q (use -1, 0 or a positive number)", args[0])
		}
		app, err := GetApp(cmd)
		if err != nil {
			return err
		}
		client := newCacheClient(app)
		evicted, err := client.Resize(cmd.Context(), capacity)
		if err != nil {
			return clientError(client, err)
		}
		app.Render.Success("Capacity set to %s, %d evicted", describeCapacity(capacity), evicted)
		return nil
	},
}

var cacheTTLCmd = &cobra.Command{
	Use:   "ttl <duration>",
	Short: "Change how long responses stay valid (0 never expires)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, err := timeutil.ParseDuration(args[0])
		if err != nil || ttl < 0 {
			return fmt.Errorf("invalid ttl %q (use e.g. 30s, 5m, 1h)", args[0])
		}
		app, err := GetApp(cmd)
		if err != nil {
			return err
		}
		client := newCacheClient(app)
		if err := client.SetTTL(cmd.Context(), ttl); err != nil {
			return clientError(client, err)
		}
		app.Render.Success("TTL set to %s", ttl)
		return nil
	},
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict <key>",
	Short: "Remove one cached response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := GetApp(cmd)
		if err != nil {
			return err
		}
		client := newCacheClient(app)
		if err := client.Evict(cmd.Context(), args[0]); err != nil {
			return clientError(client, err)
		}
		app.Render.Success("Evicted %s", args[0])
		return nil
	},
}

var cacheHashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Print a bcrypt hash for serve.token_hash",
	Long: `Hash a bearer token for serve.token_hash. Without an argument a random
token is generated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := ""
		if len(args) == 1 {
			token = args[0]
		} else {
			var err error
			if token, err = generateToken(); err != nil {
				return err
			}
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash token: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "token: %s\n", token)
		fmt.Fprintf(out, "hash:  %s\n", hash)
		fmt.Fprintln(out, "\nAdd this to your config:")
		fmt.Fprintln(out, "serve:")
		fmt.Fprintf(out, "  token_hash: %q\n", string(hash))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheKeysCmd, cachePurgeCmd, cacheResizeCmd, cacheTTLCmd, cacheEvictCmd, cacheHashTokenCmd)

	cacheCmd.PersistentFlags().StringVar(&cacheAddr, "addr", "", "Server address (default serve.addr)")
	cacheCmd.PersistentFlags().StringVar(&cacheToken, "token", "", "Bearer token (default serve.token)")
}

func newCacheClient(app *App) *server.Client {
	addr := cacheAddr
	if addr == "" {
		addr = app.Config.Serve.Addr
	}
	token := cacheToken
	if token == "" {
		token = app.Config.Serve.Token
	}
	return server.NewClient(addr, token)
}

// clientError turns transport failures into a hint to start the server.
func clientError(client *server.Client, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return herrors.ServerUnreachableError(client.Base(), err)
	}
	var apiErr *server.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return fmt.Errorf("%w (pass --token or set serve.token)", err)
	}
	return err
}

func describeCapacity(n int) string {
	switch {
	case n < 0:
		return "unbounded"
	case n == 0:
		return "0 (disabled)"
	}
	return strconv.Itoa(n)
}

// generateToken returns 32 random bytes, hex encoded.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
