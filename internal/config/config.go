// Package config loads hoard's settings from file, environment and flags
// through viper and keeps them current while serve is running.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jmurray2011/hoard/internal/logging"
	"github.com/jmurray2011/hoard/internal/output"
)

// EnvPrefix is prepended to every environment override, e.g. HOARD_CACHE_TTL.
const EnvPrefix = "HOARD"

// FileName is the config file name searched for, without extension.
const FileName = ".hoard"

// Config is the typed view of hoard's settings.
type Config struct {
	Profile  string      `mapstructure:"profile"`
	Region   string      `mapstructure:"region"`
	Output   string      `mapstructure:"output"`
	LogLevel string      `mapstructure:"log_level"`
	Cache    CacheConfig `mapstructure:"cache"`
	Serve    ServeConfig `mapstructure:"serve"`
}

// CacheConfig controls the request cache.
type CacheConfig struct {
	// Capacity is the maximum number of cached responses. -1 is unbounded
	// and 0 disables caching.
	Capacity int `mapstructure:"capacity"`

	// TTL is how long a cached response is served. Zero keeps responses
	// until they are evicted.
	TTL time.Duration `mapstructure:"ttl"`

	// KeyResolution is the granularity query time bounds are truncated to
	// before they become part of a cache key. Negative disables truncation.
	KeyResolution time.Duration `mapstructure:"key_resolution"`
}

// ServeConfig controls the HTTP service and the cache commands that talk to it.
type ServeConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// TokenHash is a bcrypt hash. When set, cache mutations require a
	// matching bearer token.
	TokenHash string `mapstructure:"token_hash"`

	// Token is the bearer token the cache commands send.
	Token string `mapstructure:"token"`

	// Allow restricts clients to these CIDRs or addresses. Empty allows all.
	Allow []string `mapstructure:"allow"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		Region:   "us-east-1",
		Output:   "text",
		LogLevel: "info",
		Cache: CacheConfig{
			Capacity:      1024,
			TTL:           5 * time.Minute,
			KeyResolution: time.Minute,
		},
		Serve: ServeConfig{
			Addr:            "127.0.0.1:8787",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// SetDefaults registers the built-in settings on v. Every key is registered
// so that environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("profile", d.Profile)
	v.SetDefault("region", d.Region)
	v.SetDefault("output", d.Output)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("cache.capacity", d.Cache.Capacity)
	v.SetDefault("cache.ttl", d.Cache.TTL.String())
	v.SetDefault("cache.key_resolution", d.Cache.KeyResolution.String())

	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.shutdown_timeout", d.Serve.ShutdownTimeout.String())
	v.SetDefault("serve.token_hash", "")
	v.SetDefault("serve.token", "")
	v.SetDefault("serve.allow", []string{})
}

// Setup points v at the config file and the environment. An explicit
// cfgFile wins; otherwise ~/.hoard.yaml, ~/.hoard/.hoard.yaml and
// ./.hoard.yaml are searched in that order.
func Setup(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".hoard"))
		}
		v.AddConfigPath(".")
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
}

// DefaultPath is where init writes a new config file.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, FileName+".yaml"), nil
}

// Read reads the config file if there is one. A missing file is not an error.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load unmarshals and validates the settings currently held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Region == "" {
		problems = append(problems, "region cannot be empty")
	}
	if _, err := output.ParseFormat(c.Output); err != nil {
		problems = append(problems, fmt.Sprintf("output: %v", err))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log_level: %v", err))
	}

	if c.Cache.Capacity < -1 {
		problems = append(problems, fmt.Sprintf("cache.capacity must be -1 (unbounded), 0 (disabled) or positive (got: %d)", c.Cache.Capacity))
	}
	if c.Cache.TTL < 0 {
		problems = append(problems, "cache.ttl must be non-negative")
	}

	if c.Serve.Addr == "" {
		problems = append(problems, "serve.addr cannot be empty")
	} else if _, _, err := net.SplitHostPort(c.Serve.Addr); err != nil {
		problems = append(problems, fmt.Sprintf("serve.addr: %v", err))
	}
	if c.Serve.ShutdownTimeout < 0 {
		problems = append(problems, "serve.shutdown_timeout must be non-negative")
	}
	for _, entry := range c.Serve.Allow {
		if _, err := ParseAllowEntry(entry); err != nil {
			problems = append(problems, fmt.Sprintf("serve.allow: %v", err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// ParseAllowEntry parses a CIDR or a bare address into a network.
func ParseAllowEntry(s string) (*net.IPNet, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q", s)
		}
		return n, nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("invalid address %q", s)
	}
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// Settings returns the effective settings as a nested map suitable for
// display. Secrets are masked.
func Settings(v *viper.Viper) map[string]any {
	all := v.AllSettings()
	if serve, ok := all["serve"].(map[string]any); ok {
		for _, k := range []string{"token", "token_hash"} {
			if s, _ := serve[k].(string); s != "" {
				serve[k] = "********"
			}
		}
	}
	return all
}
