package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultMaxMissingTicks    = 4
	DefaultMaxAttempts        = 4
	DefaultRetryBackoff       = 250 * time.Millisecond
	DefaultMinRequestInterval = 200 * time.Millisecond
	DefaultHTTPTimeout        = 20 * time.Second
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	PostgresDSN        string
	SubgraphURL        string
	BlocksSubgraphURL  string
	RPCURL             string
	MaxMissingTicks    int
	MaxAttempts        int
	RetryBackoff       time.Duration
	MinRequestInterval time.Duration
	HTTPTimeout        time.Duration
	LogLevel           string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LPSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("max-missing-ticks", DefaultMaxMissingTicks)
	v.SetDefault("max-attempts", DefaultMaxAttempts)
	v.SetDefault("retry-backoff", DefaultRetryBackoff)
	v.SetDefault("min-request-interval", DefaultMinRequestInterval)
	v.SetDefault("http-timeout", DefaultHTTPTimeout)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		PostgresDSN:        v.GetString("pg-dsn"),
		SubgraphURL:        strings.TrimSpace(v.GetString("subgraph-url")),
		BlocksSubgraphURL:  strings.TrimSpace(v.GetString("blocks-subgraph-url")),
		RPCURL:             strings.TrimSpace(v.GetString("rpc")),
		MaxMissingTicks:    v.GetInt("max-missing-ticks"),
		MaxAttempts:        v.GetInt("max-attempts"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		MinRequestInterval: v.GetDuration("min-request-interval"),
		HTTPTimeout:        v.GetDuration("http-timeout"),
		LogLevel:           v.GetString("log-level"),
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.MaxMissingTicks < 0 {
		return fmt.Errorf("max-missing-ticks must be >= 0")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max-attempts must be >= 1")
	}
	if c.RetryBackoff < 0 || c.MinRequestInterval < 0 {
		return fmt.Errorf("retry-backoff and min-request-interval must be >= 0")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http-timeout must be > 0")
	}
	return nil
}
