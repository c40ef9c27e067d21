package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lpsim/internal/apperr"
	"lpsim/internal/config"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "lpsim",
		Short:        "Concentrated liquidity position fee and APR simulator",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("subgraph-url", "", "GraphQL subgraph URL for tick snapshots")
	flags.String("blocks-subgraph-url", "", "GraphQL blocks subgraph URL for block timestamps")
	flags.String("rpc", "", "chain RPC URL, used for block timestamps without a blocks subgraph")
	flags.Int("max-missing-ticks", config.DefaultMaxMissingTicks, "maximum tick snapshots backfilled per request")
	flags.Int("max-attempts", config.DefaultMaxAttempts, "maximum attempts per indexer request")
	flags.Duration("retry-backoff", config.DefaultRetryBackoff, "initial retry backoff")
	flags.Duration("min-request-interval", config.DefaultMinRequestInterval, "minimum interval between indexer requests")
	flags.Duration("http-timeout", config.DefaultHTTPTimeout, "indexer HTTP timeout")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newHistoricalCmd(),
		newExactCmd(),
		newBackfillCmd(),
		newRegisterCmd(),
		newSnapshotCmd(),
		newMigrateCmd(),
	)
	return root
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	return config.Load(cfgFile, cmd.Root().PersistentFlags())
}

// exitCode maps an error onto the process exit status.
func exitCode(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInput:
		return 2
	case apperr.KindNotFound:
		return 3
	case apperr.KindUnprocessable:
		return 4
	case apperr.KindExternal:
		return 5
	default:
		return 1
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func elapsed(start time.Time) zap.Field {
	return zap.Duration("elapsed", time.Since(start))
}
