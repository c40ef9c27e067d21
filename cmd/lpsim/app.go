package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpsim/internal/backfill"
	"lpsim/internal/chain"
	"lpsim/internal/config"
	"lpsim/internal/dex"
	"lpsim/internal/indexer"
	"lpsim/internal/simulate"
	"lpsim/internal/storage/postgres"
)

// app holds the wired services of one command invocation.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *postgres.Store
	backfill *backfill.Service
	sim      *simulate.Service
	chain    *chain.Client
	closers  []func()
}

// newApp loads config and wires storage. With withIndexer the backfill is
// wired when a tick source is configured.
func newApp(ctx context.Context, cmd *cobra.Command, withIndexer bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	if cfg.PostgresDSN == "" {
		a.Close()
		return nil, fmt.Errorf("pg-dsn is required")
	}
	store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	if withIndexer {
		if err := a.wireBackfill(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	var ensurer simulate.TickEnsurer
	if a.backfill != nil {
		ensurer = a.backfill
	}
	a.sim = simulate.NewService(store, ensurer, logger.Named("simulate"))
	return a, nil
}

// wireBackfill picks the tick source: the subgraph when configured, else an
// archive node through rpc. Block timestamps come from the blocks subgraph
// or rpc.
func (a *app) wireBackfill(ctx context.Context) error {
	cfg := a.cfg
	var (
		ticks  backfill.TickFetcher
		blocks backfill.BlockFetcher
	)

	if cfg.SubgraphURL != "" {
		opts := []indexer.Option{
			indexer.WithTimeout(cfg.HTTPTimeout),
			indexer.WithMaxAttempts(cfg.MaxAttempts),
			indexer.WithBackoff(cfg.RetryBackoff),
			indexer.WithMinInterval(cfg.MinRequestInterval),
			indexer.WithLogger(a.logger.Named("indexer")),
		}
		if cfg.BlocksSubgraphURL != "" {
			opts = append(opts, indexer.WithBlocksEndpoint(cfg.BlocksSubgraphURL))
		}
		client, err := indexer.NewClient(cfg.SubgraphURL, opts...)
		if err != nil {
			return err
		}
		ticks = client
		if cfg.BlocksSubgraphURL != "" {
			blocks = client
		}
	}

	if cfg.RPCURL != "" {
		chainClient, err := a.chainClient(ctx)
		if err != nil {
			return err
		}
		if ticks == nil {
			ticks = dex.NewTickSource(dex.NewReader(chainClient, a.logger.Named("dex")))
		}
		if blocks == nil {
			blocks = chainClient
		}
	}

	if ticks == nil {
		a.logger.Info("no subgraph or rpc configured, tick snapshots are not backfilled")
		return nil
	}
	if blocks == nil {
		a.logger.Info("no block metadata source configured, block timestamps are not backfilled")
	}

	a.backfill = backfill.NewService(a.store, ticks, blocks,
		backfill.WithMaxMissing(cfg.MaxMissingTicks),
		backfill.WithLogger(a.logger.Named("backfill")),
	)
	return nil
}

// chainClient dials rpc once per invocation.
func (a *app) chainClient(ctx context.Context) (*chain.Client, error) {
	if a.chain != nil {
		return a.chain, nil
	}
	if a.cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc is required")
	}
	client, err := chain.NewClient(ctx, a.cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.chain = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
