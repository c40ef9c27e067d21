package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpsim/internal/apperr"
	"lpsim/internal/model"
)

type backfillReport struct {
	Pool    model.Pool `json:"pool"`
	Blocks  []uint64   `json:"blocks"`
	Ticks   []int32    `json:"ticks"`
	Fetched int        `json:"fetched"`
}

func newBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Ensure tick snapshots exist for every block and tick pair",
		RunE:  runBackfill,
	}
	addPoolFlags(cmd.Flags())
	cmd.Flags().Int64Slice("block", nil, "block numbers (comma-separated)")
	cmd.Flags().Int32Slice("tick", nil, "tick indexes (comma-separated)")
	return cmd
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ref, err := poolRefFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	rawBlocks, _ := cmd.Flags().GetInt64Slice("block")
	ticks, _ := cmd.Flags().GetInt32Slice("tick")
	if len(rawBlocks) == 0 || len(ticks) == 0 {
		return apperr.Input("block", "at least one block and one tick are required")
	}
	blocks := make([]uint64, len(rawBlocks))
	for i, b := range rawBlocks {
		if b <= 0 {
			return apperr.Input("block", "invalid block number %d", b)
		}
		blocks[i] = uint64(b)
	}

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.backfill == nil {
		return fmt.Errorf("subgraph-url or rpc is required")
	}

	pool, err := a.store.ResolvePool(ctx, ref)
	if err != nil {
		return err
	}
	missing, err := a.backfill.GetMissing(ctx, pool, blocks, ticks)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := a.backfill.Ensure(ctx, pool, blocks, ticks); err != nil {
		logFailure(a.logger, "backfill failed", err)
		return err
	}
	a.logger.Info("backfill done",
		zap.String("pool", pool.Address),
		zap.Int("fetched", len(missing)),
		elapsed(start),
	)
	return writeJSON(cmd.OutOrStdout(), backfillReport{
		Pool:    pool,
		Blocks:  blocks,
		Ticks:   ticks,
		Fetched: len(missing),
	})
}
