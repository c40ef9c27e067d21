package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpsim/internal/apperr"
	"lpsim/internal/dex"
	"lpsim/internal/model"
)

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Read a pool's configuration from chain and store it",
		RunE:  runRegister,
	}
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("dex", "uniswap_v3", "dex id")
	return cmd
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Read a pool's state at a block from chain and store it",
		RunE:  runSnapshot,
	}
	addPoolFlags(cmd.Flags())
	cmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	return cmd
}

func runRegister(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	raw, _ := cmd.Flags().GetString("pool")
	address, err := model.NormalizeAddress(raw)
	if err != nil {
		return apperr.Input("pool", "%v", err)
	}
	dexID, _ := cmd.Flags().GetString("dex")
	dexID = strings.TrimSpace(dexID)
	if dexID == "" {
		return apperr.Input("dex", "dex id is required")
	}

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	chainClient, err := a.chainClient(ctx)
	if err != nil {
		return err
	}
	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return &apperr.ExternalFetchError{Op: "eth_chainId", Err: err}
	}

	reader := dex.NewReader(chainClient, a.logger.Named("dex"))
	pool, err := reader.Pool(ctx, chainID.Uint64(), dexID, common.HexToAddress(address))
	if err != nil {
		return &apperr.ExternalFetchError{Op: "read pool", Err: err}
	}
	pools, err := a.store.UpsertPools(ctx, []model.Pool{pool})
	if err != nil {
		return fmt.Errorf("store pool: %w", err)
	}
	a.logger.Info("pool registered",
		zap.Int64("id", pools[0].ID),
		zap.String("pool", pools[0].Address),
		zap.Uint64("chain_id", pools[0].ChainID),
	)
	return writeJSON(cmd.OutOrStdout(), pools[0])
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ref, err := poolRefFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	block, _ := cmd.Flags().GetUint64("block")

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	pool, err := a.store.ResolvePool(ctx, ref)
	if err != nil {
		return err
	}
	chainClient, err := a.chainClient(ctx)
	if err != nil {
		return err
	}
	if block == 0 {
		if block, err = chainClient.LatestBlockNumber(ctx); err != nil {
			return &apperr.ExternalFetchError{Op: "eth_blockNumber", Err: err}
		}
	}

	reader := dex.NewReader(chainClient, a.logger.Named("dex"))
	snap, err := reader.Snapshot(ctx, common.HexToAddress(pool.Address), block)
	if err != nil {
		return &apperr.ExternalFetchError{Op: "read pool state", Err: err}
	}
	ts, err := chainClient.BlockTimestamp(ctx, block)
	if err != nil {
		return &apperr.ExternalFetchError{Op: "block timestamp", Err: err}
	}
	snap.Timestamp = int64(ts)

	if err := a.store.UpsertSnapshots(ctx, pool, []model.PoolSnapshot{snap}); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	if err := a.store.UpsertBlockMetas(ctx, []model.BlockMeta{{ChainID: pool.ChainID, Number: block, Timestamp: snap.Timestamp}}); err != nil {
		return fmt.Errorf("store block: %w", err)
	}
	a.logger.Info("snapshot stored",
		zap.String("pool", pool.Address),
		zap.Uint64("block", block),
		zap.Int32p("tick", snap.Tick),
	)
	return writeJSON(cmd.OutOrStdout(), snapshotReport{
		Pool:        pool,
		BlockNumber: snap.BlockNumber,
		Timestamp:   snap.Timestamp,
		Tick:        snap.Tick,
	})
}

type snapshotReport struct {
	Pool        model.Pool `json:"pool"`
	BlockNumber uint64     `json:"block_number"`
	Timestamp   int64      `json:"timestamp"`
	Tick        *int32     `json:"tick,omitempty"`
}
