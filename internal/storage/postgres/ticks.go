package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lpsim/internal/model"
)

// TickSnapshot returns the stored snapshot at key, nil when absent.
func (s *Store) TickSnapshot(ctx context.Context, pool model.Pool, key model.TickKey) (*model.TickSnapshot, error) {
	var out0, out1 string
	err := s.pool.QueryRow(ctx, `
		SELECT fee_growth_outside0_x128::text, fee_growth_outside1_x128::text
		FROM tick_snapshots
		WHERE chain_id = $1 AND dex_id = $2 AND pool_address = $3
			AND tick_idx = $4 AND block_number = $5
	`, int64(pool.ChainID), pool.DexID, pool.Address, key.TickIdx, int64(key.BlockNumber)).Scan(&out0, &out1)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	snap := model.TickSnapshot{BlockNumber: key.BlockNumber, TickIdx: key.TickIdx}
	if snap.FeeGrowthOutside0X128, err = parseX128(out0); err != nil {
		return nil, err
	}
	if snap.FeeGrowthOutside1X128, err = parseX128(out1); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ExistingTickKeys returns the stored keys among blocks x ticks.
func (s *Store) ExistingTickKeys(ctx context.Context, pool model.Pool, blocks []uint64, ticks []int32) (map[model.TickKey]struct{}, error) {
	out := make(map[model.TickKey]struct{})
	if len(blocks) == 0 || len(ticks) == 0 {
		return out, nil
	}
	blockParams := make([]int64, len(blocks))
	for i, b := range blocks {
		blockParams[i] = int64(b)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT block_number, tick_idx
		FROM tick_snapshots
		WHERE chain_id = $1 AND dex_id = $2 AND pool_address = $3
			AND block_number = ANY($4) AND tick_idx = ANY($5)
	`, int64(pool.ChainID), pool.DexID, pool.Address, blockParams, ticks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			block int64
			tick  int32
		)
		if err := rows.Scan(&block, &tick); err != nil {
			return nil, err
		}
		out[model.TickKey{BlockNumber: uint64(block), TickIdx: tick}] = struct{}{}
	}
	return out, rows.Err()
}

// UpsertTickSnapshots inserts or replaces tick snapshots of pool.
func (s *Store) UpsertTickSnapshots(ctx context.Context, pool model.Pool, snaps []model.TickSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snaps {
		if snap.FeeGrowthOutside0X128 == nil || snap.FeeGrowthOutside1X128 == nil {
			return fmt.Errorf("tick snapshot %s has no fee growth outside", snap.Key())
		}
		batch.Queue(`
			INSERT INTO tick_snapshots (
				chain_id, dex_id, pool_address, tick_idx, block_number,
				fee_growth_outside0_x128, fee_growth_outside1_x128, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, now(), now())
			ON CONFLICT (chain_id, dex_id, pool_address, tick_idx, block_number)
			DO UPDATE SET
				fee_growth_outside0_x128 = EXCLUDED.fee_growth_outside0_x128,
				fee_growth_outside1_x128 = EXCLUDED.fee_growth_outside1_x128,
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.DexID,
			pool.Address,
			snap.TickIdx,
			int64(snap.BlockNumber),
			u256String(snap.FeeGrowthOutside0X128),
			u256String(snap.FeeGrowthOutside1X128),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snaps {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
