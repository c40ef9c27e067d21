package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"lpsim/internal/model"
)

const snapshotColumns = `block_number, block_timestamp, tick, sqrt_price_x96::text, liquidity::text,
	fee_growth_global0_x128::text, fee_growth_global1_x128::text`

// UpsertSnapshots inserts or replaces pool snapshots.
func (s *Store) UpsertSnapshots(ctx context.Context, pool model.Pool, snaps []model.PoolSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snaps {
		batch.Queue(`
			INSERT INTO pool_snapshots (
				pool_id, block_number, block_timestamp, tick, sqrt_price_x96, liquidity,
				fee_growth_global0_x128, fee_growth_global1_x128
			) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric)
			ON CONFLICT (pool_id, block_number)
			DO UPDATE SET
				block_timestamp = EXCLUDED.block_timestamp,
				tick = EXCLUDED.tick,
				sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
				liquidity = EXCLUDED.liquidity,
				fee_growth_global0_x128 = EXCLUDED.fee_growth_global0_x128,
				fee_growth_global1_x128 = EXCLUDED.fee_growth_global1_x128
		`,
			pool.ID,
			int64(snap.BlockNumber),
			snap.Timestamp,
			snap.Tick,
			bigString(snap.SqrtPriceX96),
			bigString(snap.Liquidity),
			u256String(snap.FeeGrowthGlobal0X128),
			u256String(snap.FeeGrowthGlobal1X128),
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

// LatestSnapshot returns the most recent snapshot, nil when none exists.
func (s *Store) LatestSnapshot(ctx context.Context, pool model.Pool) (*model.PoolSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+snapshotColumns+`
		FROM pool_snapshots
		WHERE pool_id = $1
		ORDER BY block_timestamp DESC, block_number DESC
		LIMIT 1
	`, pool.ID)
	return scanSnapshot(row)
}

// SnapshotAtOrBefore returns the latest snapshot with timestamp <= ts.
func (s *Store) SnapshotAtOrBefore(ctx context.Context, pool model.Pool, ts int64) (*model.PoolSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+snapshotColumns+`
		FROM pool_snapshots
		WHERE pool_id = $1 AND block_timestamp <= $2
		ORDER BY block_timestamp DESC, block_number DESC
		LIMIT 1
	`, pool.ID, ts)
	return scanSnapshot(row)
}

func scanSnapshot(row pgx.Row) (*model.PoolSnapshot, error) {
	var (
		blockNumber int64
		snap        model.PoolSnapshot
		sqrtPrice   *string
		liquidity   *string
		global0     string
		global1     string
	)
	if err := row.Scan(&blockNumber, &snap.Timestamp, &snap.Tick, &sqrtPrice, &liquidity, &global0, &global1); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	snap.BlockNumber = uint64(blockNumber)

	var err error
	if snap.SqrtPriceX96, err = parseBigInt(sqrtPrice); err != nil {
		return nil, err
	}
	if snap.Liquidity, err = parseBigInt(liquidity); err != nil {
		return nil, err
	}
	if snap.FeeGrowthGlobal0X128, err = parseX128(global0); err != nil {
		return nil, err
	}
	if snap.FeeGrowthGlobal1X128, err = parseX128(global1); err != nil {
		return nil, err
	}
	return &snap, nil
}
