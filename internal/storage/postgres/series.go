package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lpsim/internal/model"
)

// UpsertHourlyFees inserts or replaces hourly fee rows. Hours are truncated
// to the hour in UTC.
func (s *Store) UpsertHourlyFees(ctx context.Context, pool model.Pool, fees []model.HourlyFee) error {
	if len(fees) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, fee := range fees {
		batch.Queue(`
			INSERT INTO pool_hourly_fees (pool_id, hour, fees_usd)
			VALUES ($1, $2, $3::numeric)
			ON CONFLICT (pool_id, hour)
			DO UPDATE SET fees_usd = EXCLUDED.fees_usd
		`, pool.ID, fee.Hour.UTC().Truncate(time.Hour), fee.FeesUSD.String())
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range fees {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// HourlyFees returns the most recent hours rows, oldest first.
func (s *Store) HourlyFees(ctx context.Context, pool model.Pool, hours int) ([]model.HourlyFee, error) {
	if hours <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT hour, fees_usd::text
		FROM pool_hourly_fees
		WHERE pool_id = $1
		ORDER BY hour DESC
		LIMIT $2
	`, pool.ID, hours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HourlyFee
	for rows.Next() {
		var (
			hour time.Time
			raw  string
		)
		if err := rows.Scan(&hour, &raw); err != nil {
			return nil, err
		}
		fees, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse fees_usd %q: %w", raw, err)
		}
		out = append(out, model.HourlyFee{Hour: hour.UTC(), FeesUSD: fees})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// HourlyTicks returns, for the most recent hours that carry snapshots, the
// tick and liquidity of each hour's latest block, oldest first.
func (s *Store) HourlyTicks(ctx context.Context, pool model.Pool, hours int) ([]model.HourlyTick, error) {
	if hours <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT hour, tick, liquidity
		FROM (
			SELECT DISTINCT ON (date_trunc('hour', to_timestamp(block_timestamp)))
				date_trunc('hour', to_timestamp(block_timestamp)) AS hour,
				tick,
				liquidity::text AS liquidity
			FROM pool_snapshots
			WHERE pool_id = $1 AND tick IS NOT NULL
			ORDER BY date_trunc('hour', to_timestamp(block_timestamp)), block_number DESC
		) per_hour
		ORDER BY hour DESC
		LIMIT $2
	`, pool.ID, hours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HourlyTick
	for rows.Next() {
		var (
			hour      time.Time
			tick      int32
			liquidity *string
		)
		if err := rows.Scan(&hour, &tick, &liquidity); err != nil {
			return nil, err
		}
		l, err := parseBigInt(liquidity)
		if err != nil {
			return nil, err
		}
		out = append(out, model.HourlyTick{Hour: hour.UTC(), Tick: tick, Liquidity: l})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// UpsertInitializedTicks replaces the liquidity net of the given ticks.
func (s *Store) UpsertInitializedTicks(ctx context.Context, pool model.Pool, ticks []model.InitializedTick) error {
	if len(ticks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, tick := range ticks {
		if tick.LiquidityNet == nil {
			return fmt.Errorf("initialized tick %d has no liquidity net", tick.TickIdx)
		}
		batch.Queue(`
			INSERT INTO initialized_ticks (pool_id, tick_idx, liquidity_net)
			VALUES ($1, $2, $3::numeric)
			ON CONFLICT (pool_id, tick_idx)
			DO UPDATE SET liquidity_net = EXCLUDED.liquidity_net
		`, pool.ID, tick.TickIdx, tick.LiquidityNet.String())
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range ticks {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InitializedTicks returns the ledger in [tickMin, tickMax] ordered by tick.
func (s *Store) InitializedTicks(ctx context.Context, pool model.Pool, tickMin, tickMax int32) ([]model.InitializedTick, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tick_idx, liquidity_net::text
		FROM initialized_ticks
		WHERE pool_id = $1 AND tick_idx BETWEEN $2 AND $3
		ORDER BY tick_idx
	`, pool.ID, tickMin, tickMax)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InitializedTick
	for rows.Next() {
		var (
			idx int32
			raw string
		)
		if err := rows.Scan(&idx, &raw); err != nil {
			return nil, err
		}
		net, err := parseBigInt(&raw)
		if err != nil {
			return nil, err
		}
		out = append(out, model.InitializedTick{TickIdx: idx, LiquidityNet: net})
	}
	return out, rows.Err()
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
