package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"lpsim/internal/model"
)

// ExistingBlocks returns which of numbers already have a stored timestamp.
func (s *Store) ExistingBlocks(ctx context.Context, chainID uint64, numbers []uint64) (map[uint64]struct{}, error) {
	out := make(map[uint64]struct{})
	if len(numbers) == 0 {
		return out, nil
	}
	params := make([]int64, len(numbers))
	for i, n := range numbers {
		params[i] = int64(n)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT block_number FROM blocks WHERE chain_id = $1 AND block_number = ANY($2)
	`, int64(chainID), params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out[uint64(n)] = struct{}{}
	}
	return out, rows.Err()
}

func (s *Store) UpsertBlockMetas(ctx context.Context, metas []model.BlockMeta) error {
	if len(metas) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, meta := range metas {
		batch.Queue(`
			INSERT INTO blocks (chain_id, block_number, block_timestamp, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (chain_id, block_number)
			DO UPDATE SET block_timestamp = EXCLUDED.block_timestamp, updated_at = now()
		`, int64(meta.ChainID), int64(meta.Number), meta.Timestamp)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metas {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// BlockMeta returns the stored block, nil when absent.
func (s *Store) BlockMeta(ctx context.Context, chainID, number uint64) (*model.BlockMeta, error) {
	var ts int64
	err := s.pool.QueryRow(ctx, `
		SELECT block_timestamp FROM blocks WHERE chain_id = $1 AND block_number = $2
	`, int64(chainID), int64(number)).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &model.BlockMeta{ChainID: chainID, Number: number, Timestamp: ts}, nil
}
