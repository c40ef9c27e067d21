package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lpsim/internal/apperr"
	"lpsim/internal/model"
	"lpsim/internal/storage/migrations"
)

// Store provides Postgres persistence for pools, their series and tick
// snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context) error {
	return migrations.RunPostgresMigrations(ctx, s.pool)
}

const poolColumns = `id, chain_id, dex_id, pool_address, token0_decimals, token1_decimals, fee_tier, tick_spacing`

// UpsertPools inserts or updates pool metadata and fills in assigned ids.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) ([]model.Pool, error) {
	if len(pools) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, dex_id, pool_address, token0_decimals, token1_decimals, fee_tier, tick_spacing, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (chain_id, dex_id, pool_address)
			DO UPDATE SET
				token0_decimals = EXCLUDED.token0_decimals,
				token1_decimals = EXCLUDED.token1_decimals,
				fee_tier = EXCLUDED.fee_tier,
				tick_spacing = EXCLUDED.tick_spacing,
				updated_at = now()
			RETURNING id
		`,
			int64(pool.ChainID),
			pool.DexID,
			strings.ToLower(pool.Address),
			int16(pool.Token0Decimals),
			int16(pool.Token1Decimals),
			int32(pool.FeeTier),
			pool.TickSpacing,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	out := make([]model.Pool, len(pools))
	for i, pool := range pools {
		if err := br.QueryRow().Scan(&pool.ID); err != nil {
			return nil, err
		}
		pool.Address = strings.ToLower(pool.Address)
		out[i] = pool
	}
	return out, nil
}

// GetPool returns the pool at address, nil when unknown. Zero chainID and
// empty dexID match any value.
func (s *Store) GetPool(ctx context.Context, address string, chainID uint64, dexID string) (*model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+poolColumns+`
		FROM pools
		WHERE pool_address = $1
			AND ($2::bigint = 0 OR chain_id = $2)
			AND ($3::text = '' OR dex_id = $3)
		ORDER BY id
		LIMIT 2
	`, strings.ToLower(address), int64(chainID), dexID)
	if err != nil {
		return nil, err
	}
	pools, err := pgx.CollectRows(rows, scanPool)
	if err != nil {
		return nil, err
	}
	switch len(pools) {
	case 0:
		return nil, nil
	case 1:
		return &pools[0], nil
	default:
		return nil, apperr.Input("pool", "address %s matches several pools, pass chain and dex", address)
	}
}

// ResolvePool resolves a numeric id or an address reference.
func (s *Store) ResolvePool(ctx context.Context, ref model.PoolRef) (model.Pool, error) {
	if !ref.ByID() {
		pool, err := s.GetPool(ctx, ref.Address, ref.ChainID, ref.DexID)
		if err != nil {
			return model.Pool{}, err
		}
		if pool == nil {
			return model.Pool{}, apperr.NotFound("pool", ref.String())
		}
		return *pool, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = $1`, ref.ID)
	if err != nil {
		return model.Pool{}, err
	}
	pool, err := pgx.CollectExactlyOneRow(rows, scanPool)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, apperr.NotFound("pool", ref.String())
		}
		return model.Pool{}, err
	}
	return pool, nil
}

func scanPool(row pgx.CollectableRow) (model.Pool, error) {
	var (
		p                  model.Pool
		chainID            int64
		dec0, dec1         int16
		feeTier, spacing32 int32
	)
	if err := row.Scan(&p.ID, &chainID, &p.DexID, &p.Address, &dec0, &dec1, &feeTier, &spacing32); err != nil {
		return model.Pool{}, err
	}
	p.ChainID = uint64(chainID)
	p.Token0Decimals = uint8(dec0)
	p.Token1Decimals = uint8(dec1)
	p.FeeTier = uint32(feeTier)
	p.TickSpacing = spacing32
	return p, nil
}
