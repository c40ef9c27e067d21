// Package backfill fills missing per-block tick snapshots from the indexer
// under a fan-out cap.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"lpsim/internal/apperr"
	"lpsim/internal/indexer"
	"lpsim/internal/model"
)

// DefaultMaxMissing caps how many (block, tick) pairs one request may fetch.
const DefaultMaxMissing = 4

// Service detects and fetches missing tick snapshots.
type Service struct {
	store      Store
	ticks      TickFetcher
	blocks     BlockFetcher
	maxMissing int
	logger     *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMaxMissing sets the fan-out cap.
func WithMaxMissing(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxMissing = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a backfill service. blocks may be nil to skip block
// metadata.
func NewService(store Store, ticks TickFetcher, blocks BlockFetcher, opts ...Option) *Service {
	s := &Service{
		store:      store,
		ticks:      ticks,
		blocks:     blocks,
		maxMissing: DefaultMaxMissing,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetMissing returns blocks x ticks minus the stored pairs, ordered by block
// then tick.
func (s *Service) GetMissing(ctx context.Context, pool model.Pool, blocks []uint64, ticks []int32) ([]model.TickKey, error) {
	blocks = uniqueBlocks(blocks)
	ticks = uniqueTicks(ticks)
	if len(blocks) == 0 || len(ticks) == 0 {
		return nil, nil
	}

	existing, err := s.store.ExistingTickKeys(ctx, pool, blocks, ticks)
	if err != nil {
		return nil, fmt.Errorf("load existing tick snapshots: %w", err)
	}

	var missing []model.TickKey
	for _, block := range blocks {
		for _, tick := range ticks {
			key := model.TickKey{BlockNumber: block, TickIdx: tick}
			if _, ok := existing[key]; !ok {
				missing = append(missing, key)
			}
		}
	}
	return missing, nil
}

// Ensure makes every blocks x ticks snapshot present, fetching at most the
// configured number of pairs. The cap is checked before any indexer call.
func (s *Service) Ensure(ctx context.Context, pool model.Pool, blocks []uint64, ticks []int32) error {
	missing, err := s.GetMissing(ctx, pool, blocks, ticks)
	if err != nil {
		return err
	}
	if len(missing) > s.maxMissing {
		return apperr.DataNotFound(apperr.ReasonBackfillCapExceeded, "too many missing tick snapshots", map[string]any{
			"pool":    pool.Address,
			"missing": len(missing),
			"cap":     s.maxMissing,
		})
	}

	s.ensureBlockMetas(ctx, pool.ChainID, blocks)

	if len(missing) == 0 {
		return nil
	}

	s.logger.Info("backfilling tick snapshots",
		zap.String("pool", pool.Address),
		zap.Int("missing", len(missing)),
	)

	var fetched []model.TickSnapshot
	var lastErr error
	for _, key := range missing {
		snap, err := s.fetchTick(ctx, pool, key)
		if err != nil {
			var dataErr *apperr.DataNotFoundError
			if errors.As(err, &dataErr) {
				return err
			}
			lastErr = err
			continue
		}
		if snap != nil {
			fetched = append(fetched, *snap)
		}
	}

	if len(fetched) > 0 {
		if err := s.store.UpsertTickSnapshots(ctx, pool, fetched); err != nil {
			return fmt.Errorf("upsert tick snapshots: %w", err)
		}
	}

	left, err := s.GetMissing(ctx, pool, blocks, ticks)
	if err != nil {
		return err
	}
	if len(left) > 0 {
		pairs := make([]string, len(left))
		for i, key := range left {
			pairs[i] = key.String()
		}
		dataErr := apperr.DataNotFound(apperr.ReasonTickSnapshotsMissing, "tick snapshots unavailable after backfill", map[string]any{
			"pool":    pool.Address,
			"missing": pairs,
		})
		dataErr.Err = lastErr
		return dataErr
	}

	s.logger.Info("tick snapshots backfilled",
		zap.String("pool", pool.Address),
		zap.Int("rows", len(fetched)),
	)
	return nil
}

// fetchTick tries the id query, then the filter query. A block-pin
// rejection is returned immediately as a DataNotFoundError. When the
// filter query finds nothing, the id query's error is returned.
func (s *Service) fetchTick(ctx context.Context, pool model.Pool, key model.TickKey) (*model.TickSnapshot, error) {
	snap, idErr := s.ticks.TickByID(ctx, pool, key)
	if idErr != nil {
		if errors.Is(idErr, indexer.ErrBlockPinUnsupported) {
			return nil, blockPinError(pool, key, idErr)
		}
		s.logger.Warn("tick id query failed, trying filter query",
			zap.String("pool", pool.Address),
			zap.String("key", key.String()),
			zap.Error(idErr),
		)
	}
	if idErr == nil && snap != nil {
		return normalize(snap, key), nil
	}

	snap, err := s.ticks.TickByFilter(ctx, pool, key)
	if err != nil {
		if errors.Is(err, indexer.ErrBlockPinUnsupported) {
			return nil, blockPinError(pool, key, err)
		}
		s.logger.Warn("tick filter query failed",
			zap.String("pool", pool.Address),
			zap.String("key", key.String()),
			zap.Error(err),
		)
		return nil, err
	}
	if snap == nil {
		return nil, idErr
	}
	return normalize(snap, key), nil
}

// ensureBlockMetas stores timestamps for blocks not yet known. Failures are
// logged and never returned.
func (s *Service) ensureBlockMetas(ctx context.Context, chainID uint64, blocks []uint64) {
	if s.blocks == nil {
		return
	}
	blocks = uniqueBlocks(blocks)
	if len(blocks) == 0 {
		return
	}

	existing, err := s.store.ExistingBlocks(ctx, chainID, blocks)
	if err != nil {
		s.logger.Warn("load existing blocks failed", zap.Uint64("chain_id", chainID), zap.Error(err))
		return
	}
	var want []uint64
	for _, n := range blocks {
		if _, ok := existing[n]; !ok {
			want = append(want, n)
		}
	}
	if len(want) == 0 {
		return
	}

	metas, err := s.blocks.BlockMetas(ctx, chainID, want)
	if err != nil {
		s.logger.Warn("fetch block metadata failed", zap.Uint64("chain_id", chainID), zap.Int("blocks", len(want)), zap.Error(err))
		return
	}
	if len(metas) == 0 {
		return
	}
	if err := s.store.UpsertBlockMetas(ctx, metas); err != nil {
		s.logger.Warn("upsert block metadata failed", zap.Uint64("chain_id", chainID), zap.Error(err))
	}
}

func blockPinError(pool model.Pool, key model.TickKey, err error) error {
	dataErr := apperr.DataNotFound(apperr.ReasonBlockPinUnsupported, "indexer does not support block-pinned queries", map[string]any{
		"pool":  pool.Address,
		"block": key.BlockNumber,
		"tick":  key.TickIdx,
	})
	dataErr.Err = err
	return dataErr
}

func normalize(snap *model.TickSnapshot, key model.TickKey) *model.TickSnapshot {
	out := *snap
	out.BlockNumber = key.BlockNumber
	out.TickIdx = key.TickIdx
	return &out
}

func uniqueBlocks(in []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(in))
	out := make([]uint64, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func uniqueTicks(in []int32) []int32 {
	seen := make(map[int32]struct{}, len(in))
	out := make([]int32, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
