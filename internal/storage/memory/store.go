// Package memory is an in-memory implementation of every simulator and
// backfill port. It is used by tests and by dry runs without Postgres.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/holiman/uint256"

	"lpsim/internal/apperr"
	"lpsim/internal/model"
)

// Store keeps pools and their series in maps keyed by pool id.
type Store struct {
	mu sync.RWMutex

	nextID      int64
	pools       map[int64]model.Pool
	snapshots   map[int64][]model.PoolSnapshot
	hourlyFees  map[int64][]model.HourlyFee
	hourlyTicks map[int64][]model.HourlyTick
	initTicks   map[int64][]model.InitializedTick
	tickSnaps   map[int64]map[model.TickKey]model.TickSnapshot
	blocks      map[uint64]map[uint64]model.BlockMeta
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		pools:       make(map[int64]model.Pool),
		snapshots:   make(map[int64][]model.PoolSnapshot),
		hourlyFees:  make(map[int64][]model.HourlyFee),
		hourlyTicks: make(map[int64][]model.HourlyTick),
		initTicks:   make(map[int64][]model.InitializedTick),
		tickSnaps:   make(map[int64]map[model.TickKey]model.TickSnapshot),
		blocks:      make(map[uint64]map[uint64]model.BlockMeta),
	}
}

// AddPool registers a pool and returns it with its assigned id.
func (s *Store) AddPool(pool model.Pool) model.Pool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pool.ID == 0 {
		s.nextID++
		pool.ID = s.nextID
	} else if pool.ID > s.nextID {
		s.nextID = pool.ID
	}
	pool.Address = strings.ToLower(pool.Address)
	s.pools[pool.ID] = pool
	return pool
}

// AddSnapshots appends pool snapshots, kept ordered by timestamp.
func (s *Store) AddSnapshots(pool model.Pool, snaps ...model.PoolSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.snapshots[pool.ID], snaps...)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp < list[j].Timestamp })
	s.snapshots[pool.ID] = list
}

// AddHourlyFees appends hourly fee rows, kept ordered by hour.
func (s *Store) AddHourlyFees(pool model.Pool, rows ...model.HourlyFee) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.hourlyFees[pool.ID], rows...)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Hour.Before(list[j].Hour) })
	s.hourlyFees[pool.ID] = list
}

// AddHourlyTicks appends hourly tick rows. A later row for the same hour wins.
func (s *Store) AddHourlyTicks(pool model.Pool, rows ...model.HourlyTick) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byHour := make(map[int64]model.HourlyTick)
	for _, row := range append(s.hourlyTicks[pool.ID], rows...) {
		byHour[row.Hour.Unix()] = row
	}
	list := make([]model.HourlyTick, 0, len(byHour))
	for _, row := range byHour {
		list = append(list, row)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Hour.Before(list[j].Hour) })
	s.hourlyTicks[pool.ID] = list
}

// AddInitializedTicks appends liquidity-net rows.
func (s *Store) AddInitializedTicks(pool model.Pool, ticks ...model.InitializedTick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initTicks[pool.ID] = append(s.initTicks[pool.ID], ticks...)
}

// GetPool finds a pool by address and optional hints.
func (s *Store) GetPool(_ context.Context, address string, chainID uint64, dexID string) (*model.Pool, error) {
	matches := s.matchAddress(address, chainID, dexID)
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		return nil, apperr.Input("pool", "address %s matches %d pools, pass chain and dex", address, len(matches))
	}
	pool := matches[0]
	return &pool, nil
}

// ResolvePool resolves a numeric id or an address reference.
func (s *Store) ResolvePool(ctx context.Context, ref model.PoolRef) (model.Pool, error) {
	if ref.ByID() {
		s.mu.RLock()
		pool, ok := s.pools[ref.ID]
		s.mu.RUnlock()
		if !ok {
			return model.Pool{}, apperr.NotFound("pool", ref.String())
		}
		return pool, nil
	}
	pool, err := s.GetPool(ctx, ref.Address, ref.ChainID, ref.DexID)
	if err != nil {
		return model.Pool{}, err
	}
	if pool == nil {
		return model.Pool{}, apperr.NotFound("pool", ref.String())
	}
	return *pool, nil
}

func (s *Store) matchAddress(address string, chainID uint64, dexID string) []model.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	address = strings.ToLower(address)
	var out []model.Pool
	for _, pool := range s.pools {
		if pool.Address != address {
			continue
		}
		if chainID != 0 && pool.ChainID != chainID {
			continue
		}
		if dexID != "" && pool.DexID != dexID {
			continue
		}
		out = append(out, pool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LatestSnapshot returns the most recent snapshot or nil.
func (s *Store) LatestSnapshot(_ context.Context, pool model.Pool) (*model.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.snapshots[pool.ID]
	if len(list) == 0 {
		return nil, nil
	}
	snap := list[len(list)-1]
	return &snap, nil
}

// SnapshotAtOrBefore returns the latest snapshot with timestamp <= ts or nil.
func (s *Store) SnapshotAtOrBefore(_ context.Context, pool model.Pool, ts int64) (*model.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.snapshots[pool.ID]
	idx := sort.Search(len(list), func(i int) bool { return list[i].Timestamp > ts }) - 1
	if idx < 0 {
		return nil, nil
	}
	snap := list[idx]
	return &snap, nil
}

// HourlyFees returns the most recent hours rows, oldest first.
func (s *Store) HourlyFees(_ context.Context, pool model.Pool, hours int) ([]model.HourlyFee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.hourlyFees[pool.ID]
	if hours > 0 && len(list) > hours {
		list = list[len(list)-hours:]
	}
	out := make([]model.HourlyFee, len(list))
	copy(out, list)
	return out, nil
}

// HourlyTicks returns the most recent hours rows, oldest first.
func (s *Store) HourlyTicks(_ context.Context, pool model.Pool, hours int) ([]model.HourlyTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.hourlyTicks[pool.ID]
	if hours > 0 && len(list) > hours {
		list = list[len(list)-hours:]
	}
	out := make([]model.HourlyTick, len(list))
	copy(out, list)
	return out, nil
}

// InitializedTicks returns liquidity-net rows with tickMin <= tick <= tickMax.
func (s *Store) InitializedTicks(_ context.Context, pool model.Pool, tickMin, tickMax int32) ([]model.InitializedTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.InitializedTick
	for _, t := range s.initTicks[pool.ID] {
		if t.TickIdx < tickMin || t.TickIdx > tickMax {
			continue
		}
		net := new(big.Int)
		if t.LiquidityNet != nil {
			net.Set(t.LiquidityNet)
		}
		out = append(out, model.InitializedTick{TickIdx: t.TickIdx, LiquidityNet: net})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TickIdx < out[j].TickIdx })
	return out, nil
}

// TickSnapshot returns one tick snapshot or nil.
func (s *Store) TickSnapshot(_ context.Context, pool model.Pool, key model.TickKey) (*model.TickSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.tickSnaps[pool.ID][key]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// ExistingTickKeys returns which of blocks x ticks are stored.
func (s *Store) ExistingTickKeys(_ context.Context, pool model.Pool, blocks []uint64, ticks []int32) (map[model.TickKey]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[model.TickKey]struct{})
	stored := s.tickSnaps[pool.ID]
	for _, block := range blocks {
		for _, tick := range ticks {
			key := model.TickKey{BlockNumber: block, TickIdx: tick}
			if _, ok := stored[key]; ok {
				out[key] = struct{}{}
			}
		}
	}
	return out, nil
}

// UpsertTickSnapshots stores or replaces tick snapshots.
func (s *Store) UpsertTickSnapshots(_ context.Context, pool model.Pool, snaps []model.TickSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tickSnaps[pool.ID]
	if !ok {
		stored = make(map[model.TickKey]model.TickSnapshot)
		s.tickSnaps[pool.ID] = stored
	}
	for _, snap := range snaps {
		if snap.FeeGrowthOutside0X128 == nil || snap.FeeGrowthOutside1X128 == nil {
			return fmt.Errorf("tick snapshot %s has nil fee growth", snap.Key())
		}
		stored[snap.Key()] = model.TickSnapshot{
			BlockNumber:           snap.BlockNumber,
			TickIdx:               snap.TickIdx,
			FeeGrowthOutside0X128: new(uint256.Int).Set(snap.FeeGrowthOutside0X128),
			FeeGrowthOutside1X128: new(uint256.Int).Set(snap.FeeGrowthOutside1X128),
		}
	}
	return nil
}

// ExistingBlocks returns which block numbers have metadata on chainID.
func (s *Store) ExistingBlocks(_ context.Context, chainID uint64, numbers []uint64) (map[uint64]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uint64]struct{})
	for _, n := range numbers {
		if _, ok := s.blocks[chainID][n]; ok {
			out[n] = struct{}{}
		}
	}
	return out, nil
}

// UpsertBlockMetas stores or replaces block metadata.
func (s *Store) UpsertBlockMetas(_ context.Context, metas []model.BlockMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, meta := range metas {
		chain, ok := s.blocks[meta.ChainID]
		if !ok {
			chain = make(map[uint64]model.BlockMeta)
			s.blocks[meta.ChainID] = chain
		}
		chain[meta.Number] = meta
	}
	return nil
}

// BlockMeta returns stored metadata or nil.
func (s *Store) BlockMeta(_ context.Context, chainID, number uint64) (*model.BlockMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.blocks[chainID][number]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}
