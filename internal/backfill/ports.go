package backfill

import (
	"context"

	"lpsim/internal/model"
)

// TickSnapshotStore is the persisted side of tick snapshots.
type TickSnapshotStore interface {
	ExistingTickKeys(ctx context.Context, pool model.Pool, blocks []uint64, ticks []int32) (map[model.TickKey]struct{}, error)
	UpsertTickSnapshots(ctx context.Context, pool model.Pool, snaps []model.TickSnapshot) error
}

// BlockMetaStore is the persisted side of block metadata.
type BlockMetaStore interface {
	ExistingBlocks(ctx context.Context, chainID uint64, numbers []uint64) (map[uint64]struct{}, error)
	UpsertBlockMetas(ctx context.Context, metas []model.BlockMeta) error
}

// Store combines both stores.
type Store interface {
	TickSnapshotStore
	BlockMetaStore
}

// TickFetcher loads a tick snapshot pinned to a block from the indexer.
// Both methods return nil when the indexer has no such row.
type TickFetcher interface {
	TickByID(ctx context.Context, pool model.Pool, key model.TickKey) (*model.TickSnapshot, error)
	TickByFilter(ctx context.Context, pool model.Pool, key model.TickKey) (*model.TickSnapshot, error)
}

// BlockFetcher loads block timestamps.
type BlockFetcher interface {
	BlockMetas(ctx context.Context, chainID uint64, numbers []uint64) ([]model.BlockMeta, error)
}
