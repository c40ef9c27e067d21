package simulate

import (
	"context"

	"lpsim/internal/model"
)

// PoolMetadata resolves pool reference data.
type PoolMetadata interface {
	// GetPool returns nil when the pool is unknown.
	GetPool(ctx context.Context, address string, chainID uint64, dexID string) (*model.Pool, error)
	ResolvePool(ctx context.Context, ref model.PoolRef) (model.Pool, error)
}

// Snapshots reads recorded pool state. Both methods return nil when absent.
type Snapshots interface {
	LatestSnapshot(ctx context.Context, pool model.Pool) (*model.PoolSnapshot, error)
	SnapshotAtOrBefore(ctx context.Context, pool model.Pool, ts int64) (*model.PoolSnapshot, error)
}

// HourlySeries reads the most recent hours of aggregated pool activity.
type HourlySeries interface {
	// HourlyFees returns rows ordered by hour ascending.
	HourlyFees(ctx context.Context, pool model.Pool, hours int) ([]model.HourlyFee, error)
	// HourlyTicks returns one row per hour, taken from the hour's latest block.
	HourlyTicks(ctx context.Context, pool model.Pool, hours int) ([]model.HourlyTick, error)
}

// InitializedTicks reads the liquidity-net ledger in [tickMin, tickMax].
type InitializedTicks interface {
	InitializedTicks(ctx context.Context, pool model.Pool, tickMin, tickMax int32) ([]model.InitializedTick, error)
}

// TickSnapshotReader reads one tick snapshot, nil when absent.
type TickSnapshotReader interface {
	TickSnapshot(ctx context.Context, pool model.Pool, key model.TickKey) (*model.TickSnapshot, error)
}

// TickEnsurer makes sure every blocks x ticks snapshot is stored.
type TickEnsurer interface {
	Ensure(ctx context.Context, pool model.Pool, blocks []uint64, ticks []int32) error
}

// Store is everything the simulators read.
type Store interface {
	PoolMetadata
	Snapshots
	HourlySeries
	InitializedTicks
	TickSnapshotReader
}
