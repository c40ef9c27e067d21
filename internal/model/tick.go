package model

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// TickKey identifies a tick boundary at a block. A TickKey absent from
// storage is a missing tick snapshot.
type TickKey struct {
	BlockNumber uint64 `json:"block"`
	TickIdx     int32  `json:"tick"`
}

func (k TickKey) String() string {
	return fmt.Sprintf("%d@%d", k.TickIdx, k.BlockNumber)
}

// TickSnapshot holds the fee-growth-outside counters of a tick at a block.
type TickSnapshot struct {
	BlockNumber           uint64
	TickIdx               int32
	FeeGrowthOutside0X128 *uint256.Int
	FeeGrowthOutside1X128 *uint256.Int
}

// Key returns the (block, tick) key of the snapshot.
func (t TickSnapshot) Key() TickKey {
	return TickKey{BlockNumber: t.BlockNumber, TickIdx: t.TickIdx}
}

// InitializedTick is a tick boundary with its signed liquidity delta.
type InitializedTick struct {
	TickIdx      int32
	LiquidityNet *big.Int
}
