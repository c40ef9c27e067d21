package model

import (
	"math/big"

	"github.com/holiman/uint256"
)

// PoolSnapshot is the pool state observed at a single block.
type PoolSnapshot struct {
	BlockNumber          uint64
	Timestamp            int64
	Tick                 *int32
	SqrtPriceX96         *big.Int
	Liquidity            *big.Int
	FeeGrowthGlobal0X128 *uint256.Int
	FeeGrowthGlobal1X128 *uint256.Int
}
