package model

import "fmt"

// Pool is the immutable reference data of a concentrated-liquidity pool.
type Pool struct {
	ID             int64  `json:"id"`
	ChainID        uint64 `json:"chain_id"`
	DexID          string `json:"dex_id"`
	Address        string `json:"address"`
	Token0Decimals uint8  `json:"token0_decimals"`
	Token1Decimals uint8  `json:"token1_decimals"`
	FeeTier        uint32 `json:"fee_tier"`
	TickSpacing    int32  `json:"tick_spacing"`
}

// Key returns the chain/dex/address identity used by stores and the indexer.
func (p Pool) Key() string {
	return fmt.Sprintf("%d:%s:%s", p.ChainID, p.DexID, p.Address)
}
