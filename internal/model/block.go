package model

// BlockMeta maps a block number to its timestamp.
type BlockMeta struct {
	ChainID   uint64 `json:"chain_id"`
	Number    uint64 `json:"number"`
	Timestamp int64  `json:"timestamp"`
}
