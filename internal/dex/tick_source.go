package dex

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"lpsim/internal/apperr"
	"lpsim/internal/model"
)

// TickSource serves tick snapshots straight from an archive node with a
// ticks(int24) call pinned to the key's block.
type TickSource struct {
	reader *Reader
}

// NewTickSource wraps reader as a backfill tick source.
func NewTickSource(reader *Reader) *TickSource {
	return &TickSource{reader: reader}
}

// TickByID reads the tick at key.BlockNumber. Call failures come back as
// ExternalFetchError.
func (s *TickSource) TickByID(ctx context.Context, pool model.Pool, key model.TickKey) (*model.TickSnapshot, error) {
	snap, err := s.reader.Tick(ctx, common.HexToAddress(pool.Address), key.TickIdx, key.BlockNumber)
	if err != nil {
		return nil, &apperr.ExternalFetchError{Op: "eth_call ticks", Err: err}
	}
	return snap, nil
}

// TickByFilter always reports no row. A node has a single lookup shape,
// so TickByID is authoritative and its error is the final one.
func (s *TickSource) TickByFilter(context.Context, model.Pool, model.TickKey) (*model.TickSnapshot, error) {
	return nil, nil
}
