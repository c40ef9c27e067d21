package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"lpsim/internal/model"
)

const blocksQuery = `query Blocks($numbers: [BigInt!]!) {
  blocks(first: 1000, where: {number_in: $numbers}) {
    number
    timestamp
  }
}`

type blockRow struct {
	Number    json.Number `json:"number"`
	Timestamp json.Number `json:"timestamp"`
}

// BlockMetas loads block timestamps from the blocks subgraph. Blocks the
// subgraph does not know are left out.
func (c *Client) BlockMetas(ctx context.Context, chainID uint64, numbers []uint64) ([]model.BlockMeta, error) {
	if c.blocksEndpoint == "" {
		return nil, fmt.Errorf("blocks subgraph url is not configured")
	}
	if len(numbers) == 0 {
		return nil, nil
	}

	ids := make([]string, len(numbers))
	for i, n := range numbers {
		ids[i] = strconv.FormatUint(n, 10)
	}
	var data struct {
		Blocks []blockRow `json:"blocks"`
	}
	if err := c.query(ctx, c.blocksEndpoint, "blocks", blocksQuery, map[string]any{"numbers": ids}, &data); err != nil {
		return nil, err
	}

	out := make([]model.BlockMeta, 0, len(data.Blocks))
	for _, row := range data.Blocks {
		number, err := strconv.ParseUint(row.Number.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse block number %q: %w", row.Number, err)
		}
		ts, err := strconv.ParseInt(row.Timestamp.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse block timestamp %q: %w", row.Timestamp, err)
		}
		out = append(out, model.BlockMeta{ChainID: chainID, Number: number, Timestamp: ts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}
