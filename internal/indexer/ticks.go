package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"lpsim/internal/clmm"
	"lpsim/internal/model"
)

const tickByIDQuery = `query TickByID($id: ID!, $block: Int!) {
  tick(id: $id, block: {number: $block}) {
    tickIdx
    feeGrowthOutside0X128
    feeGrowthOutside1X128
  }
}`

const tickByFilterQuery = `query TickByFilter($pool: String!, $tickIdx: BigInt!, $block: Int!) {
  ticks(first: 1, where: {pool: $pool, tickIdx: $tickIdx}, block: {number: $block}) {
    tickIdx
    feeGrowthOutside0X128
    feeGrowthOutside1X128
  }
}`

type tickRow struct {
	TickIdx               json.Number `json:"tickIdx"`
	FeeGrowthOutside0X128 json.Number `json:"feeGrowthOutside0X128"`
	FeeGrowthOutside1X128 json.Number `json:"feeGrowthOutside1X128"`
}

// TickID is the subgraph's synthetic tick id.
func TickID(poolAddress string, tick int32) string {
	return fmt.Sprintf("%s#%d", poolAddress, tick)
}

// TickByID loads a tick by its synthetic id, pinned to key.BlockNumber.
// It returns nil when the subgraph has no such tick.
func (c *Client) TickByID(ctx context.Context, pool model.Pool, key model.TickKey) (*model.TickSnapshot, error) {
	var data struct {
		Tick *tickRow `json:"tick"`
	}
	vars := map[string]any{
		"id":    TickID(pool.Address, key.TickIdx),
		"block": key.BlockNumber,
	}
	if err := c.query(ctx, c.endpoint, "tick by id", tickByIDQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Tick == nil {
		return nil, nil
	}
	return data.Tick.snapshot(key)
}

// TickByFilter loads a tick by pool and tick index, pinned to key.BlockNumber.
// It returns nil when the subgraph has no such tick.
func (c *Client) TickByFilter(ctx context.Context, pool model.Pool, key model.TickKey) (*model.TickSnapshot, error) {
	var data struct {
		Ticks []tickRow `json:"ticks"`
	}
	vars := map[string]any{
		"pool":    pool.Address,
		"tickIdx": strconv.FormatInt(int64(key.TickIdx), 10),
		"block":   key.BlockNumber,
	}
	if err := c.query(ctx, c.endpoint, "tick by filter", tickByFilterQuery, vars, &data); err != nil {
		return nil, err
	}
	if len(data.Ticks) == 0 {
		return nil, nil
	}
	return data.Ticks[0].snapshot(key)
}

func (r tickRow) snapshot(key model.TickKey) (*model.TickSnapshot, error) {
	if r.TickIdx != "" {
		idx, err := strconv.ParseInt(r.TickIdx.String(), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse tickIdx %q: %w", r.TickIdx, err)
		}
		if int32(idx) != key.TickIdx {
			return nil, fmt.Errorf("indexer returned tick %d for %s", idx, key)
		}
	}
	out0, err := clmm.ParseX128(r.FeeGrowthOutside0X128)
	if err != nil {
		return nil, fmt.Errorf("parse feeGrowthOutside0X128: %w", err)
	}
	out1, err := clmm.ParseX128(r.FeeGrowthOutside1X128)
	if err != nil {
		return nil, fmt.Errorf("parse feeGrowthOutside1X128: %w", err)
	}
	return &model.TickSnapshot{
		BlockNumber:           key.BlockNumber,
		TickIdx:               key.TickIdx,
		FeeGrowthOutside0X128: out0,
		FeeGrowthOutside1X128: out1,
	}, nil
}
