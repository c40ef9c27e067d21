// Package simulate estimates the fee income and APR of a concentrated
// liquidity position, either from hourly pool averages or exactly from
// fee-growth counters recorded at two blocks.
package simulate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lpsim/internal/clmm"
	"lpsim/internal/model"
)

// curveMargin widens initialized-tick queries so the curve stays valid a
// little outside the requested window.
const curveMargin int32 = 10_000

// Service runs both simulators against a store.
type Service struct {
	store   Store
	ensurer TickEnsurer
	logger  *zap.Logger
}

// NewService wires a simulator. ensurer may be nil when tick snapshots are
// known to be present.
func NewService(store Store, ensurer TickEnsurer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, ensurer: ensurer, logger: logger}
}

func (s *Service) loadCurve(ctx context.Context, pool model.Pool, rng TickRange) (*clmm.LiquidityCurve, error) {
	lo := int64(rng.Lower) - int64(curveMargin)
	hi := int64(rng.Upper) + int64(curveMargin)
	if lo < int64(clmm.MinTick) {
		lo = int64(clmm.MinTick)
	}
	if hi > int64(clmm.MaxTick) {
		hi = int64(clmm.MaxTick)
	}
	ticks, err := s.store.InitializedTicks(ctx, pool, int32(lo), int32(hi))
	if err != nil {
		return nil, fmt.Errorf("load initialized ticks: %w", err)
	}
	return clmm.NewLiquidityCurve(ticks), nil
}
