package simulate

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lpsim/internal/apperr"
	"lpsim/internal/clmm"
	"lpsim/internal/model"
)

const (
	defaultLookbackDays = 7
	secondsPerDay       = 86400
)

var (
	secondsDay  = decimal.NewFromInt(secondsPerDay)
	secondsYear = decimal.NewFromInt(365 * secondsPerDay)
	monthsYear  = decimal.NewFromInt(12)
)

// ExactFeeInput holds the counters observed at blocks A and B.
type ExactFeeInput struct {
	SnapshotA model.PoolSnapshot
	SnapshotB model.PoolSnapshot
	LowerA    model.TickSnapshot
	UpperA    model.TickSnapshot
	LowerB    model.TickSnapshot
	UpperB    model.TickSnapshot

	TickLower int32
	TickUpper int32

	UserLiquidity    decimal.Decimal
	Token0Decimals   uint8
	Token1Decimals   uint8
	CalculationPrice decimal.Decimal
	DepositUSD       decimal.Decimal
}

// ExactFees is the arithmetic outcome of an exact simulation.
type ExactFees struct {
	DeltaInside0  *uint256.Int
	DeltaInside1  *uint256.Int
	FeesToken0    decimal.Decimal
	FeesToken1    decimal.Decimal
	FeesPeriodUSD decimal.Decimal
	SecondsDelta  int64
	Fees24h       decimal.Decimal
	Monthly       decimal.Decimal
	Yearly        decimal.Decimal
	FeeAPR        decimal.Decimal
}

// ComputeExactFees derives the position's fee income between the two
// snapshots from fee growth inside its range.
func ComputeExactFees(in ExactFeeInput) (ExactFees, error) {
	if in.SnapshotA.Tick == nil || in.SnapshotB.Tick == nil {
		return ExactFees{}, apperr.DataNotFound(apperr.ReasonSnapshotTickMissing, "snapshot has no tick", map[string]any{
			"block_a": in.SnapshotA.BlockNumber,
			"block_b": in.SnapshotB.BlockNumber,
		})
	}
	secondsDelta := in.SnapshotB.Timestamp - in.SnapshotA.Timestamp
	if secondsDelta <= 0 {
		return ExactFees{}, apperr.DataNotFound(apperr.ReasonNonPositiveDelta, "snapshots are not ordered in time", map[string]any{
			"timestamp_a": in.SnapshotA.Timestamp,
			"timestamp_b": in.SnapshotB.Timestamp,
		})
	}

	tickA, tickB := *in.SnapshotA.Tick, *in.SnapshotB.Tick
	inside0A := clmm.FeeGrowthInside(in.SnapshotA.FeeGrowthGlobal0X128, in.LowerA.FeeGrowthOutside0X128, in.UpperA.FeeGrowthOutside0X128, tickA, in.TickLower, in.TickUpper)
	inside1A := clmm.FeeGrowthInside(in.SnapshotA.FeeGrowthGlobal1X128, in.LowerA.FeeGrowthOutside1X128, in.UpperA.FeeGrowthOutside1X128, tickA, in.TickLower, in.TickUpper)
	inside0B := clmm.FeeGrowthInside(in.SnapshotB.FeeGrowthGlobal0X128, in.LowerB.FeeGrowthOutside0X128, in.UpperB.FeeGrowthOutside0X128, tickB, in.TickLower, in.TickUpper)
	inside1B := clmm.FeeGrowthInside(in.SnapshotB.FeeGrowthGlobal1X128, in.LowerB.FeeGrowthOutside1X128, in.UpperB.FeeGrowthOutside1X128, tickB, in.TickLower, in.TickUpper)

	delta0 := clmm.SubMod(inside0B, inside0A)
	delta1 := clmm.SubMod(inside1B, inside1A)
	for token, delta := range []*uint256.Int{delta0, delta1} {
		if clmm.IsNegativeDelta(delta) {
			return ExactFees{}, apperr.DataNotFound(apperr.ReasonNegativeFeeDelta, "fee growth inside decreased between blocks", map[string]any{
				"token":   token,
				"block_a": in.SnapshotA.BlockNumber,
				"block_b": in.SnapshotB.BlockNumber,
			})
		}
	}

	out := ExactFees{
		DeltaInside0: delta0,
		DeltaInside1: delta1,
		SecondsDelta: secondsDelta,
		FeesToken0:   clmm.FeesFromDeltaInside(delta0, in.UserLiquidity).Shift(-int32(in.Token0Decimals)),
		FeesToken1:   clmm.FeesFromDeltaInside(delta1, in.UserLiquidity).Shift(-int32(in.Token1Decimals)),
	}
	out.FeesPeriodUSD = out.FeesToken1.Add(out.FeesToken0.Mul(in.CalculationPrice))

	seconds := decimal.NewFromInt(secondsDelta)
	out.Fees24h = out.FeesPeriodUSD.Mul(secondsDay).Div(seconds)
	out.Yearly = out.FeesPeriodUSD.Mul(secondsYear).Div(seconds)
	out.Monthly = out.Yearly.Div(monthsYear)
	out.FeeAPR = decimal.Zero
	if in.DepositUSD.Sign() > 0 {
		out.FeeAPR = out.Yearly.Div(in.DepositUSD)
	}
	return out, nil
}

// ExactRequest asks for an exact block-delta simulation.
type ExactRequest struct {
	Pool          model.PoolRef
	Position      PositionSpec
	LookbackDays  int
	PriceStrategy string
	CustomPrice   *decimal.Decimal
}

// SimulateExact computes fees between the latest snapshot and the snapshot
// LookbackDays earlier, backfilling tick snapshots when needed.
func (s *Service) SimulateExact(ctx context.Context, req ExactRequest) (*Result, error) {
	lookback := req.LookbackDays
	if lookback <= 0 {
		lookback = defaultLookbackDays
	}
	strategy := req.PriceStrategy
	if strategy == "" {
		strategy = PriceCurrent
	}

	pool, err := s.store.ResolvePool(ctx, req.Pool)
	if err != nil {
		return nil, err
	}

	var warnings Warnings
	rng, err := ResolveRange(pool, req.Position, &warnings)
	if err != nil {
		return nil, err
	}
	if err := ValidatePriceStrategy(strategy, rng, req.CustomPrice); err != nil {
		return nil, err
	}

	snapB, snapA, err := s.snapshotPair(ctx, pool, lookback)
	if err != nil {
		return nil, err
	}
	tickB := *snapB.Tick

	var curve *clmm.LiquidityCurve
	if strategy == PriceWeighted || strategy == PricePeak {
		if curve, err = s.loadCurve(ctx, pool, rng); err != nil {
			return nil, err
		}
	}
	price, err := ResolveCalculationPrice(pool, strategy, req.CustomPrice, tickB, rng, curve)
	if err != nil {
		return nil, err
	}

	holdings, err := DeriveHoldings(req.Position, price.Price, &warnings)
	if err != nil {
		return nil, err
	}
	userL := UserLiquidity(pool, rng, holdings, snapshotSqrtPrice(snapB), &warnings)

	blocks := []uint64{snapA.BlockNumber, snapB.BlockNumber}
	ticks := []int32{rng.Lower, rng.Upper}
	if s.ensurer != nil {
		if err := s.ensurer.Ensure(ctx, pool, blocks, ticks); err != nil {
			return nil, err
		}
	}
	tickSnaps, err := s.loadTickSnapshots(ctx, pool, blocks, ticks)
	if err != nil {
		return nil, err
	}

	fees, err := ComputeExactFees(ExactFeeInput{
		SnapshotA:        *snapA,
		SnapshotB:        *snapB,
		LowerA:           tickSnaps[model.TickKey{BlockNumber: snapA.BlockNumber, TickIdx: rng.Lower}],
		UpperA:           tickSnaps[model.TickKey{BlockNumber: snapA.BlockNumber, TickIdx: rng.Upper}],
		LowerB:           tickSnaps[model.TickKey{BlockNumber: snapB.BlockNumber, TickIdx: rng.Lower}],
		UpperB:           tickSnaps[model.TickKey{BlockNumber: snapB.BlockNumber, TickIdx: rng.Upper}],
		TickLower:        rng.Lower,
		TickUpper:        rng.Upper,
		UserLiquidity:    userL,
		Token0Decimals:   pool.Token0Decimals,
		Token1Decimals:   pool.Token1Decimals,
		CalculationPrice: price.Price,
		DepositUSD:       holdings.DepositUSD,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("exact simulation computed",
		zap.String("pool", pool.Address),
		zap.Uint64("block_a", snapA.BlockNumber),
		zap.Uint64("block_b", snapB.BlockNumber),
		zap.Int64("seconds_delta", fees.SecondsDelta),
		zap.String("fees_period_usd", fees.FeesPeriodUSD.String()),
	)

	return &Result{
		Strategy:         StrategyExact,
		Pool:             pool,
		Range:            rng,
		Holdings:         holdings,
		UserLiquidity:    userL,
		CalculationPrice: price,
		Fees24h:          fees.Fees24h,
		Monthly:          fees.Monthly,
		Yearly:           fees.Yearly,
		FeeAPR:           fees.FeeAPR,
		Meta: &ExactMeta{
			BlockA:        snapA.BlockNumber,
			BlockB:        snapB.BlockNumber,
			TimestampA:    snapA.Timestamp,
			TimestampB:    snapB.Timestamp,
			SecondsDelta:  fees.SecondsDelta,
			DeltaInside0:  fees.DeltaInside0.Dec(),
			DeltaInside1:  fees.DeltaInside1.Dec(),
			FeesToken0:    fees.FeesToken0,
			FeesToken1:    fees.FeesToken1,
			FeesPeriodUSD: fees.FeesPeriodUSD,
		},
		Warnings: warnings.List(),
	}, nil
}

// snapshotPair returns the latest snapshot and the one lookbackDays before it.
func (s *Service) snapshotPair(ctx context.Context, pool model.Pool, lookbackDays int) (*model.PoolSnapshot, *model.PoolSnapshot, error) {
	snapB, err := s.store.LatestSnapshot(ctx, pool)
	if err != nil {
		return nil, nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	if snapB == nil {
		return nil, nil, apperr.DataNotFound(apperr.ReasonSnapshotMissing, "pool has no snapshots", map[string]any{"pool": pool.Address})
	}
	target := snapB.Timestamp - int64(lookbackDays)*secondsPerDay
	snapA, err := s.store.SnapshotAtOrBefore(ctx, pool, target)
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot at %d: %w", target, err)
	}
	if snapA == nil {
		return nil, nil, apperr.DataNotFound(apperr.ReasonSnapshotMissing, "no snapshot at or before lookback start", map[string]any{
			"pool":      pool.Address,
			"timestamp": target,
		})
	}
	for _, snap := range []*model.PoolSnapshot{snapA, snapB} {
		if snap.Tick == nil {
			return nil, nil, apperr.DataNotFound(apperr.ReasonSnapshotTickMissing, "snapshot has no tick", map[string]any{
				"pool":  pool.Address,
				"block": snap.BlockNumber,
			})
		}
	}
	if snapB.Timestamp-snapA.Timestamp <= 0 {
		return nil, nil, apperr.DataNotFound(apperr.ReasonNonPositiveDelta, "snapshots are not ordered in time", map[string]any{
			"pool":        pool.Address,
			"timestamp_a": snapA.Timestamp,
			"timestamp_b": snapB.Timestamp,
		})
	}
	return snapB, snapA, nil
}

func (s *Service) loadTickSnapshots(ctx context.Context, pool model.Pool, blocks []uint64, ticks []int32) (map[model.TickKey]model.TickSnapshot, error) {
	out := make(map[model.TickKey]model.TickSnapshot, len(blocks)*len(ticks))
	var missing []string
	for _, block := range blocks {
		for _, tick := range ticks {
			key := model.TickKey{BlockNumber: block, TickIdx: tick}
			snap, err := s.store.TickSnapshot(ctx, pool, key)
			if err != nil {
				return nil, fmt.Errorf("load tick snapshot %s: %w", key, err)
			}
			if snap == nil {
				missing = append(missing, key.String())
				continue
			}
			out[key] = *snap
		}
	}
	if len(missing) > 0 {
		return nil, apperr.DataNotFound(apperr.ReasonTickSnapshotsMissing, "tick snapshots missing", map[string]any{
			"pool":    pool.Address,
			"missing": missing,
		})
	}
	return out, nil
}
