package simulate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lpsim/internal/apperr"
	"lpsim/internal/clmm"
	"lpsim/internal/model"
)

// Tick source for the historical engine.
const (
	ModeSnapshotTick = "snapshot"
	ModeCurrentTick  = "current"
)

const (
	defaultLookbackHours = 168
	defaultHorizonHours  = 24
)

var (
	hundred    = decimal.NewFromInt(100)
	hoursInDay = decimal.NewFromInt(24)
	daysMonth  = decimal.NewFromInt(30)
	daysYear   = decimal.NewFromInt(365)
)

// HistoricalInput is everything the historical-average engine needs.
type HistoricalInput struct {
	Fees  []model.HourlyFee
	Ticks []model.HourlyTick

	Mode        string
	CurrentTick int32
	Range       TickRange

	UserLiquidity       decimal.Decimal
	Curve               *clmm.LiquidityCurve
	LatestPoolLiquidity *big.Int

	HorizonHours int
	DepositUSD   decimal.Decimal
}

// HistoricalDiagnostics describes how the position fared over the series.
type HistoricalDiagnostics struct {
	HoursTotal         int             `json:"hours_total"`
	HoursInRange       int             `json:"hours_in_range"`
	PercentTimeInRange decimal.Decimal `json:"percent_time_in_range"`
	AvgShareInRange    decimal.Decimal `json:"avg_share_in_range"`
	PeriodHours        int             `json:"period_hours"`
	FeesPeriodUSD      decimal.Decimal `json:"fees_period_usd"`
}

// HistoricalEstimate is the engine output.
type HistoricalEstimate struct {
	Fees24h     decimal.Decimal
	Monthly     decimal.Decimal
	Yearly      decimal.Decimal
	FeeAPR      decimal.Decimal
	HourlyFees  []decimal.Decimal
	Diagnostics *HistoricalDiagnostics
	Warnings    Warnings
}

// EstimateHistorical weights each hour's pool fees by the share the position
// would have held of in-range liquidity, then annualises the most recent
// horizon.
func EstimateHistorical(in HistoricalInput) HistoricalEstimate {
	var out HistoricalEstimate
	if len(in.Fees) == 0 {
		out.Fees24h, out.Monthly, out.Yearly, out.FeeAPR = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
		return out
	}

	ticksByHour := make(map[int64]model.HourlyTick, len(in.Ticks))
	for _, t := range in.Ticks {
		ticksByHour[t.Hour.Unix()] = t
	}

	userFees := make([]decimal.Decimal, len(in.Fees))
	inRangeHours := 0
	shareSum := decimal.Zero
	for i, row := range in.Fees {
		// The mode only picks the tick; recorded liquidity applies in both.
		tick := in.CurrentTick
		var recorded *big.Int
		hourTick, ok := ticksByHour[row.Hour.Unix()]
		if ok {
			recorded = hourTick.Liquidity
		}
		if in.Mode != ModeCurrentTick {
			if ok {
				tick = hourTick.Tick
			} else {
				out.Warnings.Add(WarnHourTickMissing, "no recorded tick for some hours, current tick %d used instead", in.CurrentTick)
			}
		}

		inRange := in.Range.FullRange || (in.Range.Lower <= tick && tick <= in.Range.Upper)
		if !inRange {
			userFees[i] = decimal.Zero
			continue
		}

		poolL := activePoolLiquidity(recorded, tick, in.Curve, in.LatestPoolLiquidity, &out.Warnings)
		share := decimal.Zero
		if in.UserLiquidity.Sign() > 0 {
			share = in.UserLiquidity.Div(decimal.NewFromBigInt(poolL, 0).Add(in.UserLiquidity))
		}
		inRangeHours++
		shareSum = shareSum.Add(share)
		userFees[i] = row.FeesUSD.Mul(share)
	}

	hoursTotal := len(in.Fees)
	diag := &HistoricalDiagnostics{
		HoursTotal:         hoursTotal,
		HoursInRange:       inRangeHours,
		PercentTimeInRange: decimal.NewFromInt(int64(inRangeHours)).Mul(hundred).Div(decimal.NewFromInt(int64(hoursTotal))),
		AvgShareInRange:    decimal.Zero,
	}
	if inRangeHours > 0 {
		diag.AvgShareInRange = shareSum.Div(decimal.NewFromInt(int64(inRangeHours)))
	}

	period := in.HorizonHours
	if period <= 0 || period > hoursTotal {
		if period > hoursTotal {
			out.Warnings.Add(WarnHorizonClipped, "horizon of %d hours clipped to %d available hours", in.HorizonHours, hoursTotal)
		}
		period = hoursTotal
	}
	feesPeriod := decimal.Zero
	for _, fee := range userFees[hoursTotal-period:] {
		feesPeriod = feesPeriod.Add(fee)
	}
	diag.PeriodHours = period
	diag.FeesPeriodUSD = feesPeriod

	out.Fees24h = feesPeriod.Mul(hoursInDay).Div(decimal.NewFromInt(int64(period)))
	out.Monthly = out.Fees24h.Mul(daysMonth)
	out.Yearly = out.Fees24h.Mul(daysYear)
	out.FeeAPR = decimal.Zero
	if in.DepositUSD.Sign() > 0 {
		out.FeeAPR = out.Yearly.Div(in.DepositUSD)
	} else {
		out.Warnings.Add(WarnDepositMissing, "deposit_usd is zero, fee_apr reported as 0")
	}
	out.HourlyFees = userFees
	out.Diagnostics = diag
	return out
}

// activePoolLiquidity resolves in-range pool liquidity: the hour's recorded
// value, then the curve, then the latest snapshot, then zero.
func activePoolLiquidity(recorded *big.Int, tick int32, curve *clmm.LiquidityCurve, latest *big.Int, w *Warnings) *big.Int {
	if recorded != nil && recorded.Sign() > 0 {
		return recorded
	}
	if l := curve.ActiveLiquidityAt(tick); l.Sign() > 0 {
		w.Add(WarnLiquidityFallbackCurve, "hourly liquidity missing, reconstructed from initialized ticks")
		return l
	}
	if latest != nil && latest.Sign() > 0 {
		w.Add(WarnLiquidityFallbackLast, "hourly liquidity missing, latest pool liquidity used")
		return latest
	}
	w.Add(WarnLiquidityFallbackZero, "no pool liquidity available, position assumed to hold the whole range")
	return new(big.Int)
}

// HistoricalRequest asks for a historical-average estimate.
type HistoricalRequest struct {
	Pool          model.PoolRef
	Position      PositionSpec
	Mode          string
	LookbackHours int
	HorizonHours  int
}

// SimulateHistorical loads the pool's hourly series and runs EstimateHistorical.
func (s *Service) SimulateHistorical(ctx context.Context, req HistoricalRequest) (*Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeSnapshotTick
	}
	if mode != ModeSnapshotTick && mode != ModeCurrentTick {
		return nil, apperr.Input("mode", "unknown mode %q", req.Mode)
	}
	lookback := req.LookbackHours
	if lookback <= 0 {
		lookback = defaultLookbackHours
	}
	horizon := req.HorizonHours
	if horizon <= 0 {
		horizon = defaultHorizonHours
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

	latest, err := s.store.LatestSnapshot(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	if latest == nil {
		return nil, apperr.DataNotFound(apperr.ReasonSnapshotMissing, "pool has no snapshots", map[string]any{"pool": pool.Address})
	}
	if latest.Tick == nil {
		return nil, apperr.DataNotFound(apperr.ReasonSnapshotTickMissing, "latest snapshot has no tick", map[string]any{
			"pool":  pool.Address,
			"block": latest.BlockNumber,
		})
	}
	currentTick := *latest.Tick

	price := tickPrice(pool, PriceCurrent, currentTick)
	holdings, err := DeriveHoldings(req.Position, price.Price, &warnings)
	if err != nil {
		return nil, err
	}
	userL := UserLiquidity(pool, rng, holdings, snapshotSqrtPrice(latest), &warnings)

	fees, err := s.store.HourlyFees(ctx, pool, lookback)
	if err != nil {
		return nil, fmt.Errorf("load hourly fees: %w", err)
	}
	ticks, err := s.store.HourlyTicks(ctx, pool, lookback)
	if err != nil {
		return nil, fmt.Errorf("load hourly ticks: %w", err)
	}
	curve, err := s.loadCurve(ctx, pool, rng)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("historical inputs loaded",
		zap.String("pool", pool.Address),
		zap.Int("fee_hours", len(fees)),
		zap.Int("tick_hours", len(ticks)),
		zap.Int("curve_ticks", curve.Len()),
	)

	est := EstimateHistorical(HistoricalInput{
		Fees:                fees,
		Ticks:               ticks,
		Mode:                mode,
		CurrentTick:         currentTick,
		Range:               rng,
		UserLiquidity:       userL,
		Curve:               curve,
		LatestPoolLiquidity: latest.Liquidity,
		HorizonHours:        horizon,
		DepositUSD:          holdings.DepositUSD,
	})
	warnings.Merge(est.Warnings)

	return &Result{
		Strategy:         StrategyHistorical,
		Pool:             pool,
		Range:            rng,
		Holdings:         holdings,
		UserLiquidity:    userL,
		CalculationPrice: price,
		Fees24h:          est.Fees24h,
		Monthly:          est.Monthly,
		Yearly:           est.Yearly,
		FeeAPR:           est.FeeAPR,
		Diagnostics:      est.Diagnostics,
		Warnings:         warnings.List(),
	}, nil
}
