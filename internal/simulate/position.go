package simulate

import (
	"github.com/shopspring/decimal"

	"lpsim/internal/apperr"
	"lpsim/internal/clmm"
	"lpsim/internal/model"
)

// PositionSpec describes the simulated position. The range is given by
// explicit ticks, by a price range or as full range, checked in that order
// of precedence: FullRange, ticks, prices.
type PositionSpec struct {
	TickLower  *int32
	TickUpper  *int32
	PriceLower *decimal.Decimal
	PriceUpper *decimal.Decimal
	FullRange  bool

	Amount0    *decimal.Decimal
	Amount1    *decimal.Decimal
	DepositUSD *decimal.Decimal
}

// TickRange is a resolved position range.
type TickRange struct {
	Lower     int32 `json:"tick_lower"`
	Upper     int32 `json:"tick_upper"`
	FullRange bool  `json:"full_range"`
}

// ResolveRange turns a position spec into spacing-aligned ticks.
func ResolveRange(pool model.Pool, spec PositionSpec, w *Warnings) (TickRange, error) {
	spacing := pool.TickSpacing
	if spacing <= 0 {
		spacing = 1
	}
	minUsable, maxUsable := clmm.UsableTickRange(spacing)

	switch {
	case spec.FullRange:
		// Rounded inward: outward multiples of the spacing would leave [MinTick, MaxTick].
		return TickRange{Lower: minUsable, Upper: maxUsable, FullRange: true}, nil

	case spec.TickLower != nil || spec.TickUpper != nil:
		if spec.TickLower == nil || spec.TickUpper == nil {
			return TickRange{}, apperr.Input("tick_range", "both tick_lower and tick_upper are required")
		}
		lower, upper := *spec.TickLower, *spec.TickUpper
		if lower >= upper {
			return TickRange{}, apperr.Input("tick_range", "tick_lower %d must be below tick_upper %d", lower, upper)
		}
		if lower < clmm.MinTick || upper > clmm.MaxTick {
			return TickRange{}, apperr.Input("tick_range", "ticks must be within [%d, %d]", clmm.MinTick, clmm.MaxTick)
		}
		alignedLower := clampTick(clmm.AlignDown(lower, spacing), minUsable, maxUsable)
		alignedUpper := clampTick(clmm.AlignUp(upper, spacing), minUsable, maxUsable)
		if alignedLower != lower || alignedUpper != upper {
			w.Add(WarnTickAligned, "ticks [%d, %d] aligned to spacing %d as [%d, %d]", lower, upper, spacing, alignedLower, alignedUpper)
		}
		if alignedLower >= alignedUpper {
			return TickRange{}, apperr.Input("tick_range", "range collapses after alignment to spacing %d", spacing)
		}
		return TickRange{Lower: alignedLower, Upper: alignedUpper}, nil

	case spec.PriceLower != nil || spec.PriceUpper != nil:
		if spec.PriceLower == nil || spec.PriceUpper == nil {
			return TickRange{}, apperr.Input("price_range", "both price_lower and price_upper are required")
		}
		if !spec.PriceLower.LessThan(*spec.PriceUpper) {
			return TickRange{}, apperr.Input("price_range", "price_lower must be below price_upper")
		}
		lower, err := clmm.PriceToTickFloor(spec.PriceLower.InexactFloat64(), pool.Token0Decimals, pool.Token1Decimals)
		if err != nil {
			return TickRange{}, err
		}
		upper, err := clmm.PriceToTickCeil(spec.PriceUpper.InexactFloat64(), pool.Token0Decimals, pool.Token1Decimals)
		if err != nil {
			return TickRange{}, err
		}
		lower = clampTick(clmm.AlignDown(lower, spacing), minUsable, maxUsable)
		upper = clampTick(clmm.AlignUp(upper, spacing), minUsable, maxUsable)
		if lower >= upper {
			return TickRange{}, apperr.Input("price_range", "price range is narrower than one tick spacing")
		}
		return TickRange{Lower: lower, Upper: upper}, nil

	default:
		return TickRange{}, apperr.Input("range", "one of full_range, tick range or price range is required")
	}
}

// UserLiquidity returns the position's L at the given raw sqrt price.
func UserLiquidity(pool model.Pool, rng TickRange, h Holdings, sqrtCurrent float64, w *Warnings) decimal.Decimal {
	l := clmm.LiquidityForAmounts(
		h.Amount0, h.Amount1,
		pool.Token0Decimals, pool.Token1Decimals,
		decimal.NewFromFloat(sqrtCurrent),
		decimal.NewFromFloat(clmm.TickToSqrtPrice(rng.Lower)),
		decimal.NewFromFloat(clmm.TickToSqrtPrice(rng.Upper)),
	)
	if l.Sign() <= 0 {
		w.Add(WarnPositionLiquidityZero, "position liquidity is zero for the given amounts and range")
		return decimal.Zero
	}
	return l
}

// snapshotSqrtPrice prefers the recorded sqrt price and falls back to the tick.
func snapshotSqrtPrice(s *model.PoolSnapshot) float64 {
	if s.SqrtPriceX96 != nil && s.SqrtPriceX96.Sign() > 0 {
		if v, err := clmm.SqrtPriceFromX96(s.SqrtPriceX96); err == nil {
			return v
		}
	}
	return clmm.TickToSqrtPrice(*s.Tick)
}

func clampTick(tick, lo, hi int32) int32 {
	if tick < lo {
		return lo
	}
	if tick > hi {
		return hi
	}
	return tick
}
