package simulate

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"lpsim/internal/apperr"
	"lpsim/internal/clmm"
	"lpsim/internal/model"
)

// Calculation price strategies.
const (
	PriceCurrent  = "current"
	PriceWeighted = "weighted"
	PricePeak     = "peak"
	PriceCustom   = "custom"
)

// PriceChoice is a resolved calculation price.
type PriceChoice struct {
	Strategy string          `json:"strategy"`
	Tick     *int32          `json:"tick,omitempty"`
	Price    decimal.Decimal `json:"price"`
}

// ValidatePriceStrategy rejects unknown strategies and the curve based
// strategies on full-range positions.
func ValidatePriceStrategy(strategy string, rng TickRange, custom *decimal.Decimal) error {
	switch strategy {
	case PriceCurrent:
	case PriceWeighted, PricePeak:
		if rng.FullRange {
			return apperr.Input("price_strategy", "%s is not available for full-range positions", strategy)
		}
	case PriceCustom:
		if custom == nil || custom.Sign() <= 0 {
			return apperr.Input("custom_price", "a positive custom price is required")
		}
	default:
		return apperr.Input("price_strategy", "unknown strategy %q", strategy)
	}
	return nil
}

// ResolveCalculationPrice picks the price used to value token0 and to split
// deposits. curve is only consulted by the weighted and peak strategies.
func ResolveCalculationPrice(pool model.Pool, strategy string, custom *decimal.Decimal, currentTick int32, rng TickRange, curve *clmm.LiquidityCurve) (PriceChoice, error) {
	if err := ValidatePriceStrategy(strategy, rng, custom); err != nil {
		return PriceChoice{}, err
	}

	switch strategy {
	case PriceCustom:
		return PriceChoice{Strategy: strategy, Price: *custom}, nil
	case PriceCurrent:
		return tickPrice(pool, strategy, currentTick), nil
	}

	points := curve.Points(rng.Lower, rng.Upper)
	if len(points) == 0 {
		return PriceChoice{}, apperr.DataNotFound(apperr.ReasonNoTicksInRange, "no initialized ticks inside the position range", map[string]any{
			"tick_lower": rng.Lower,
			"tick_upper": rng.Upper,
			"strategy":   strategy,
		})
	}

	if strategy == PricePeak {
		return tickPrice(pool, strategy, peakTick(points, currentTick)), nil
	}

	weighted, ok := weightedTick(points)
	if !ok {
		return PriceChoice{}, apperr.DataNotFound(apperr.ReasonNoTicksInRange, "no active liquidity inside the position range", map[string]any{
			"tick_lower": rng.Lower,
			"tick_upper": rng.Upper,
			"strategy":   strategy,
		})
	}
	return tickPrice(pool, strategy, weighted), nil
}

// peakTick returns the tick with the highest active liquidity. Ties go to
// the tick closest to current, then to the lower tick.
func peakTick(points []clmm.CurvePoint, current int32) int32 {
	best := points[0]
	for _, p := range points[1:] {
		switch cmp := p.Liquidity.Cmp(best.Liquidity); {
		case cmp > 0:
			best = p
		case cmp == 0:
			dp, db := tickDistance(p.Tick, current), tickDistance(best.Tick, current)
			if dp < db || (dp == db && p.Tick < best.Tick) {
				best = p
			}
		}
	}
	return best.Tick
}

// weightedTick is sum(tick*L)/sum(L), rounded to the nearest tick.
func weightedTick(points []clmm.CurvePoint) (int32, bool) {
	num := new(big.Int)
	den := new(big.Int)
	for _, p := range points {
		num.Add(num, new(big.Int).Mul(big.NewInt(int64(p.Tick)), p.Liquidity))
		den.Add(den, p.Liquidity)
	}
	if den.Sign() <= 0 {
		return 0, false
	}
	avg, _ := new(big.Rat).SetFrac(num, den).Float64()
	return int32(math.Round(avg)), true
}

func tickPrice(pool model.Pool, strategy string, tick int32) PriceChoice {
	t := tick
	return PriceChoice{
		Strategy: strategy,
		Tick:     &t,
		Price:    decimal.NewFromFloat(clmm.TickToPrice(tick, pool.Token0Decimals, pool.Token1Decimals)),
	}
}

func tickDistance(a, b int32) int64 {
	d := int64(a) - int64(b)
	if d < 0 {
		return -d
	}
	return d
}
