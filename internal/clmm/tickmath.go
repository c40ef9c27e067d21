// Package clmm implements the concentrated-liquidity math shared by both
// simulators: tick/price conversions, the sparse liquidity curve, position
// liquidity and 256-bit fee-growth accounting.
package clmm

import (
	"math"
	"math/big"

	"lpsim/internal/apperr"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272

	// tickSnapEpsilon absorbs float error in ln/exp round trips so an exact
	// tick price maps back to the same tick.
	tickSnapEpsilon = 1e-8
)

var (
	lnBase = math.Log(1.0001)
	q96    = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))
)

// TickToPrice returns the token1-per-token0 price at tick, adjusted for decimals.
func TickToPrice(tick int32, dec0, dec1 uint8) float64 {
	return math.Exp(float64(tick)*lnBase) * decimalScale(dec0, dec1)
}

// TickToSqrtPrice returns sqrt(1.0001^tick) in raw (undecimalised) units.
func TickToSqrtPrice(tick int32) float64 {
	return math.Exp(float64(tick) * lnBase / 2)
}

// PriceToTickFloor returns the greatest tick whose price does not exceed price.
func PriceToTickFloor(price float64, dec0, dec1 uint8) (int32, error) {
	x, err := fractionalTick(price, dec0, dec1)
	if err != nil {
		return 0, err
	}
	return clampTick(math.Floor(x)), nil
}

// PriceToTickCeil returns the smallest tick whose price is not below price.
func PriceToTickCeil(price float64, dec0, dec1 uint8) (int32, error) {
	x, err := fractionalTick(price, dec0, dec1)
	if err != nil {
		return 0, err
	}
	return clampTick(math.Ceil(x)), nil
}

func fractionalTick(price float64, dec0, dec1 uint8) (float64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, apperr.Input("price", "must be a positive finite number")
	}
	x := math.Log(price/decimalScale(dec0, dec1)) / lnBase
	if r := math.Round(x); math.Abs(x-r) < tickSnapEpsilon {
		x = r
	}
	return x, nil
}

// SqrtPriceFromX96 decodes an on-chain Q64.96 sqrt price.
func SqrtPriceFromX96(raw *big.Int) (float64, error) {
	if raw == nil || raw.Sign() <= 0 {
		return 0, apperr.Input("sqrt_price_x96", "must be strictly positive")
	}
	val := new(big.Float).SetInt(raw)
	val.Quo(val, q96)
	out, _ := val.Float64()
	return out, nil
}

// PriceFromSqrtPriceX96 converts a Q64.96 sqrt price into a decimal-adjusted price.
func PriceFromSqrtPriceX96(raw *big.Int, dec0, dec1 uint8) (float64, error) {
	sqrt, err := SqrtPriceFromX96(raw)
	if err != nil {
		return 0, err
	}
	return sqrt * sqrt * decimalScale(dec0, dec1), nil
}

// AlignDown rounds tick down to a multiple of spacing.
func AlignDown(tick, spacing int32) int32 {
	if spacing <= 1 {
		return tick
	}
	r := tick % spacing
	if r < 0 {
		r += spacing
	}
	return tick - r
}

// AlignUp rounds tick up to a multiple of spacing.
func AlignUp(tick, spacing int32) int32 {
	aligned := AlignDown(tick, spacing)
	if aligned == tick {
		return tick
	}
	return aligned + spacing
}

// UsableTickRange returns the widest spacing-aligned range inside the tick domain.
func UsableTickRange(spacing int32) (int32, int32) {
	if spacing <= 0 {
		spacing = 1
	}
	return AlignUp(MinTick, spacing), AlignDown(MaxTick, spacing)
}

func decimalScale(dec0, dec1 uint8) float64 {
	return math.Pow10(int(dec0) - int(dec1))
}

func clampTick(x float64) int32 {
	if x < float64(MinTick) {
		return MinTick
	}
	if x > float64(MaxTick) {
		return MaxTick
	}
	return int32(x)
}
