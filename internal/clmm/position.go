package clmm

import "github.com/shopspring/decimal"

// LiquidityForAmounts converts token amounts and sqrt-price bounds into the
// liquidity L of a position. Amounts are in whole tokens and are scaled to raw
// units by their decimals; sqrt prices are raw (see TickToSqrtPrice).
//
// Invalid inputs yield zero rather than an error; callers surface a warning.
func LiquidityForAmounts(amount0, amount1 decimal.Decimal, dec0, dec1 uint8, sqrtCurrent, sqrtLower, sqrtUpper decimal.Decimal) decimal.Decimal {
	if sqrtCurrent.Sign() <= 0 || sqrtLower.Sign() <= 0 || sqrtUpper.Sign() <= 0 {
		return decimal.Zero
	}
	if sqrtLower.GreaterThanOrEqual(sqrtUpper) {
		return decimal.Zero
	}
	if amount0.Sign() < 0 || amount1.Sign() < 0 {
		return decimal.Zero
	}

	raw0 := amount0.Shift(int32(dec0))
	raw1 := amount1.Shift(int32(dec1))

	switch {
	case sqrtCurrent.LessThanOrEqual(sqrtLower):
		return liquidity0(raw0, sqrtLower, sqrtUpper)
	case sqrtCurrent.GreaterThanOrEqual(sqrtUpper):
		return liquidity1(raw1, sqrtLower, sqrtUpper)
	default:
		l0 := liquidity0(raw0, sqrtCurrent, sqrtUpper)
		l1 := liquidity1(raw1, sqrtLower, sqrtCurrent)
		switch {
		case l0.Sign() > 0 && l1.Sign() > 0:
			return decimal.Min(l0, l1)
		case l0.Sign() > 0:
			return l0
		case l1.Sign() > 0:
			return l1
		default:
			return decimal.Zero
		}
	}
}

func liquidity0(raw0, sqrtA, sqrtB decimal.Decimal) decimal.Decimal {
	if raw0.Sign() <= 0 {
		return decimal.Zero
	}
	return raw0.Mul(sqrtA).Mul(sqrtB).Div(sqrtB.Sub(sqrtA))
}

func liquidity1(raw1, sqrtA, sqrtB decimal.Decimal) decimal.Decimal {
	if raw1.Sign() <= 0 {
		return decimal.Zero
	}
	return raw1.Div(sqrtB.Sub(sqrtA))
}
