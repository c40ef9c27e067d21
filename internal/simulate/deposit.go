package simulate

import (
	"github.com/shopspring/decimal"

	"lpsim/internal/apperr"
)

var two = decimal.NewFromInt(2)

// Holdings are the position's token amounts (whole tokens) and USD value.
type Holdings struct {
	Amount0    decimal.Decimal `json:"amount0"`
	Amount1    decimal.Decimal `json:"amount1"`
	DepositUSD decimal.Decimal `json:"deposit_usd"`
}

// DeriveHoldings fills in missing amounts or deposit at price (token1 per
// token0). Token1 is treated as the USD quote.
func DeriveHoldings(spec PositionSpec, price decimal.Decimal, w *Warnings) (Holdings, error) {
	if price.Sign() <= 0 {
		return Holdings{}, apperr.Input("calculation_price", "must be positive")
	}
	fields := []struct {
		name  string
		value *decimal.Decimal
	}{
		{"amount0", spec.Amount0},
		{"amount1", spec.Amount1},
		{"deposit_usd", spec.DepositUSD},
	}
	for _, f := range fields {
		if f.value != nil && f.value.Sign() < 0 {
			return Holdings{}, apperr.Input(f.name, "must not be negative")
		}
	}

	var h Holdings
	switch {
	case spec.Amount0 == nil && spec.Amount1 == nil:
		if spec.DepositUSD == nil {
			return Holdings{}, apperr.Input("amounts", "token amounts or deposit_usd are required")
		}
		half := spec.DepositUSD.Div(two)
		h.Amount1 = half
		h.Amount0 = half.Div(price)
		w.Add(WarnAmountsFromDeposit, "token amounts derived from a 50/50 split of deposit_usd at price %s", price.String())
	case spec.Amount0 == nil:
		h.Amount1 = *spec.Amount1
		h.Amount0 = h.Amount1.Div(price)
		w.Add(WarnAmount0Derived, "amount0 derived from amount1 at price %s", price.String())
	case spec.Amount1 == nil:
		h.Amount0 = *spec.Amount0
		h.Amount1 = h.Amount0.Mul(price)
		w.Add(WarnAmount1Derived, "amount1 derived from amount0 at price %s", price.String())
	default:
		h.Amount0 = *spec.Amount0
		h.Amount1 = *spec.Amount1
	}

	if spec.DepositUSD != nil {
		h.DepositUSD = *spec.DepositUSD
	} else {
		h.DepositUSD = h.Amount1.Add(h.Amount0.Mul(price))
		w.Add(WarnDepositDerived, "deposit_usd derived from token amounts at price %s", price.String())
	}
	return h, nil
}
