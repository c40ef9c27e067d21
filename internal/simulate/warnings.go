package simulate

import "fmt"

// Warning codes. Each one is reported at most once per result.
const (
	WarnHourTickMissing        = "hour_tick_missing"
	WarnLiquidityFallbackCurve = "liquidity_fallback_curve"
	WarnLiquidityFallbackLast  = "liquidity_fallback_latest"
	WarnLiquidityFallbackZero  = "liquidity_fallback_zero"
	WarnHorizonClipped         = "horizon_clipped"
	WarnDepositMissing         = "deposit_missing"
	WarnAmount0Derived         = "amount0_derived"
	WarnAmount1Derived         = "amount1_derived"
	WarnAmountsFromDeposit     = "amounts_derived_from_deposit"
	WarnDepositDerived         = "deposit_derived"
	WarnPositionLiquidityZero  = "position_liquidity_zero"
	WarnTickAligned            = "tick_aligned"
)

// Warning is an advisory attached to a result.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warnings is an append-only list deduplicated by code.
type Warnings struct {
	items []Warning
	seen  map[string]struct{}
}

// Add appends a warning unless one with the same code exists.
func (w *Warnings) Add(code, format string, args ...any) {
	if w.seen == nil {
		w.seen = make(map[string]struct{})
	}
	if _, ok := w.seen[code]; ok {
		return
	}
	w.seen[code] = struct{}{}
	w.items = append(w.items, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

// Merge appends other's warnings in order.
func (w *Warnings) Merge(other Warnings) {
	for _, item := range other.items {
		w.Add(item.Code, "%s", item.Message)
	}
}

// Has reports whether code was added.
func (w *Warnings) Has(code string) bool {
	_, ok := w.seen[code]
	return ok
}

// List returns a copy of the warnings in insertion order.
func (w *Warnings) List() []Warning {
	out := make([]Warning, len(w.items))
	copy(out, w.items)
	return out
}
