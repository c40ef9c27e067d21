package clmm

import (
	"math/big"
	"sort"

	"lpsim/internal/model"
)

// LiquidityCurve is the cumulative step function of liquidity deltas over
// initialized ticks. cumulative[i] is the liquidity active at and above
// ticks[i], assuming the curve starts at zero below the first boundary.
type LiquidityCurve struct {
	ticks      []int32
	cumulative []*big.Int
}

// CurvePoint is an initialized tick with the liquidity active from it upwards.
type CurvePoint struct {
	Tick      int32
	Liquidity *big.Int
}

// NewLiquidityCurve builds a curve from liquidity deltas in any order.
func NewLiquidityCurve(deltas []model.InitializedTick) *LiquidityCurve {
	sorted := make([]model.InitializedTick, len(deltas))
	copy(sorted, deltas)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TickIdx < sorted[j].TickIdx })

	curve := &LiquidityCurve{
		ticks:      make([]int32, 0, len(sorted)),
		cumulative: make([]*big.Int, 0, len(sorted)),
	}
	running := new(big.Int)
	for _, d := range sorted {
		if d.LiquidityNet != nil {
			running.Add(running, d.LiquidityNet)
		}
		n := len(curve.ticks)
		if n > 0 && curve.ticks[n-1] == d.TickIdx {
			curve.cumulative[n-1].Set(running)
			continue
		}
		curve.ticks = append(curve.ticks, d.TickIdx)
		curve.cumulative = append(curve.cumulative, new(big.Int).Set(running))
	}
	return curve
}

// Len returns the number of distinct boundaries.
func (c *LiquidityCurve) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ticks)
}

// ActiveLiquidityAt returns the in-range liquidity at tick, never negative.
func (c *LiquidityCurve) ActiveLiquidityAt(tick int32) *big.Int {
	if c.Len() == 0 {
		return new(big.Int)
	}
	// rightmost boundary <= tick
	idx := sort.Search(len(c.ticks), func(i int) bool { return c.ticks[i] > tick }) - 1
	if idx < 0 {
		return new(big.Int)
	}
	val := c.cumulative[idx]
	if val.Sign() < 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(val)
}

// Points returns the boundaries inside [lower, upper] with their active liquidity.
func (c *LiquidityCurve) Points(lower, upper int32) []CurvePoint {
	if c.Len() == 0 {
		return nil
	}
	start := sort.Search(len(c.ticks), func(i int) bool { return c.ticks[i] >= lower })
	out := make([]CurvePoint, 0)
	for i := start; i < len(c.ticks) && c.ticks[i] <= upper; i++ {
		liq := c.cumulative[i]
		if liq.Sign() < 0 {
			liq = new(big.Int)
		}
		out = append(out, CurvePoint{Tick: c.ticks[i], Liquidity: new(big.Int).Set(liq)})
	}
	return out
}
