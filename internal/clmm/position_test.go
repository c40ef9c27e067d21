package clmm

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestLiquidityForAmountsOutOfRange(t *testing.T) {
	above := LiquidityForAmounts(d("0"), d("100"), 0, 0, d("3"), d("1"), d("2"))
	if !above.Equal(d("100")) {
		t.Fatalf("above range: expected 100, got %s", above)
	}

	below := LiquidityForAmounts(d("0"), d("100"), 0, 0, d("0.5"), d("1"), d("2"))
	if !below.IsZero() {
		t.Fatalf("below range with amount0=0: expected 0, got %s", below)
	}

	below = LiquidityForAmounts(d("10"), d("0"), 0, 0, d("0.5"), d("1"), d("2"))
	// 10 * 1 * 2 / (2 - 1)
	if !below.Equal(d("20")) {
		t.Fatalf("below range: expected 20, got %s", below)
	}
}

func TestLiquidityForAmountsInRange(t *testing.T) {
	// L0 = 10*1.5*2/(2-1.5) = 60, L1 = 100/(1.5-1) = 200
	got := LiquidityForAmounts(d("10"), d("100"), 0, 0, d("1.5"), d("1"), d("2"))
	if !got.Equal(d("60")) {
		t.Fatalf("expected min(L0, L1)=60, got %s", got)
	}

	got = LiquidityForAmounts(d("0"), d("100"), 0, 0, d("1.5"), d("1"), d("2"))
	if !got.Equal(d("200")) {
		t.Fatalf("expected L1=200 when amount0 is zero, got %s", got)
	}
}

func TestLiquidityForAmountsScalesDecimals(t *testing.T) {
	got := LiquidityForAmounts(d("0"), d("1"), 0, 6, d("3"), d("1"), d("2"))
	if !got.Equal(d("1000000")) {
		t.Fatalf("expected 1e6, got %s", got)
	}
}

func TestLiquidityForAmountsInvalid(t *testing.T) {
	cases := []decimal.Decimal{
		LiquidityForAmounts(d("1"), d("1"), 0, 0, d("0"), d("1"), d("2")),
		LiquidityForAmounts(d("1"), d("1"), 0, 0, d("1.5"), d("2"), d("1")),
		LiquidityForAmounts(d("-1"), d("1"), 0, 0, d("1.5"), d("1"), d("2")),
		LiquidityForAmounts(d("1"), d("1"), 0, 0, d("1.5"), d("-1"), d("2")),
	}
	for i, got := range cases {
		if !got.IsZero() {
			t.Fatalf("case %d: expected zero, got %s", i, got)
		}
	}
}
