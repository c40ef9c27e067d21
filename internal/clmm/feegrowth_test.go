package clmm

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func maxU256() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

func TestSubModWraps(t *testing.T) {
	if got := SubMod(u(10), u(3)); !got.Eq(u(7)) {
		t.Fatalf("expected 7, got %s", got.Dec())
	}
	if got := SubMod(u(3), u(10)); !got.Eq(new(uint256.Int).Sub(maxU256(), u(6))) {
		t.Fatalf("expected 2^256-7, got %s", got.Dec())
	}
	if got := SubMod(u(0), maxU256()); !got.Eq(u(1)) {
		t.Fatalf("expected 1, got %s", got.Dec())
	}
}

func TestFeeGrowthInsideInRangeIndependentOfWrap(t *testing.T) {
	cases := []struct {
		name                         string
		global, lower, upper, expect *uint256.Int
	}{
		{"no wrap", u(1000), u(100), u(200), u(700)},
		{"outside exceeds global", u(50), u(100), u(200), SubMod(SubMod(u(50), u(100)), u(200))},
		{"global wrapped", u(5), maxU256(), u(1), u(5)},
	}
	for _, tc := range cases {
		want := SubMod(SubMod(tc.global, tc.lower), tc.upper)
		if !want.Eq(tc.expect) {
			t.Fatalf("%s: bad fixture", tc.name)
		}
		for _, current := range []int32{-100, 0, 99} {
			got := FeeGrowthInside(tc.global, tc.lower, tc.upper, current, -100, 100)
			if !got.Eq(want) {
				t.Fatalf("%s current=%d: %s != %s", tc.name, current, got.Dec(), want.Dec())
			}
		}
	}
}

func TestFeeGrowthInsideOutOfRange(t *testing.T) {
	global, lower, upper := u(1000), u(100), u(300)
	// below range: 1000 - (1000-100) - 300 wraps
	got := FeeGrowthInside(global, lower, upper, -200, -100, 100)
	if want := SubMod(u(100), u(300)); !got.Eq(want) {
		t.Fatalf("below range mismatch: %s != %s", got.Dec(), want.Dec())
	}
	// above range: 1000 - 100 - (1000-300)
	got = FeeGrowthInside(global, lower, upper, 100, -100, 100)
	if !got.Eq(u(200)) {
		t.Fatalf("above range mismatch: %s", got.Dec())
	}
}

func TestFeesFromDeltaInside(t *testing.T) {
	delta := new(uint256.Int).Lsh(u(5), 128)
	got := FeesFromDeltaInside(delta, decimal.NewFromInt(10))
	if !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected 50, got %s", got)
	}
	if !FeesFromDeltaInside(u(0), decimal.NewFromInt(10)).IsZero() {
		t.Fatalf("zero delta should yield zero fees")
	}
}

func TestIsNegativeDelta(t *testing.T) {
	if IsNegativeDelta(u(1)) {
		t.Fatalf("small delta is not negative")
	}
	if !IsNegativeDelta(SubMod(u(1), u(2))) {
		t.Fatalf("wrapped -1 should be negative")
	}
}

func TestParseX128(t *testing.T) {
	big2p200 := new(big.Int).Lsh(big.NewInt(1), 200)
	valid := []struct {
		in   any
		want *uint256.Int
	}{
		{int64(42), u(42)},
		{uint64(42), u(42)},
		{"42", u(42)},
		{" 42.000 ", u(42)},
		{"0x2a", u(42)},
		{json.Number("42"), u(42)},
		{decimal.RequireFromString("42"), u(42)},
		{float64(42), u(42)},
		{big2p200, new(uint256.Int).Lsh(u(1), 200)},
		{maxU256().Dec(), maxU256()},
	}
	for _, tc := range valid {
		got, err := ParseX128(tc.in)
		if err != nil {
			t.Fatalf("parse %v: %v", tc.in, err)
		}
		if !got.Eq(tc.want) {
			t.Fatalf("parse %v: %s != %s", tc.in, got.Dec(), tc.want.Dec())
		}
	}

	overflow := new(big.Int).Lsh(big.NewInt(1), 256).String()
	invalid := []any{nil, "", "-1", int64(-1), "1.5", float64(1.5), "abc", overflow, struct{}{}}
	for _, in := range invalid {
		if _, err := ParseX128(in); err == nil {
			t.Fatalf("expected error for %v", in)
		}
	}
}
