package clmm

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var q128 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128), 0)

// SubMod returns (a - b) mod 2^256. Fee-growth counters only grow but wrap at
// 2^256, so every difference between them must go through this function.
func SubMod(a, b *uint256.Int) *uint256.Int {
	z, _ := new(uint256.Int).SubOverflow(orZero(a), orZero(b))
	return z
}

// FeeGrowthInside computes the fee growth inside [tickLower, tickUpper) the
// same way the pool contract does, wraparound included.
func FeeGrowthInside(global, outsideLower, outsideUpper *uint256.Int, tickCurrent, tickLower, tickUpper int32) *uint256.Int {
	var below, above *uint256.Int
	if tickCurrent >= tickLower {
		below = orZero(outsideLower)
	} else {
		below = SubMod(global, outsideLower)
	}
	if tickCurrent < tickUpper {
		above = orZero(outsideUpper)
	} else {
		above = SubMod(global, outsideUpper)
	}
	return SubMod(SubMod(global, below), above)
}

// FeesFromDeltaInside converts a Q128 fee-growth delta into raw token units
// earned by liquidity userL.
func FeesFromDeltaInside(delta *uint256.Int, userL decimal.Decimal) decimal.Decimal {
	if delta == nil || delta.IsZero() || userL.Sign() <= 0 {
		return decimal.Zero
	}
	return userL.Mul(decimal.NewFromBigInt(delta.ToBig(), 0)).Div(q128)
}

// IsNegativeDelta reports whether a modular delta is really a negative
// difference. A legitimate growth never reaches 2^255 between two blocks.
func IsNegativeDelta(delta *uint256.Int) bool {
	return delta != nil && delta.Sign() < 0
}

// ParseX128 parses a stored fee-growth counter. Storage may encode the
// value as an integer, a decimal or a string; only non-negative integral
// values that fit in 256 bits are accepted.
func ParseX128(v any) (*uint256.Int, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("fee growth value is null")
	case *uint256.Int:
		if val == nil {
			return nil, fmt.Errorf("fee growth value is null")
		}
		return new(uint256.Int).Set(val), nil
	case *big.Int:
		if val == nil {
			return nil, fmt.Errorf("fee growth value is null")
		}
		return fromBig(val)
	case big.Int:
		return fromBig(&val)
	case int:
		return fromInt64(int64(val))
	case int32:
		return fromInt64(int64(val))
	case int64:
		return fromInt64(val)
	case uint:
		return uint256.NewInt(uint64(val)), nil
	case uint32:
		return uint256.NewInt(uint64(val)), nil
	case uint64:
		return uint256.NewInt(val), nil
	case float64:
		return fromDecimal(decimal.NewFromFloat(val))
	case decimal.Decimal:
		return fromDecimal(val)
	case json.Number:
		return parseX128String(val.String())
	case string:
		return parseX128String(val)
	default:
		return nil, fmt.Errorf("unsupported fee growth type %T", v)
	}
}

func parseX128String(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty fee growth value")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		parsed, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex fee growth: %s", s)
		}
		return fromBig(parsed)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid fee growth: %s", s)
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (*uint256.Int, error) {
	if !d.IsInteger() {
		return nil, fmt.Errorf("fee growth must be integral: %s", d.String())
	}
	return fromBig(d.BigInt())
}

func fromInt64(v int64) (*uint256.Int, error) {
	if v < 0 {
		return nil, fmt.Errorf("fee growth must be non-negative: %d", v)
	}
	return uint256.NewInt(uint64(v)), nil
}

func fromBig(v *big.Int) (*uint256.Int, error) {
	if v.Sign() < 0 {
		return nil, fmt.Errorf("fee growth must be non-negative: %s", v.String())
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("fee growth exceeds 256 bits: %s", v.String())
	}
	return out, nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
