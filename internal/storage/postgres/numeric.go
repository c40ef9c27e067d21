package postgres

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"lpsim/internal/clmm"
)

// NUMERIC columns are read as ::text and written as strings so no value
// passes through a fixed-width type.

func parseBigInt(v *string) (*big.Int, error) {
	if v == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return nil, fmt.Errorf("parse numeric %q: %w", *v, err)
	}
	if !d.IsInteger() {
		return nil, fmt.Errorf("numeric %q is not integral", *v)
	}
	return d.BigInt(), nil
}

func parseX128(v string) (*uint256.Int, error) {
	return clmm.ParseX128(v)
}

func bigString(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func u256String(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
