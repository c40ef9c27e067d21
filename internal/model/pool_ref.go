package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// PoolRef identifies a pool either by its numeric id or by its address.
// Exactly one of ID or Address is set. ChainID and DexID are optional hints
// used to disambiguate an address deployed on several chains or dexes.
type PoolRef struct {
	ID      int64
	Address string
	ChainID uint64
	DexID   string
}

// ByID reports whether the reference carries a numeric id.
func (r PoolRef) ByID() bool {
	return r.ID > 0
}

func (r PoolRef) String() string {
	if r.ByID() {
		return strconv.FormatInt(r.ID, 10)
	}
	return r.Address
}

// ParsePoolRef parses a pool reference from user input. Decimal digits are an
// id, anything else must be a hex address which is normalised to lower case.
func ParsePoolRef(input string, chainID uint64, dexID string) (PoolRef, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return PoolRef{}, fmt.Errorf("pool reference is required")
	}

	ref := PoolRef{ChainID: chainID, DexID: strings.TrimSpace(dexID)}
	if id, err := strconv.ParseInt(input, 10, 64); err == nil {
		if id <= 0 {
			return PoolRef{}, fmt.Errorf("invalid pool id: %s", input)
		}
		ref.ID = id
		return ref, nil
	}

	addr, err := NormalizeAddress(input)
	if err != nil {
		return PoolRef{}, err
	}
	ref.Address = addr
	return ref, nil
}

// NormalizeAddress validates a hex address and returns it in lower case.
func NormalizeAddress(input string) (string, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return "", fmt.Errorf("invalid address: %s", input)
	}
	return strings.ToLower(common.HexToAddress(input).Hex()), nil
}
