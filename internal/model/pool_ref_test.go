package model

import "testing"

func TestParsePoolRefID(t *testing.T) {
	ref, err := ParsePoolRef("42", 1, "uniswap_v3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ref.ByID() || ref.ID != 42 || ref.Address != "" {
		t.Fatalf("id ref mismatch: %+v", ref)
	}
	if ref.ChainID != 1 || ref.DexID != "uniswap_v3" {
		t.Fatalf("hints mismatch: %+v", ref)
	}
}

func TestParsePoolRefAddress(t *testing.T) {
	ref, err := ParsePoolRef(" 0x88E6A0c2dDD26FEEb64F039a2c41296FcB3f5640 ", 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ByID() {
		t.Fatalf("expected address ref: %+v", ref)
	}
	if ref.Address != "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640" {
		t.Fatalf("address not normalised: %s", ref.Address)
	}
}

func TestParsePoolRefInvalid(t *testing.T) {
	for _, input := range []string{"", "0", "-5", "0x1234", "pool"} {
		if _, err := ParsePoolRef(input, 0, ""); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}
