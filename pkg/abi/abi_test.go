package abi

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/safekit/safe/pkg/types"
)

// TestSelectorOf verifies well-known selectors against their published values.
func TestSelectorOf(t *testing.T) {
	cases := []struct {
		sig  string
		want string
	}{
		{"getOwners()", "a0e67e2b"},
		{"getThreshold()", "e75235b8"},
		{"nonce()", "affed0e0"},
		{"isValidSignature(bytes32,bytes)", "1626ba7e"},
		{"isValidSignature(bytes,bytes)", "20c13b0b"},
	}
	for _, tc := range cases {
		got := SelectorOf(tc.sig)
		if hex.EncodeToString(got[:]) != tc.want {
			t.Errorf("SelectorOf(%q) = %x, want %s", tc.sig, got, tc.want)
		}
	}
}

func TestEncodeCallLayout(t *testing.T) {
	addr := types.MustAddress("0xEAbCC110fAcBfebabC66Ad6f9E7B67288e720B59")
	sel := SelectorOf("approvedHashes(address,bytes32)")
	hw, err := HashWord(bytes.Repeat([]byte{0xab}, 32))
	if err != nil {
		t.Fatalf("HashWord: %v", err)
	}
	calldata := EncodeCall(sel, AddressWord(addr), hw)

	if len(calldata) != 4+2*WordSize {
		t.Fatalf("calldata length %d, want %d", len(calldata), 4+2*WordSize)
	}
	if !bytes.Equal(calldata[:4], sel[:]) {
		t.Errorf("selector prefix %x, want %x", calldata[:4], sel)
	}
	// Address word: 12 zero bytes then the 20 address bytes.
	if !bytes.Equal(calldata[4:16], make([]byte, 12)) {
		t.Errorf("address word not left-padded: %x", calldata[4:36])
	}
	if !bytes.Equal(calldata[16:36], addr[:]) {
		t.Errorf("address word holds %x, want %x", calldata[16:36], addr)
	}
	if !bytes.Equal(calldata[36:68], hw[:]) {
		t.Errorf("hash word mangled: %x", calldata[36:68])
	}
}

func TestUint256Word(t *testing.T) {
	// Max value fills the word exactly.
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	w, err := Uint256Word(max)
	if err != nil {
		t.Fatalf("Uint256Word(2^256-1): %v", err)
	}
	if !bytes.Equal(w[:], bytes.Repeat([]byte{0xff}, 32)) {
		t.Errorf("max word = %x", w)
	}

	// One past max overflows instead of wrapping.
	if _, err := Uint256Word(new(big.Int).Add(max, big.NewInt(1))); !errors.Is(err, ErrWordOverflow) {
		t.Errorf("expected ErrWordOverflow, got %v", err)
	}
	if _, err := Uint256Word(big.NewInt(-1)); !errors.Is(err, ErrWordOverflow) {
		t.Errorf("expected ErrWordOverflow for negative, got %v", err)
	}

	// Nil encodes as zero.
	w, err = Uint256Word(nil)
	if err != nil || w != (Word{}) {
		t.Errorf("nil word = %x, err %v", w, err)
	}

	// Small values are right-aligned big-endian.
	w, _ = Uint256Word(big.NewInt(0x0102))
	if w[30] != 0x01 || w[31] != 0x02 {
		t.Errorf("0x0102 word = %x", w)
	}
}

func TestDecodeAddressArray(t *testing.T) {
	a := types.MustAddress("0x0000000000000000000000000000000000000001")
	b := types.MustAddress("0xEAbCC110fAcBfebabC66Ad6f9E7B67288e720B59")

	raw := EncodeWords(Uint64Word(32), Uint64Word(2), AddressWord(a), AddressWord(b))
	got, err := DecodeAddressArray(raw)
	if err != nil {
		t.Fatalf("DecodeAddressArray: %v", err)
	}
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("decoded %v", got)
	}
}

func TestDecodeAddressArrayBadOffset(t *testing.T) {
	raw := EncodeWords(Uint64Word(64), Uint64Word(0))
	if _, err := DecodeAddressArray(raw); !errors.Is(err, ErrUnexpectedLayout) {
		t.Errorf("expected ErrUnexpectedLayout, got %v", err)
	}
}

func TestDecodeAddressArrayTruncated(t *testing.T) {
	// Declares 3 elements, supplies 1.
	a := types.MustAddress("0x0000000000000000000000000000000000000001")
	raw := EncodeWords(Uint64Word(32), Uint64Word(3), AddressWord(a))
	if _, err := DecodeAddressArray(raw); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("expected ErrTruncatedData, got %v", err)
	}

	// Too short for even the header.
	if _, err := DecodeAddressArray([]byte{0x01, 0x02}); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("expected ErrTruncatedData, got %v", err)
	}
}

func TestDecodeAddressAt(t *testing.T) {
	a := types.MustAddress("0xEAbCC110fAcBfebabC66Ad6f9E7B67288e720B59")
	raw := EncodeWords(Uint64Word(7), AddressWord(a))

	got, err := DecodeAddressAt(raw, 1)
	if err != nil {
		t.Fatalf("DecodeAddressAt: %v", err)
	}
	if got != a {
		t.Errorf("got %s, want %s", got, a)
	}
	if _, err := DecodeAddressAt(raw, 2); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("expected ErrTruncatedData, got %v", err)
	}
}

func TestDecodeBool(t *testing.T) {
	if v, err := DecodeBool(EncodeWords(Uint64Word(1))); err != nil || !v {
		t.Errorf("true word: %v %v", v, err)
	}
	if v, err := DecodeBool(EncodeWords(Uint64Word(0))); err != nil || v {
		t.Errorf("false word: %v %v", v, err)
	}
	if _, err := DecodeBool(nil); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("expected ErrTruncatedData, got %v", err)
	}
}

func TestDynBytesPadding(t *testing.T) {
	out := DynBytes([]byte{0x01, 0x02, 0x03})
	if len(out) != 64 {
		t.Fatalf("length %d, want 64", len(out))
	}
	if out[31] != 3 {
		t.Errorf("length word = %x", out[:32])
	}
	if out[32] != 0x01 || out[34] != 0x03 || out[35] != 0 {
		t.Errorf("payload = %x", out[32:])
	}

	// Empty payload is a bare zero length word.
	if got := DynBytes(nil); len(got) != 32 || !bytes.Equal(got, make([]byte, 32)) {
		t.Errorf("empty DynBytes = %x", got)
	}
}
