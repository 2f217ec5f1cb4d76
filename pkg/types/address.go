package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of an EVM account address.
const AddressLength = 20

// Address is a fixed-width EVM address. The zero value is the zero address.
type Address [AddressLength]byte

// ZeroAddress is the all-zero address used for native-token gas payments
// and unset refund receivers.
var ZeroAddress Address

// ParseAddress parses a hex address with or without the 0x prefix.
// Case is ignored; no checksum validation is performed.
func ParseAddress(s string) (Address, error) {
	var a Address
	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(h) != AddressLength*2 {
		return a, fmt.Errorf("types: invalid address length %d for %q", len(h), s)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return a, fmt.Errorf("types: invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromBytes builds an Address from the last 20 bytes of b,
// zero-padding on the left when b is shorter.
func AddressFromBytes(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// MustAddress parses s and panics on failure. For tests and constants.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Hex returns the 0x-prefixed lowercase hex form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string { return a.Hex() }

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == ZeroAddress }
