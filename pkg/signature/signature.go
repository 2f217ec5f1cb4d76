// Package signature implements the Safe packed multi-signature codec: a
// closed tagged union of the three signature kinds the contract accepts,
// the byte-exact encoder for execTransaction's signatures argument, and
// the decoder that walks that byte string back into structured form.
package signature

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/safekit/safe/pkg/types"
)

// Signature kinds. Adding a kind means touching every switch in this
// package and in verify; the compiler flags the ones you miss.
type Kind uint8

const (
	// KindECDSA is a 65-byte r||s||v secp256k1 signature. v 27/28 signs
	// the hash directly (EIP-712 style); v 31/32 signs the
	// personal-message-prefixed hash (eth_sign style).
	KindECDSA Kind = iota
	// KindContract is an EIP-1271 contract signature with a dynamic
	// payload, tagged 0 on the wire.
	KindContract
	// KindApprovedHash marks an owner that pre-approved the hash
	// on-chain, tagged 1 on the wire. No local payload to check.
	KindApprovedHash
)

func (k Kind) String() string {
	switch k {
	case KindECDSA:
		return "ecdsa"
	case KindContract:
		return "contract"
	case KindApprovedHash:
		return "approved-hash"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Wire tag bytes (the historical "v" byte, last byte of each static stride).
const (
	tagContract     = 0
	tagApprovedHash = 1
	tagEIP712Lo     = 27
	tagEIP712Hi     = 28
	tagEthSignLo    = 31
	tagEthSignHi    = 32

	// ethSignShift converts an eth_sign tag into its recovery tag.
	ethSignShift = 4
)

// ECDSASignatureLength is the exact byte length of a static signature.
const ECDSASignatureLength = 65

// Structural errors. These signal caller misuse or corrupt input and are
// returned as hard errors, never embedded in results.
var (
	ErrEmptySignatureSet      = errors.New("signature: empty signature set")
	ErrInvalidSignatureLength = errors.New("signature: static signature must be 65 bytes")
	ErrUnknownSignatureTag    = errors.New("signature: unknown signature tag")
	ErrTruncatedDynamicData   = errors.New("signature: truncated dynamic data")
)

// Signature is one element of a Safe signature set.
//
// For KindECDSA, Data is the raw 65 bytes and Signer the address the
// signature must recover to. For KindContract, Data is the EIP-1271
// payload passed to the signer contract. For KindApprovedHash, Data is nil.
type Signature struct {
	Kind   Kind          `json:"kind" cbor:"1,keyasint"`
	Signer types.Address `json:"signer" cbor:"2,keyasint"`
	Data   []byte        `json:"data,omitempty" cbor:"3,keyasint,omitempty"`
}

// IsEthSign reports whether a 65-byte ECDSA signature carries an eth_sign
// tag, i.e. attests to the personal-message-prefixed hash.
func (s Signature) IsEthSign() bool {
	if s.Kind != KindECDSA || len(s.Data) != ECDSASignatureLength {
		return false
	}
	v := s.Data[ECDSASignatureLength-1]
	return v == tagEthSignLo || v == tagEthSignHi
}

// PackECDSA assembles r||s||v from MPC or wallet signature components,
// left-padding r and s to 32 bytes.
func PackECDSA(r, s []byte, v byte) []byte {
	sig := make([]byte, ECDSASignatureLength)
	copy(sig[32-len(r):32], r)
	copy(sig[64-len(s):64], s)
	sig[64] = v
	return sig
}

// sortBySigner orders a copy of sigs ascending by signer address. Byte-wise
// comparison of the 20-byte address is exactly the case-insensitive hex
// order the contract enforces.
func sortBySigner(sigs []Signature) []Signature {
	sorted := make([]Signature, len(sigs))
	copy(sorted, sigs)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Signer[:], sorted[j].Signer[:]) < 0
	})
	return sorted
}
