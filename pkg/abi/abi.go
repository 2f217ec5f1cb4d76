// Package abi implements the narrow set of Ethereum ABI encodings the Safe
// protocol needs: 4-byte selectors, static 32-byte words, dynamic bytes and
// the dynamic address[] return shape. It is not a general ABI codec; the
// byte layout itself is the contract here.
package abi

import (
	"errors"
	"fmt"
	"hash"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/safekit/safe/pkg/types"
)

// WordSize is the fixed ABI slot width.
const WordSize = 32

// Word is one 32-byte ABI slot.
type Word [WordSize]byte

var (
	// ErrTruncatedData means a decode step ran past the end of the input.
	ErrTruncatedData = errors.New("abi: truncated data")
	// ErrUnexpectedLayout means an offset pointer did not hold the expected
	// canonical value.
	ErrUnexpectedLayout = errors.New("abi: unexpected layout")
	// ErrWordOverflow means a value does not fit a 32-byte word.
	ErrWordOverflow = errors.New("abi: value overflows 32-byte word")
)

// Keccak256 hashes the concatenation of chunks with legacy Keccak-256.
func Keccak256(chunks ...[]byte) []byte {
	h := newKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	return h.Sum(nil)
}

// newKeccak256 returns an Ethereum-compatible legacy Keccak-256 hasher.
func newKeccak256() hash.Hash {
	return sha3.NewLegacyKeccak256()
}

// SelectorOf derives the 4-byte function selector from a canonical
// signature string such as "getOwners()".
func SelectorOf(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], Keccak256([]byte(signature))[:4])
	return sel
}

// AddressWord right-aligns an address within a word.
func AddressWord(a types.Address) Word {
	var w Word
	copy(w[WordSize-types.AddressLength:], a[:])
	return w
}

// Uint256Word encodes a non-negative big integer big-endian, right-aligned.
// A nil value encodes as zero.
func Uint256Word(n *big.Int) (Word, error) {
	var w Word
	if n == nil {
		return w, nil
	}
	if n.Sign() < 0 {
		return w, fmt.Errorf("%w: negative value", ErrWordOverflow)
	}
	b := n.Bytes()
	if len(b) > WordSize {
		return w, fmt.Errorf("%w: %d bytes", ErrWordOverflow, len(b))
	}
	copy(w[WordSize-len(b):], b)
	return w, nil
}

// Uint64Word encodes a uint64 right-aligned.
func Uint64Word(n uint64) Word {
	w, _ := Uint256Word(new(big.Int).SetUint64(n))
	return w
}

// BytesWord left-pads b to one word. Inputs longer than 32 bytes fail.
func BytesWord(b []byte) (Word, error) {
	var w Word
	if len(b) > WordSize {
		return w, fmt.Errorf("%w: %d bytes", ErrWordOverflow, len(b))
	}
	copy(w[WordSize-len(b):], b)
	return w, nil
}

// HashWord converts an exactly-32-byte value (a keccak output) into a word.
func HashWord(h []byte) (Word, error) {
	var w Word
	if len(h) != WordSize {
		return w, fmt.Errorf("%w: hash must be %d bytes, got %d", ErrWordOverflow, WordSize, len(h))
	}
	copy(w[:], h)
	return w, nil
}

// EncodeWords concatenates words without a selector prefix.
func EncodeWords(words ...Word) []byte {
	out := make([]byte, 0, len(words)*WordSize)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

// EncodeCall produces selector ++ word_0 ++ word_1 ++ ... calldata.
func EncodeCall(selector [4]byte, words ...Word) []byte {
	out := make([]byte, 0, 4+len(words)*WordSize)
	out = append(out, selector[:]...)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

// DynBytes encodes a dynamic bytes tail: length word followed by the
// payload right-padded to a word boundary. Appended after the head words,
// with the head holding the byte offset of the tail.
func DynBytes(data []byte) []byte {
	padded := (len(data) + WordSize - 1) &^ (WordSize - 1)
	out := make([]byte, WordSize+padded)
	lw := Uint64Word(uint64(len(data)))
	copy(out, lw[:])
	copy(out[WordSize:], data)
	return out
}

// word extracts word i of raw, failing when raw is too short.
func word(raw []byte, i int) (Word, error) {
	var w Word
	end := (i + 1) * WordSize
	if len(raw) < end {
		return w, fmt.Errorf("%w: need word %d, have %d bytes", ErrTruncatedData, i, len(raw))
	}
	copy(w[:], raw[i*WordSize:end])
	return w, nil
}

// DecodeUint256 reads word i of raw as an unsigned big-endian integer.
func DecodeUint256(raw []byte, i int) (*big.Int, error) {
	w, err := word(raw, i)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w[:]), nil
}

// DecodeAddressAt extracts a right-aligned address from word i of raw.
// Used for fixed-offset returns such as a pointer word preceding an array.
func DecodeAddressAt(raw []byte, i int) (types.Address, error) {
	w, err := word(raw, i)
	if err != nil {
		return types.Address{}, err
	}
	return types.AddressFromBytes(w[:]), nil
}

// DecodeBool reads word 0 of raw as a boolean: any non-zero word is true.
func DecodeBool(raw []byte) (bool, error) {
	w, err := word(raw, 0)
	if err != nil {
		return false, err
	}
	for _, b := range w {
		if b != 0 {
			return true, nil
		}
	}
	return false, nil
}

// DecodeMagic reads the leading 4 bytes of a return value (a bytes4 ABI
// return is left-aligned in its word).
func DecodeMagic(raw []byte) ([4]byte, error) {
	var m [4]byte
	if len(raw) < 4 {
		return m, fmt.Errorf("%w: need 4 bytes, have %d", ErrTruncatedData, len(raw))
	}
	copy(m[:], raw[:4])
	return m, nil
}

// DecodeAddressArray interprets the canonical dynamic address[] return
// layout: word 0 is the offset pointer (must be 0x20), word 1 the element
// count, followed by count right-aligned address words.
func DecodeAddressArray(raw []byte) ([]types.Address, error) {
	off, err := DecodeUint256(raw, 0)
	if err != nil {
		return nil, err
	}
	if off.Cmp(big.NewInt(WordSize)) != 0 {
		return nil, fmt.Errorf("%w: array offset %s, want %d", ErrUnexpectedLayout, off, WordSize)
	}
	count, err := DecodeUint256(raw, 1)
	if err != nil {
		return nil, err
	}
	if !count.IsInt64() || count.Int64() < 0 {
		return nil, fmt.Errorf("%w: absurd element count %s", ErrUnexpectedLayout, count)
	}
	n := int(count.Int64())
	if len(raw) < (2+n)*WordSize {
		return nil, fmt.Errorf("%w: %d elements declared, %d bytes supplied", ErrTruncatedData, n, len(raw))
	}
	out := make([]types.Address, 0, n)
	for i := 0; i < n; i++ {
		a, err := DecodeAddressAt(raw, 2+i)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
