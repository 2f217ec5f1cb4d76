// Package hashing computes the EIP-712 hashes the Safe contract verifies:
// the per-instance domain separator, the SafeTx transaction hash and the
// SafeMessage hash. All functions are pure; identical inputs always
// produce identical 32-byte outputs.
package hashing

import (
	"fmt"
	"math/big"

	"github.com/safekit/safe/pkg/abi"
	"github.com/safekit/safe/pkg/types"
)

// Canonical Safe v1.3 EIP-712 type strings. The typehashes below are
// keccak hashes of exactly these strings; a typo here changes every hash.
const (
	domainType = "EIP712Domain(uint256 chainId,address verifyingContract)"
	safeTxType = "SafeTx(address to,uint256 value,bytes data,uint8 operation," +
		"uint256 safeTxGas,uint256 baseGas,uint256 gasPrice," +
		"address gasToken,address refundReceiver,uint256 nonce)"
	safeMessageType = "SafeMessage(bytes message)"
)

// TypeHashes is the frozen typehash table the engine hashes against.
// Passed by reference so alternate contract versions can supply their own.
type TypeHashes struct {
	Domain      [32]byte
	SafeTx      [32]byte
	SafeMessage [32]byte
}

var defaultTypeHashes = &TypeHashes{
	Domain:      hash32(domainType),
	SafeTx:      hash32(safeTxType),
	SafeMessage: hash32(safeMessageType),
}

// DefaultTypeHashes returns the Safe v1.3 typehash table.
func DefaultTypeHashes() *TypeHashes { return defaultTypeHashes }

func hash32(typeString string) [32]byte {
	var h [32]byte
	copy(h[:], abi.Keccak256([]byte(typeString)))
	return h
}

// DomainSeparator binds hashes to one Safe instance on one chain:
// keccak256(DOMAIN_TYPEHASH ++ chainId ++ safeAddress).
func DomainSeparator(th *TypeHashes, safe types.Address, chainID *big.Int) ([]byte, error) {
	cw, err := abi.Uint256Word(chainID)
	if err != nil {
		return nil, fmt.Errorf("hashing: chain id: %w", err)
	}
	return abi.Keccak256(th.Domain[:], cw[:], addrWord(safe)), nil
}

// TransactionHash computes the 32-byte digest every owner must sign:
// keccak256(0x19 0x01 ++ domainSeparator ++ structHash(tx)).
func TransactionHash(th *TypeHashes, tx *types.SafeTransaction) ([]byte, error) {
	domain, err := DomainSeparator(th, tx.SafeAddress, tx.ChainID)
	if err != nil {
		return nil, err
	}
	structHash, err := transactionStructHash(th, tx)
	if err != nil {
		return nil, err
	}
	return envelope(domain, structHash), nil
}

// MessageHash computes the digest for an off-chain SafeMessage:
// same 0x19 0x01 envelope over keccak256(SAFE_MSG_TYPEHASH ++ keccak256(message)).
// A zero-length message is valid and hashes its empty keccak.
func MessageHash(th *TypeHashes, safe types.Address, chainID *big.Int, message []byte) ([]byte, error) {
	domain, err := DomainSeparator(th, safe, chainID)
	if err != nil {
		return nil, err
	}
	structHash := abi.Keccak256(th.SafeMessage[:], abi.Keccak256(message))
	return envelope(domain, structHash), nil
}

// transactionStructHash packs the typehash and all ten SafeTx fields as
// words and hashes the concatenation. Field order is the contract's.
func transactionStructHash(th *TypeHashes, tx *types.SafeTransaction) ([]byte, error) {
	value, err := abi.Uint256Word(tx.Value)
	if err != nil {
		return nil, fmt.Errorf("hashing: value: %w", err)
	}
	safeTxGas, err := abi.Uint256Word(tx.SafeTxGas)
	if err != nil {
		return nil, fmt.Errorf("hashing: safeTxGas: %w", err)
	}
	baseGas, err := abi.Uint256Word(tx.BaseGas)
	if err != nil {
		return nil, fmt.Errorf("hashing: baseGas: %w", err)
	}
	gasPrice, err := abi.Uint256Word(tx.GasPrice)
	if err != nil {
		return nil, fmt.Errorf("hashing: gasPrice: %w", err)
	}
	nonce, err := abi.Uint256Word(tx.Nonce)
	if err != nil {
		return nil, fmt.Errorf("hashing: nonce: %w", err)
	}
	if _, err := types.ParseOperation(uint8(tx.Operation)); err != nil {
		return nil, fmt.Errorf("hashing: %w", err)
	}

	encoded := make([]byte, 0, 11*abi.WordSize)
	encoded = append(encoded, th.SafeTx[:]...)
	encoded = append(encoded, addrWord(tx.To)...)
	encoded = append(encoded, value[:]...)
	encoded = append(encoded, abi.Keccak256(tx.Data)...)
	op := abi.Uint64Word(uint64(tx.Operation))
	encoded = append(encoded, op[:]...)
	encoded = append(encoded, safeTxGas[:]...)
	encoded = append(encoded, baseGas[:]...)
	encoded = append(encoded, gasPrice[:]...)
	encoded = append(encoded, addrWord(tx.GasToken)...)
	encoded = append(encoded, addrWord(tx.RefundReceiver)...)
	encoded = append(encoded, nonce[:]...)
	return abi.Keccak256(encoded), nil
}

func envelope(domainSeparator, structHash []byte) []byte {
	msg := make([]byte, 0, 2+2*32)
	msg = append(msg, 0x19, 0x01)
	msg = append(msg, domainSeparator...)
	msg = append(msg, structHash...)
	return abi.Keccak256(msg)
}

func addrWord(a types.Address) []byte {
	w := abi.AddressWord(a)
	return w[:]
}
