// Package types holds the value types shared across the Safe client:
// addresses, transactions and per-signature validation results.
package types

import (
	"fmt"
	"math/big"
)

// Operation selects how the Safe executes a transaction.
type Operation uint8

const (
	// OperationCall is a regular CALL from the Safe.
	OperationCall Operation = 0
	// OperationDelegateCall executes the target's code in the Safe's own
	// storage context. Dangerous; supported because the contract supports it.
	OperationDelegateCall Operation = 1
)

// ParseOperation validates a raw operation byte.
func ParseOperation(v uint8) (Operation, error) {
	switch Operation(v) {
	case OperationCall, OperationDelegateCall:
		return Operation(v), nil
	}
	return 0, fmt.Errorf("types: unknown operation %d", v)
}

func (o Operation) String() string {
	switch o {
	case OperationCall:
		return "call"
	case OperationDelegateCall:
		return "delegatecall"
	}
	return fmt.Sprintf("operation(%d)", uint8(o))
}

// MetaTransaction is the bare payload a Safe executes: target, native value
// and calldata. Treated as immutable once constructed.
type MetaTransaction struct {
	To    Address  `json:"to" cbor:"1,keyasint"`
	Value *big.Int `json:"value" cbor:"2,keyasint"`
	Data  []byte   `json:"data" cbor:"3,keyasint"`
}

// SafeTransaction is a MetaTransaction plus the protocol fields that enter
// the EIP-712 struct hash, bound to a specific Safe instance and chain.
// Every field serializes to exactly one 32-byte word.
type SafeTransaction struct {
	MetaTransaction

	Operation      Operation `json:"operation" cbor:"4,keyasint"`
	SafeTxGas      *big.Int  `json:"safe_tx_gas" cbor:"5,keyasint"`
	BaseGas        *big.Int  `json:"base_gas" cbor:"6,keyasint"`
	GasPrice       *big.Int  `json:"gas_price" cbor:"7,keyasint"`
	GasToken       Address   `json:"gas_token" cbor:"8,keyasint"`
	RefundReceiver Address   `json:"refund_receiver" cbor:"9,keyasint"`
	Nonce          *big.Int  `json:"nonce" cbor:"10,keyasint"`

	SafeAddress Address  `json:"safe_address" cbor:"11,keyasint"`
	ChainID     *big.Int `json:"chain_id" cbor:"12,keyasint"`
}

// ValidationResult is the outcome of checking one signature. Business
// failures (on-chain rejection, unreachable validation oracle) land in
// Err with Valid=false; they are expected outcomes, not exceptions.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Signer Address `json:"signer"`
	Err    error   `json:"-"`
}
