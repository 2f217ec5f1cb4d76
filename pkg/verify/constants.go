// Package verify decides whether a signature set authorizes a Safe
// transaction: a per-signature validator dispatching on signature kind and
// a quorum aggregator counting validated owners against the threshold.
package verify

import (
	"context"

	"github.com/safekit/safe/pkg/abi"
	"github.com/safekit/safe/pkg/types"
)

// ContractCaller is the injected read-only contract-call capability the
// validator needs for EIP-1271 and approved-hash checks. Implementations
// own timeouts and retries; a failure must come back as an error value.
type ContractCaller interface {
	Call(ctx context.Context, to types.Address, data []byte) ([]byte, error)
}

// CallerFunc adapts a function to the ContractCaller interface.
type CallerFunc func(ctx context.Context, to types.Address, data []byte) ([]byte, error)

func (f CallerFunc) Call(ctx context.Context, to types.Address, data []byte) ([]byte, error) {
	return f(ctx, to, data)
}

// Constants is the frozen selector/magic table for one contract family.
// Both EIP-1271 magic values equal the selector of the variant they
// confirm, so the table derives them from the same canonical signatures.
type Constants struct {
	GetOwners       [4]byte // getOwners()
	GetThreshold    [4]byte // getThreshold()
	Nonce           [4]byte // nonce()
	ApprovedHashes  [4]byte // approvedHashes(address,bytes32)
	IsValidSig      [4]byte // isValidSignature(bytes32,bytes), EIP-1271
	IsValidSigData  [4]byte // isValidSignature(bytes,bytes), legacy EIP-1271
	Magic1271       [4]byte // 0x1626ba7e
	MagicLegacy1271 [4]byte // 0x20c13b0b
}

var defaultConstants = func() *Constants {
	c := &Constants{
		GetOwners:      abi.SelectorOf("getOwners()"),
		GetThreshold:   abi.SelectorOf("getThreshold()"),
		Nonce:          abi.SelectorOf("nonce()"),
		ApprovedHashes: abi.SelectorOf("approvedHashes(address,bytes32)"),
		IsValidSig:     abi.SelectorOf("isValidSignature(bytes32,bytes)"),
		IsValidSigData: abi.SelectorOf("isValidSignature(bytes,bytes)"),
	}
	c.Magic1271 = c.IsValidSig
	c.MagicLegacy1271 = c.IsValidSigData
	return c
}()

// DefaultConstants returns the Safe v1.3 selector/magic table.
func DefaultConstants() *Constants { return defaultConstants }
