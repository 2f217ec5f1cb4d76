package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/safekit/safe/pkg/abi"
	"github.com/safekit/safe/pkg/types"
	"github.com/safekit/safe/pkg/verify"
)

// Reader reads the account state of one Safe: owner set, threshold and
// nonce. Unlike the approved-hash and EIP-1271 probes, an empty return
// here is a hard error: an absent contract cannot have an owner set.
type Reader struct {
	caller verify.ContractCaller
	safe   types.Address
	consts *verify.Constants
}

// NewReader builds a Reader bound to one Safe. consts may be nil for the
// Safe v1.3 defaults.
func NewReader(caller verify.ContractCaller, safe types.Address, consts *verify.Constants) *Reader {
	if consts == nil {
		consts = verify.DefaultConstants()
	}
	return &Reader{caller: caller, safe: safe, consts: consts}
}

// Owners returns the Safe's owner addresses.
func (r *Reader) Owners(ctx context.Context) ([]types.Address, error) {
	raw, err := r.caller.Call(ctx, r.safe, abi.EncodeCall(r.consts.GetOwners))
	if err != nil {
		return nil, fmt.Errorf("chain: getOwners: %w", err)
	}
	owners, err := abi.DecodeAddressArray(raw)
	if err != nil {
		return nil, fmt.Errorf("chain: getOwners: %w", err)
	}
	return owners, nil
}

// Threshold returns the required confirmation count.
func (r *Reader) Threshold(ctx context.Context) (int, error) {
	raw, err := r.caller.Call(ctx, r.safe, abi.EncodeCall(r.consts.GetThreshold))
	if err != nil {
		return 0, fmt.Errorf("chain: getThreshold: %w", err)
	}
	n, err := abi.DecodeUint256(raw, 0)
	if err != nil {
		return 0, fmt.Errorf("chain: getThreshold: %w", err)
	}
	if !n.IsInt64() || n.Int64() < 0 {
		return 0, fmt.Errorf("chain: getThreshold: absurd value %s", n)
	}
	return int(n.Int64()), nil
}

// Nonce returns the Safe's current transaction nonce.
func (r *Reader) Nonce(ctx context.Context) (*big.Int, error) {
	raw, err := r.caller.Call(ctx, r.safe, abi.EncodeCall(r.consts.Nonce))
	if err != nil {
		return nil, fmt.Errorf("chain: nonce: %w", err)
	}
	n, err := abi.DecodeUint256(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("chain: nonce: %w", err)
	}
	return n, nil
}
