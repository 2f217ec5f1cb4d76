package verify

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/safekit/safe/pkg/abi"
	"github.com/safekit/safe/pkg/signature"
	"github.com/safekit/safe/pkg/types"
)

// Validator checks individual signatures against a signed hash. It is
// stateless across calls; the only I/O is through the injected caller.
type Validator struct {
	caller ContractCaller
	safe   types.Address
	consts *Constants
	log    zerolog.Logger
}

// NewValidator builds a Validator for one Safe instance; safe is the
// contract the approvedHashes mapping lives on. consts may be nil for the
// Safe v1.3 defaults. caller may be nil when only ECDSA signatures will be
// checked; contract-backed kinds then fail softly.
func NewValidator(caller ContractCaller, safe types.Address, consts *Constants, log zerolog.Logger) *Validator {
	if consts == nil {
		consts = DefaultConstants()
	}
	return &Validator{caller: caller, safe: safe, consts: consts, log: log}
}

// Validate runs the one-shot state machine for a single signature.
//
// The returned error is reserved for structural misuse (wrong hash or
// signature length); on-chain rejections and call failures are soft and
// land in the result, because they are expected outcomes of untrusted
// input and callers need to enumerate which signatures failed and why.
//
// rawData, when non-nil, is the pre-image of signedHash and selects the
// legacy isValidSignature(bytes,bytes) probe for contract signatures.
func (v *Validator) Validate(ctx context.Context, sig signature.Signature, signedHash []byte, rawData []byte) (types.ValidationResult, error) {
	if len(signedHash) != 32 {
		return types.ValidationResult{}, fmt.Errorf("verify: signed hash must be 32 bytes, got %d", len(signedHash))
	}

	switch sig.Kind {
	case signature.KindECDSA:
		return v.validateECDSA(sig, signedHash)
	case signature.KindApprovedHash:
		return v.validateApprovedHash(ctx, sig, signedHash), nil
	case signature.KindContract:
		return v.validateContract(ctx, sig, signedHash, rawData), nil
	}
	return types.ValidationResult{}, fmt.Errorf("%w: kind %s", signature.ErrUnknownSignatureTag, sig.Kind)
}

func (v *Validator) validateECDSA(sig signature.Signature, signedHash []byte) (types.ValidationResult, error) {
	if len(sig.Data) != signature.ECDSASignatureLength {
		return types.ValidationResult{}, fmt.Errorf("%w: got %d bytes", signature.ErrInvalidSignatureLength, len(sig.Data))
	}
	digest := signedHash
	data := sig.Data
	if sig.IsEthSign() {
		digest = signature.EthSignDigest(signedHash)
		data = append([]byte(nil), sig.Data...)
		data[64] -= 4
	}
	recovered, err := signature.RecoverSigner(digest, data)
	if err != nil {
		// Unknown tag is structural; a signature that fails point
		// recovery is merely invalid.
		if data[64] != 27 && data[64] != 28 {
			return types.ValidationResult{}, err
		}
		return types.ValidationResult{Signer: sig.Signer, Err: err}, nil
	}
	return types.ValidationResult{
		Valid:  recovered == sig.Signer,
		Signer: recovered,
	}, nil
}

// validateApprovedHash reads the on-chain approvedHashes(owner, hash)
// mapping. An empty return counts as "not approved", not as an error:
// the view function exists and answered.
func (v *Validator) validateApprovedHash(ctx context.Context, sig signature.Signature, signedHash []byte) types.ValidationResult {
	res := types.ValidationResult{Signer: sig.Signer}
	if v.caller == nil {
		res.Err = fmt.Errorf("verify: no contract caller for approved-hash check")
		return res
	}
	hw, err := abi.HashWord(signedHash)
	if err != nil {
		res.Err = err
		return res
	}
	// The mapping lives on the Safe that will execute, keyed (owner, hash).
	data := abi.EncodeCall(v.consts.ApprovedHashes, abi.AddressWord(sig.Signer), hw)
	raw, err := v.caller.Call(ctx, v.safe, data)
	if err != nil {
		res.Err = fmt.Errorf("verify: approvedHashes call: %w", err)
		return res
	}
	if len(raw) == 0 {
		return res
	}
	approved, err := abi.DecodeBool(raw)
	if err != nil {
		res.Err = err
		return res
	}
	res.Valid = approved
	return res
}

// validateContract performs the EIP-1271 isValidSignature probe against
// the signer contract. With rawData available the legacy (bytes,bytes)
// variant is used, otherwise the current (bytes32,bytes) one; each variant
// has its own expected magic return.
func (v *Validator) validateContract(ctx context.Context, sig signature.Signature, signedHash []byte, rawData []byte) types.ValidationResult {
	res := types.ValidationResult{Signer: sig.Signer}
	if v.caller == nil {
		res.Err = fmt.Errorf("verify: no contract caller for EIP-1271 check")
		return res
	}

	var calldata []byte
	var want [4]byte
	if rawData != nil {
		calldata = encodeIsValidSigData(v.consts.IsValidSigData, rawData, sig.Data)
		want = v.consts.MagicLegacy1271
	} else {
		hw, err := abi.HashWord(signedHash)
		if err != nil {
			res.Err = err
			return res
		}
		head := abi.EncodeCall(v.consts.IsValidSig, hw, abi.Uint64Word(2*abi.WordSize))
		calldata = append(head, abi.DynBytes(sig.Data)...)
		want = v.consts.Magic1271
	}

	raw, err := v.caller.Call(ctx, sig.Signer, calldata)
	if err != nil {
		res.Err = fmt.Errorf("verify: isValidSignature call: %w", err)
		v.log.Debug().Str("signer", sig.Signer.Hex()).Err(err).Msg("eip-1271 probe failed")
		return res
	}
	if len(raw) == 0 {
		// Empty return: target has no code or no EIP-1271 support.
		return res
	}
	magic, err := abi.DecodeMagic(raw)
	if err != nil {
		res.Err = err
		return res
	}
	res.Valid = bytes.Equal(magic[:], want[:])
	return res
}

// encodeIsValidSigData builds isValidSignature(bytes data, bytes signature)
// calldata: two offset head words, then both dynamic tails.
func encodeIsValidSigData(selector [4]byte, data, sigData []byte) []byte {
	dataTail := abi.DynBytes(data)
	head := abi.EncodeCall(selector,
		abi.Uint64Word(2*abi.WordSize),
		abi.Uint64Word(uint64(2*abi.WordSize+len(dataTail))),
	)
	out := append(head, dataTail...)
	return append(out, abi.DynBytes(sigData)...)
}
