package signature

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/safekit/safe/pkg/abi"
	"github.com/safekit/safe/pkg/types"
)

// ethSignPrefix is the personal-message prefix for a 32-byte payload.
const ethSignPrefix = "\x19Ethereum Signed Message:\n32"

// EthSignDigest returns the digest an eth_sign-style signature actually
// attests to: keccak256 of the prefixed 32-byte hash.
func EthSignDigest(hash []byte) []byte {
	return abi.Keccak256([]byte(ethSignPrefix), hash)
}

// RecoverSigner recovers the signing address from a 65-byte r||s||v
// signature over digest. v must be 27 or 28; eth_sign tags must be
// normalized by the caller before recovery.
func RecoverSigner(digest []byte, sig []byte) (types.Address, error) {
	if len(sig) != ECDSASignatureLength {
		return types.Address{}, fmt.Errorf("%w: got %d bytes", ErrInvalidSignatureLength, len(sig))
	}
	if len(digest) != 32 {
		return types.Address{}, fmt.Errorf("signature: digest must be 32 bytes, got %d", len(digest))
	}
	v := sig[64]
	if v != tagEIP712Lo && v != tagEIP712Hi {
		return types.Address{}, fmt.Errorf("%w: recovery tag %d", ErrUnknownSignatureTag, v)
	}

	// RecoverCompact wants the header byte first: [v, r, s].
	compact := make([]byte, ECDSASignatureLength)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return types.Address{}, fmt.Errorf("signature: recover: %w", err)
	}
	return PubKeyAddress(pub.SerializeUncompressed()), nil
}

// PubKeyAddress derives the EVM address from a 65-byte uncompressed
// secp256k1 public key: the last 20 bytes of keccak256(X||Y).
func PubKeyAddress(uncompressed []byte) types.Address {
	return types.AddressFromBytes(abi.Keccak256(uncompressed[1:])[12:])
}
