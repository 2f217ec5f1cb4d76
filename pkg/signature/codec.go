package signature

import (
	"fmt"
	"math/big"

	"github.com/safekit/safe/pkg/abi"
	"github.com/safekit/safe/pkg/types"
)

// Encode packs a signature set into the single byte string the Safe
// contract accepts. Input order is irrelevant: the encoder sorts a copy
// ascending by signer, which is the order the contract verifies in.
//
// Layout: n static 65-byte strides followed by the dynamic buffer.
// A contract signature's static stride holds its signer and the absolute
// byte offset of its length-prefixed payload in the dynamic buffer.
func Encode(sigs []Signature) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, ErrEmptySignatureSet
	}
	sorted := sortBySigner(sigs)

	staticLen := len(sorted) * ECDSASignatureLength
	static := make([]byte, 0, staticLen)
	var dynamic []byte

	for _, sig := range sorted {
		switch sig.Kind {
		case KindECDSA:
			if len(sig.Data) != ECDSASignatureLength {
				return nil, fmt.Errorf("%w: got %d bytes for %s", ErrInvalidSignatureLength, len(sig.Data), sig.Signer)
			}
			static = append(static, sig.Data...)

		case KindApprovedHash:
			w := abi.AddressWord(sig.Signer)
			static = append(static, w[:]...)
			static = append(static, make([]byte, abi.WordSize)...)
			static = append(static, tagApprovedHash)

		case KindContract:
			w := abi.AddressWord(sig.Signer)
			static = append(static, w[:]...)
			offset := abi.Uint64Word(uint64(staticLen + len(dynamic)))
			static = append(static, offset[:]...)
			static = append(static, tagContract)

			length := abi.Uint64Word(uint64(len(sig.Data)))
			dynamic = append(dynamic, length[:]...)
			dynamic = append(dynamic, sig.Data...)

		default:
			return nil, fmt.Errorf("%w: kind %s", ErrUnknownSignatureTag, sig.Kind)
		}
	}
	return append(static, dynamic...), nil
}

// Decode walks a packed signature buffer in fixed 65-byte strides and
// rebuilds the structured set. signedHash is the 32-byte digest the ECDSA
// entries attest to; their signers are recovered, not trusted.
func Decode(encoded []byte, signedHash []byte) ([]Signature, error) {
	if len(encoded) == 0 {
		return nil, ErrEmptySignatureSet
	}
	if len(signedHash) != 32 {
		return nil, fmt.Errorf("signature: signed hash must be 32 bytes, got %d", len(signedHash))
	}

	// Dynamic payloads live past the static strides; the stride count is
	// whatever fits before the first dynamic offset. The contract walks
	// exactly n strides for n owners, so strides are delimited by the
	// lowest dynamic offset seen (or the buffer end without any).
	count := len(encoded) / ECDSASignatureLength
	staticEnd := len(encoded)
	sigs := make([]Signature, 0, count)

	for i := 0; i < count && (i+1)*ECDSASignatureLength <= staticEnd; i++ {
		stride := encoded[i*ECDSASignatureLength : (i+1)*ECDSASignatureLength]
		tag := stride[ECDSASignatureLength-1]

		switch {
		case tag == tagContract:
			signer := types.AddressFromBytes(stride[:abi.WordSize])
			offset := new(big.Int).SetBytes(stride[abi.WordSize : 2*abi.WordSize])
			payload, err := dynamicPayload(encoded, offset)
			if err != nil {
				return nil, err
			}
			if offset.IsInt64() && int(offset.Int64()) < staticEnd {
				staticEnd = int(offset.Int64())
			}
			sigs = append(sigs, Signature{Kind: KindContract, Signer: signer, Data: payload})

		case tag == tagApprovedHash:
			signer := types.AddressFromBytes(stride[:abi.WordSize])
			sigs = append(sigs, Signature{Kind: KindApprovedHash, Signer: signer})

		case tag == tagEIP712Lo || tag == tagEIP712Hi:
			signer, err := RecoverSigner(signedHash, stride)
			if err != nil {
				return nil, err
			}
			sigs = append(sigs, Signature{Kind: KindECDSA, Signer: signer, Data: cloneBytes(stride)})

		case tag == tagEthSignLo || tag == tagEthSignHi:
			shifted := cloneBytes(stride)
			shifted[ECDSASignatureLength-1] = tag - ethSignShift
			signer, err := RecoverSigner(EthSignDigest(signedHash), shifted)
			if err != nil {
				return nil, err
			}
			sigs = append(sigs, Signature{Kind: KindECDSA, Signer: signer, Data: cloneBytes(stride)})

		default:
			return nil, fmt.Errorf("%w: %d at stride %d", ErrUnknownSignatureTag, tag, i)
		}
	}
	if len(sigs) == 0 {
		return nil, ErrEmptySignatureSet
	}
	return sigs, nil
}

// dynamicPayload reads a length-prefixed payload at an absolute offset,
// bounds-checking every step.
func dynamicPayload(encoded []byte, offset *big.Int) ([]byte, error) {
	if !offset.IsInt64() {
		return nil, fmt.Errorf("%w: offset %s", ErrTruncatedDynamicData, offset)
	}
	start := offset.Int64()
	if start < 0 || start+abi.WordSize > int64(len(encoded)) {
		return nil, fmt.Errorf("%w: offset %d beyond %d-byte buffer", ErrTruncatedDynamicData, start, len(encoded))
	}
	length := new(big.Int).SetBytes(encoded[start : start+abi.WordSize])
	if !length.IsInt64() {
		return nil, fmt.Errorf("%w: length %s", ErrTruncatedDynamicData, length)
	}
	dataStart := start + abi.WordSize
	dataEnd := dataStart + length.Int64()
	if dataEnd > int64(len(encoded)) {
		return nil, fmt.Errorf("%w: payload [%d:%d) beyond %d-byte buffer", ErrTruncatedDynamicData, dataStart, dataEnd, len(encoded))
	}
	return cloneBytes(encoded[dataStart:dataEnd]), nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
