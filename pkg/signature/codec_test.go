package signature

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safekit/safe/pkg/abi"
	"github.com/safekit/safe/pkg/types"
)

type signer struct {
	key  *secp256k1.PrivateKey
	addr types.Address
}

func newSigner(t *testing.T) signer {
	t.Helper()
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	return signer{
		key:  key,
		addr: PubKeyAddress(key.PubKey().SerializeUncompressed()),
	}
}

// signEIP712 signs the hash directly, producing a tag-27/28 signature.
func (s signer) signEIP712(hash []byte) []byte {
	compact := ecdsa.SignCompact(s.key, hash, false)
	return PackECDSA(compact[1:33], compact[33:65], compact[0])
}

// signEthSign signs the personal-message digest, producing a tag-31/32
// signature.
func (s signer) signEthSign(hash []byte) []byte {
	compact := ecdsa.SignCompact(s.key, EthSignDigest(hash), false)
	return PackECDSA(compact[1:33], compact[33:65], compact[0]+ethSignShift)
}

func testHash() []byte {
	return abi.Keccak256([]byte("safe transaction under test"))
}

func TestEncodeSingleECDSAIsVerbatim(t *testing.T) {
	hash := testHash()
	s := newSigner(t)
	raw := s.signEIP712(hash)

	out, err := Encode([]Signature{{Kind: KindECDSA, Signer: s.addr, Data: raw}})
	require.NoError(t, err)
	assert.Equal(t, raw, out, "single static signature must pass through unchanged")
}

func TestEncodeSortsBySigner(t *testing.T) {
	hash := testHash()
	low := Signature{Kind: KindApprovedHash, Signer: types.MustAddress("0x0001000000000000000000000000000000000000")}
	s := newSigner(t)
	high := Signature{Kind: KindECDSA, Signer: s.addr, Data: s.signEIP712(hash)}
	if bytes.Compare(high.Signer[:], low.Signer[:]) < 0 {
		t.Skip("generated signer sorted below the fixture address")
	}

	a, err := Encode([]Signature{high, low})
	require.NoError(t, err)
	b, err := Encode([]Signature{low, high})
	require.NoError(t, err)

	assert.Equal(t, a, b, "encoding must not depend on input order")
	// The low signer's approved-hash stride comes first.
	assert.Equal(t, low.Signer, types.AddressFromBytes(a[:32]))
	assert.EqualValues(t, tagApprovedHash, a[64])
}

func TestEncodeApprovedHashStride(t *testing.T) {
	owner := types.MustAddress("0xEAbCC110fAcBfebabC66Ad6f9E7B67288e720B59")
	out, err := Encode([]Signature{{Kind: KindApprovedHash, Signer: owner}})
	require.NoError(t, err)
	require.Len(t, out, ECDSASignatureLength)

	assert.Equal(t, make([]byte, 12), out[:12], "signer word left-padded")
	assert.Equal(t, owner[:], out[12:32])
	assert.Equal(t, make([]byte, 32), out[32:64], "middle word must be zero")
	assert.EqualValues(t, tagApprovedHash, out[64])
}

func TestEncodeDynamicOffsets(t *testing.T) {
	payload := bytes.Repeat([]byte{0xcd}, 100)
	contract := Signature{
		Kind:   KindContract,
		Signer: types.MustAddress("0x0000000000000000000000000000000000000001"),
		Data:   payload,
	}
	static := Signature{
		Kind:   KindApprovedHash,
		Signer: types.MustAddress("0xFFFF000000000000000000000000000000000000"),
	}

	out, err := Encode([]Signature{static, contract})
	require.NoError(t, err)

	// Static region 2×65, dynamic region 32+100.
	require.Len(t, out, 130+32+100)

	// The contract signer sorts first; its offset word points at the
	// start of the dynamic region.
	offset := new(big.Int).SetBytes(out[32:64])
	assert.EqualValues(t, 130, offset.Int64())
	assert.EqualValues(t, tagContract, out[64])

	length := new(big.Int).SetBytes(out[130 : 130+32])
	assert.EqualValues(t, 100, length.Int64())
	assert.Equal(t, payload, out[130+32:])
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(nil)
	assert.ErrorIs(t, err, ErrEmptySignatureSet)

	_, err = Encode([]Signature{{Kind: KindECDSA, Signer: types.Address{0x01}, Data: make([]byte, 64)}})
	assert.ErrorIs(t, err, ErrInvalidSignatureLength)
}

func TestRoundTrip(t *testing.T) {
	hash := testHash()
	s1 := newSigner(t)
	s2 := newSigner(t)

	in := []Signature{
		{Kind: KindECDSA, Signer: s1.addr, Data: s1.signEIP712(hash)},
		{Kind: KindECDSA, Signer: s2.addr, Data: s2.signEthSign(hash)},
		{Kind: KindContract, Signer: types.MustAddress("0x00000000000000000000000000000000000000aa"), Data: []byte{1, 2, 3}},
		{Kind: KindApprovedHash, Signer: types.MustAddress("0x00000000000000000000000000000000000000bb")},
	}

	encoded, err := Encode(in)
	require.NoError(t, err)
	decoded, err := Decode(encoded, hash)
	require.NoError(t, err)
	require.Len(t, decoded, len(in))

	bySigner := make(map[types.Address]Signature, len(decoded))
	for _, sig := range decoded {
		bySigner[sig.Signer] = sig
	}
	for _, want := range in {
		got, ok := bySigner[want.Signer]
		require.True(t, ok, "signer %s missing after round trip", want.Signer)
		assert.Equal(t, want.Kind, got.Kind)
		if want.Kind != KindApprovedHash {
			assert.Equal(t, want.Data, got.Data)
		}
	}
}

func TestDecodeRecoversEthSignOverPrefixedHash(t *testing.T) {
	hash := testHash()
	s := newSigner(t)

	// Tag 31/32: recovery must run over the prefixed digest.
	ethSig := s.signEthSign(hash)
	decoded, err := Decode(ethSig, hash)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, s.addr, decoded[0].Signer)
	assert.True(t, decoded[0].IsEthSign())

	// The same r/s with a direct tag must NOT recover the signer: it
	// attests to a different digest.
	direct := append([]byte(nil), ethSig...)
	direct[64] -= ethSignShift
	decoded, err = Decode(direct, hash)
	if err == nil {
		require.Len(t, decoded, 1)
		assert.NotEqual(t, s.addr, decoded[0].Signer,
			"direct-tag recovery over the raw hash must yield a different signer")
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	stride := make([]byte, ECDSASignatureLength)
	stride[64] = 26
	_, err := Decode(stride, testHash())
	assert.ErrorIs(t, err, ErrUnknownSignatureTag)
}

func TestDecodeTruncatedDynamic(t *testing.T) {
	contract := Signature{
		Kind:   KindContract,
		Signer: types.MustAddress("0x00000000000000000000000000000000000000aa"),
		Data:   bytes.Repeat([]byte{0xee}, 40),
	}
	encoded, err := Encode([]Signature{contract})
	require.NoError(t, err)

	// Cut into the declared payload.
	_, err = Decode(encoded[:len(encoded)-8], testHash())
	assert.ErrorIs(t, err, ErrTruncatedDynamicData)

	// Cut into the length word itself.
	_, err = Decode(encoded[:ECDSASignatureLength+16], testHash())
	assert.ErrorIs(t, err, ErrTruncatedDynamicData)
}

func TestDecodeEmpty(t *testing.T) {
	_, err := Decode(nil, testHash())
	assert.ErrorIs(t, err, ErrEmptySignatureSet)
}

func TestPackECDSAPadding(t *testing.T) {
	r := []byte{0x01}
	s := []byte{0x02, 0x03}
	sig := PackECDSA(r, s, 27)
	require.Len(t, sig, ECDSASignatureLength)
	assert.EqualValues(t, 0x01, sig[31])
	assert.EqualValues(t, 0x02, sig[62])
	assert.EqualValues(t, 0x03, sig[63])
	assert.EqualValues(t, 27, sig[64])
	assert.Equal(t, make([]byte, 31), sig[:31])
}
