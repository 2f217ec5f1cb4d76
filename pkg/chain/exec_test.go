package chain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safekit/safe/pkg/abi"
	"github.com/safekit/safe/pkg/types"
)

func TestExecTransactionSelector(t *testing.T) {
	assert.Equal(t, "6a761202", hex.EncodeToString(execTransactionSelector[:]))
}

func TestExecCalldataLayout(t *testing.T) {
	tx := &types.SafeTransaction{
		MetaTransaction: types.MetaTransaction{
			To:    types.MustAddress("0xEAbCC110fAcBfebabC66Ad6f9E7B67288e720B59"),
			Value: big.NewInt(5),
			Data:  []byte{0xde, 0xad, 0xbe, 0xef},
		},
		Operation: types.OperationCall,
		GasToken:  types.ZeroAddress,
	}
	sigs := make([]byte, 65)

	calldata, err := ExecCalldata(tx, sigs)
	require.NoError(t, err)

	require.True(t, len(calldata) >= 4+10*abi.WordSize)
	assert.Equal(t, execTransactionSelector[:], calldata[:4])

	head := calldata[4:]
	word := func(i int) []byte { return head[i*abi.WordSize : (i+1)*abi.WordSize] }

	assert.Equal(t, tx.To[:], word(0)[12:])
	assert.EqualValues(t, 5, word(1)[31])

	// data offset points past the 10-word head.
	dataOffset := new(big.Int).SetBytes(word(2)).Int64()
	assert.EqualValues(t, 10*abi.WordSize, dataOffset)
	assert.EqualValues(t, 0, word(3)[31], "operation call")

	// data tail: length word then right-padded payload.
	dataTail := head[dataOffset:]
	assert.EqualValues(t, 4, new(big.Int).SetBytes(dataTail[:32]).Int64())
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, dataTail[32:36])

	// signatures offset points at the word right after the data tail.
	sigsOffset := new(big.Int).SetBytes(word(9)).Int64()
	assert.EqualValues(t, dataOffset+64, sigsOffset)
	sigsTail := head[sigsOffset:]
	assert.EqualValues(t, 65, new(big.Int).SetBytes(sigsTail[:32]).Int64())

	// 65-byte payload pads to 96.
	assert.Len(t, sigsTail[32:], 96)
}

func TestExecCalldataRejectsUnknownOperation(t *testing.T) {
	tx := &types.SafeTransaction{Operation: types.Operation(7)}
	_, err := ExecCalldata(tx, nil)
	assert.Error(t, err)
}

func TestExecCalldataEmptyData(t *testing.T) {
	tx := &types.SafeTransaction{Operation: types.OperationCall}
	calldata, err := ExecCalldata(tx, nil)
	require.NoError(t, err)

	// Head, empty-data length word, empty-sigs length word.
	assert.Len(t, calldata, 4+10*abi.WordSize+32+32)
}
