package chain

import (
	"fmt"

	"github.com/safekit/safe/pkg/abi"
	"github.com/safekit/safe/pkg/types"
)

var execTransactionSelector = abi.SelectorOf(
	"execTransaction(address,uint256,bytes,uint8,uint256,uint256,uint256,address,address,bytes)",
)

// ExecCalldata builds the Safe execTransaction calldata for tx with an
// already-packed signature buffer. Ten parameters; data (index 2) and
// signatures (index 9) are dynamic, so the head is 10 words and the two
// tails follow in declaration order.
func ExecCalldata(tx *types.SafeTransaction, packedSigs []byte) ([]byte, error) {
	value, err := abi.Uint256Word(tx.Value)
	if err != nil {
		return nil, fmt.Errorf("chain: value: %w", err)
	}
	safeTxGas, err := abi.Uint256Word(tx.SafeTxGas)
	if err != nil {
		return nil, fmt.Errorf("chain: safeTxGas: %w", err)
	}
	baseGas, err := abi.Uint256Word(tx.BaseGas)
	if err != nil {
		return nil, fmt.Errorf("chain: baseGas: %w", err)
	}
	gasPrice, err := abi.Uint256Word(tx.GasPrice)
	if err != nil {
		return nil, fmt.Errorf("chain: gasPrice: %w", err)
	}
	if _, err := types.ParseOperation(uint8(tx.Operation)); err != nil {
		return nil, fmt.Errorf("chain: %w", err)
	}

	const headWords = 10
	dataTail := abi.DynBytes(tx.Data)
	dataOffset := uint64(headWords * abi.WordSize)
	sigsOffset := dataOffset + uint64(len(dataTail))

	calldata := abi.EncodeCall(execTransactionSelector,
		abi.AddressWord(tx.To),
		value,
		abi.Uint64Word(dataOffset),
		abi.Uint64Word(uint64(tx.Operation)),
		safeTxGas,
		baseGas,
		gasPrice,
		abi.AddressWord(tx.GasToken),
		abi.AddressWord(tx.RefundReceiver),
		abi.Uint64Word(sigsOffset),
	)
	calldata = append(calldata, dataTail...)
	calldata = append(calldata, abi.DynBytes(packedSigs)...)
	return calldata, nil
}
