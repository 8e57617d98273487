package client

import (
	"github.com/nervosnetwork/ckb-sdk-go/rpc"
	"github.com/nervosnetwork/ckb-sdk-go/types"
)

// SerializeTransaction renders tx in the node's JSON form, e.g. for handing
// a sealed transaction to another process.
func SerializeTransaction(tx *types.Transaction) ([]byte, error) {
	txs, err := rpc.TransactionString(tx)
	if err != nil {
		return nil, err
	}
	return []byte(txs), nil
}

func DeserializeTransaction(tx []byte) (*types.Transaction, error) {
	txs, err := rpc.TransactionFromString(string(tx))
	if err != nil {
		return nil, err
	}
	return txs, nil
}
