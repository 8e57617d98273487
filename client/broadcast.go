package client

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// Node is the part of the CKB node RPC this package drives. rpc.Client
// implements it.
type Node interface {
	SendTransaction(ctx context.Context, tx *ckbTypes.Transaction) (*ckbTypes.Hash, error)
	GetTransaction(ctx context.Context, hash ckbTypes.Hash) (*ckbTypes.TransactionWithStatus, error)
}

// rpcErrorPattern matches node errors of the form
// `Category: Type {"code":...,"message":...,"data":...}`.
var rpcErrorPattern = regexp.MustCompile(`^(\w+): ([\w\s]+) (\{.*\})$`)

// RPCError is a structured rejection from the node. It matches
// types.ErrTransactionRejected with errors.Is.
type RPCError struct {
	Category string
	Type     string
	Code     int
	Message  string
	Data     string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %s (code %d): %s", e.Category, e.Type, e.Code, e.Message)
}

func (e *RPCError) Unwrap() error {
	return types.ErrTransactionRejected
}

// ParseRPCError converts a node error into an *RPCError when its message
// has the structured form, and returns err unchanged otherwise.
func ParseRPCError(err error) error {
	if err == nil {
		return nil
	}
	matches := rpcErrorPattern.FindStringSubmatch(err.Error())
	if matches == nil {
		return err
	}

	var body struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if json.Unmarshal([]byte(matches[3]), &body) != nil {
		return err
	}
	data := string(body.Data)
	var s string
	if json.Unmarshal(body.Data, &s) == nil {
		data = s
	}
	return &RPCError{
		Category: matches[1],
		Type:     matches[2],
		Code:     body.Code,
		Message:  body.Message,
		Data:     data,
	}
}

// Broadcast submits a sealed transaction and returns its hash.
func Broadcast(ctx context.Context, node Node, tx *ckbTypes.Transaction) (ckbTypes.Hash, error) {
	hash, err := node.SendTransaction(ctx, tx)
	if err != nil {
		return ckbTypes.Hash{}, ParseRPCError(err)
	}
	log.Infof("Sent transaction %s", hash)
	return *hash, nil
}

// SendAndWait broadcasts tx and blocks until poller sees it committed.
func SendAndWait(ctx context.Context, node Node, tx *ckbTypes.Transaction, poller *Poller) (ckbTypes.Hash, error) {
	hash, err := Broadcast(ctx, node, tx)
	if err != nil {
		return hash, err
	}
	if _, err := poller.WaitForConfirmation(ctx, hash); err != nil {
		return hash, err
	}
	return hash, nil
}
