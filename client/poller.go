package client

import (
	"context"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// Status is a transaction's state as reported by the node.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProposed  Status = "proposed"
	StatusCommitted Status = "committed"
	StatusRejected  Status = "rejected"
	StatusUnknown   Status = "unknown"
	StatusNotFound  Status = "not_found"
)

// Poller checks a transaction's status on every tick until it is committed,
// rejected or the timeout passes.
type Poller struct {
	Node    Node
	Ticker  ticker.Ticker
	Timeout time.Duration

	// ThrowOnNotFound fails the wait as soon as the node does not know the
	// transaction. Otherwise not_found is reported and polling continues.
	ThrowOnNotFound bool

	// OnStatus, when set, is called with every status observed.
	OnStatus func(Status)
}

// NewPoller polls node every interval for at most timeout. A zero timeout
// waits until ctx is done.
func NewPoller(node Node, interval, timeout time.Duration) *Poller {
	return &Poller{
		Node:            node,
		Ticker:          ticker.New(interval),
		Timeout:         timeout,
		ThrowOnNotFound: true,
	}
}

// WaitForConfirmation returns StatusCommitted once the transaction is in a
// block. It fails with types.ErrTransactionRejected,
// types.ErrTransactionNotFound or types.ErrConfirmationTimeout.
func (p *Poller) WaitForConfirmation(ctx context.Context, hash ckbTypes.Hash) (Status, error) {
	var timeout <-chan time.Time
	if p.Timeout > 0 {
		timer := time.NewTimer(p.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	p.Ticker.Resume()
	defer p.Ticker.Pause()

	for {
		status, err := p.status(ctx, hash)
		if err != nil {
			return status, err
		}
		if p.OnStatus != nil {
			p.OnStatus(status)
		}

		switch status {
		case StatusCommitted:
			log.Infof("Transaction %s committed", hash)
			return status, nil
		case StatusRejected:
			return status, fmt.Errorf("%w: %s", types.ErrTransactionRejected, hash)
		case StatusNotFound:
			if p.ThrowOnNotFound {
				return status, fmt.Errorf("%w: %s", types.ErrTransactionNotFound, hash)
			}
		}
		log.Debugf("Transaction %s is %s", hash, status)

		select {
		case <-p.Ticker.Ticks():
		case <-timeout:
			return status, fmt.Errorf("%w: %s still %s after %v", types.ErrConfirmationTimeout, hash, status, p.Timeout)
		case <-ctx.Done():
			return status, ctx.Err()
		}
	}
}

func (p *Poller) status(ctx context.Context, hash ckbTypes.Hash) (Status, error) {
	tx, err := p.Node.GetTransaction(ctx, hash)
	if err != nil {
		return "", err
	}
	if tx == nil || tx.Transaction == nil || tx.TxStatus == nil {
		return StatusNotFound, nil
	}
	status := Status(tx.TxStatus.Status)
	if status == StatusUnknown {
		return StatusNotFound, nil
	}
	return status, nil
}
