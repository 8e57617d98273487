package client

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/types"
	"github.com/stretchr/testify/require"
)

var pollHash = ckbTypes.HexToHash("0xdb159ba4ba1ec8abdb7e9f570c7a1a1febf05eeb3f5d6ebdd50ee3bde7740189")

type pollResult struct {
	status Status
	err    error
}

// wait runs the poller in the background and feeds it ticks forced ticks.
func wait(ctx context.Context, p *Poller, force *ticker.Force, ticks int) pollResult {
	done := make(chan pollResult, 1)
	go func() {
		status, err := p.WaitForConfirmation(ctx, pollHash)
		done <- pollResult{status, err}
	}()
	for i := 0; i < ticks; i++ {
		select {
		case force.Force <- time.Now():
		case r := <-done:
			return r
		}
	}
	return <-done
}

func newTestPoller(node Node, timeout time.Duration) (*Poller, *ticker.Force) {
	force := ticker.NewForce(time.Hour)
	return &Poller{Node: node, Ticker: force, Timeout: timeout, ThrowOnNotFound: true}, force
}

func TestWaitForConfirmation(t *testing.T) {
	node := &fakeNode{statuses: []Status{StatusPending, StatusProposed, StatusCommitted}}
	p, force := newTestPoller(node, time.Minute)
	defer force.Stop()

	var seen []Status
	p.OnStatus = func(s Status) { seen = append(seen, s) }

	r := wait(context.Background(), p, force, 2)
	require.NoError(t, r.err)
	require.Equal(t, StatusCommitted, r.status)
	require.Equal(t, []Status{StatusPending, StatusProposed, StatusCommitted}, seen)
	require.Equal(t, 3, node.polls)
}

func TestWaitForConfirmationFailures(t *testing.T) {
	cases := []struct {
		Name            string
		Statuses        []Status
		ThrowOnNotFound bool
		Ticks           int
		Expected        error
	}{
		{"rejected", []Status{StatusPending, StatusRejected}, true, 1, types.ErrTransactionRejected},
		{"not found", []Status{StatusNotFound}, true, 0, types.ErrTransactionNotFound},
		{"unknown", []Status{StatusUnknown}, true, 0, types.ErrTransactionNotFound},
		{"timeout", []Status{StatusPending}, true, 0, types.ErrConfirmationTimeout},
		{"not found then timeout", []Status{StatusNotFound}, false, 2, types.ErrConfirmationTimeout},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			node := &fakeNode{statuses: c.Statuses}
			p, force := newTestPoller(node, 50*time.Millisecond)
			defer force.Stop()
			p.ThrowOnNotFound = c.ThrowOnNotFound

			r := wait(context.Background(), p, force, c.Ticks)
			require.ErrorIs(t, r.err, c.Expected)
		})
	}
}

func TestWaitForConfirmationCancel(t *testing.T) {
	node := &fakeNode{statuses: []Status{StatusPending}}
	p, force := newTestPoller(node, 0)
	defer force.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := wait(ctx, p, force, 0)
	require.ErrorIs(t, r.err, context.Canceled)
	require.Equal(t, StatusPending, r.status)
}

func TestSendAndWait(t *testing.T) {
	node := &fakeNode{statuses: []Status{StatusCommitted}}
	p, force := newTestPoller(node, time.Minute)
	defer force.Stop()

	tx := &ckbTypes.Transaction{OutputsData: [][]byte{}}
	hash, err := SendAndWait(context.Background(), node, tx, p)
	require.NoError(t, err)
	want, err := tx.ComputeHash()
	require.NoError(t, err)
	require.Equal(t, want, hash)
}
