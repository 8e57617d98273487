package client

import (
	"context"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/nervosnetwork/ckb-sdk-go/indexer"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/config"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// maxTipFailures is how many failed tip reads from each side are tolerated
// before giving up.
const maxTipFailures = 5

// TipSource reports the node's and the indexer's tip. rpc.Client implements
// it.
type TipSource interface {
	GetTipHeader(ctx context.Context) (*ckbTypes.Header, error)
	GetTip(ctx context.Context) (*indexer.TipHeader, error)
}

// IndexerWaiter blocks until the indexer is at most BlockDifference blocks
// behind the node.
type IndexerWaiter struct {
	Tips            TipSource
	Ticker          ticker.Ticker
	Timeout         time.Duration
	BlockDifference uint64

	// OnProgress, when set, is called every time the indexer is still behind.
	OnProgress func(indexerTip, nodeTip uint64)
}

// NewIndexerWaiter builds a waiter from the indexerSync config section.
func NewIndexerWaiter(tips TipSource, cfg *config.Config) *IndexerWaiter {
	return &IndexerWaiter{
		Tips:            tips,
		Ticker:          ticker.New(cfg.IndexerSync.Interval),
		Timeout:         cfg.IndexerSync.Timeout,
		BlockDifference: cfg.IndexerSync.BlockDifference,
	}
}

// WaitForIndexer waits with the settings in cfg.
func WaitForIndexer(ctx context.Context, tips TipSource, cfg *config.Config) error {
	w := NewIndexerWaiter(tips, cfg)
	defer w.Ticker.Stop()
	return w.Wait(ctx)
}

// Wait returns nil once the indexer has caught up. It fails with
// types.ErrIndexerTimeout, or with types.ErrIndexerUnavailable after
// maxTipFailures failed reads of either tip.
func (w *IndexerWaiter) Wait(ctx context.Context) error {
	var timeout <-chan time.Time
	if w.Timeout > 0 {
		timer := time.NewTimer(w.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	w.Ticker.Resume()
	defer w.Ticker.Pause()

	var indexerFailures, nodeFailures int
	for {
		indexerTip, nodeTip, err := w.tips(ctx)
		switch {
		case err == errIndexerTip:
			indexerFailures++
			if indexerFailures >= maxTipFailures {
				return fmt.Errorf("%w: indexer failed %d times", types.ErrIndexerUnavailable, indexerFailures)
			}
		case err == errNodeTip:
			nodeFailures++
			if nodeFailures >= maxTipFailures {
				return fmt.Errorf("%w: node failed %d times", types.ErrIndexerUnavailable, nodeFailures)
			}
		case indexerTip+w.BlockDifference >= nodeTip:
			log.Debugf("Indexer at %d, node at %d", indexerTip, nodeTip)
			return nil
		default:
			log.Debugf("Indexer at %d is behind node at %d", indexerTip, nodeTip)
			if w.OnProgress != nil {
				w.OnProgress(indexerTip, nodeTip)
			}
		}

		select {
		case <-w.Ticker.Ticks():
		case <-timeout:
			return fmt.Errorf("%w: indexer at %d, node at %d after %v",
				types.ErrIndexerTimeout, indexerTip, nodeTip, w.Timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type tipError string

func (e tipError) Error() string { return string(e) }

const (
	errIndexerTip tipError = "indexer tip"
	errNodeTip    tipError = "node tip"
)

// tips reads both tips. A failed or empty read is reported as errIndexerTip
// or errNodeTip after logging the cause.
func (w *IndexerWaiter) tips(ctx context.Context) (uint64, uint64, error) {
	tip, err := w.Tips.GetTip(ctx)
	if err != nil || tip == nil {
		log.Warnf("Unable to read indexer tip: %v", err)
		return 0, 0, errIndexerTip
	}
	header, err := w.Tips.GetTipHeader(ctx)
	if err != nil || header == nil {
		log.Warnf("Unable to read node tip: %v", err)
		return tip.BlockNumber, 0, errNodeTip
	}
	return tip.BlockNumber, header.Number, nil
}
