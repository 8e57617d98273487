package client

import (
	"context"
	"fmt"

	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// LiveCellSource looks up a single cell by out point. rpc.Client
// implements it.
type LiveCellSource interface {
	GetLiveCell(ctx context.Context, outPoint *ckbTypes.OutPoint, withData bool) (*ckbTypes.CellWithStatus, error)
}

// GetLiveCell fetches an unspent cell. A spent cell fails with
// types.ErrDeadCell; any other non-live status is reported as not found.
func GetLiveCell(ctx context.Context, source LiveCellSource, outPoint *ckbTypes.OutPoint, withData bool) (*types.Cell, error) {
	res, err := source.GetLiveCell(ctx, outPoint, withData)
	if err != nil {
		return nil, err
	}
	switch {
	case res.Status == "dead":
		return nil, fmt.Errorf("%w: %s-%d", types.ErrDeadCell, outPoint.TxHash, outPoint.Index)
	case res.Status != "live" || res.Cell == nil || res.Cell.Output == nil:
		return nil, fmt.Errorf("live cell not found at out point %s-%d", outPoint.TxHash, outPoint.Index)
	}

	var data []byte
	if withData && res.Cell.Data != nil {
		data = res.Cell.Data.Content
	}
	return types.NewCellFromOutput(outPoint, res.Cell.Output, data), nil
}
