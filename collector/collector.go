package collector

import (
	"context"
	"errors"
	"math/big"

	"github.com/shaojunda/ckb-tx-sdk/types"
)

// Result is the outcome of a collection: the cells in the order the indexer
// returned them and their summed capacity.
type Result struct {
	Cells         []*types.Cell
	TotalCapacity *big.Int
}

// CapacityCollector gathers cells first-fit until a capacity target is met.
// It never reorders cells to minimise change.
type CapacityCollector struct {
	indexer  CellIndexer
	pageSize uint64
}

func NewCapacityCollector(indexer CellIndexer, pageSize uint64) *CapacityCollector {
	return &CapacityCollector{
		indexer:  indexer,
		pageSize: pageSize,
	}
}

// Collect pulls cells matching query until their capacity reaches required.
// If the index runs dry first it returns an *types.InsufficientCapacityError
// naming the shortfall.
func (c *CapacityCollector) Collect(ctx context.Context, query Query, required *big.Int) (*Result, error) {
	return c.CollectFrom(ctx, []Query{query}, required)
}

// CollectFrom works through queries in order, moving to the next owner only
// when the previous one is exhausted.
func (c *CapacityCollector) CollectFrom(ctx context.Context, queries []Query, required *big.Int) (*Result, error) {
	if required == nil || required.Sign() < 0 {
		return nil, types.ErrInvalidCapacity
	}
	if len(queries) == 0 {
		return nil, errors.New("no query to collect from")
	}

	result := &Result{TotalCapacity: big.NewInt(0)}
	for _, query := range queries {
		if result.TotalCapacity.Cmp(required) >= 0 {
			break
		}
		it := NewCellIterator(c.indexer, query, c.pageSize)
		for result.TotalCapacity.Cmp(required) < 0 && it.Next(ctx) {
			cell := it.Cell()
			result.Cells = append(result.Cells, cell)
			result.TotalCapacity.Add(result.TotalCapacity, cell.Capacity)
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
	}

	if result.TotalCapacity.Cmp(required) < 0 {
		return nil, &types.InsufficientCapacityError{
			Required:  new(big.Int).Set(required),
			Collected: result.TotalCapacity,
		}
	}

	log.Debugf("Collected %d cells holding %s CKB for a target of %s CKB",
		len(result.Cells), types.FormatCapacity(result.TotalCapacity), types.FormatCapacity(required))
	return result, nil
}
