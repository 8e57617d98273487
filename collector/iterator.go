// Package collector pulls live cells out of a CKB indexer and gathers
// enough of them to cover a capacity target.
package collector

import (
	"context"

	"github.com/nervosnetwork/ckb-sdk-go/indexer"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// CellIndexer is the part of rpc.Client the collector reads from.
type CellIndexer interface {
	GetCells(ctx context.Context, searchKey *indexer.SearchKey, order indexer.SearchOrder, limit uint64, afterCursor string) (*indexer.LiveCells, error)
}

// Query selects cells by lock. Type narrows the result to cells carrying
// exactly that type script; TypeEmpty instead keeps only cells without one.
// DataEmpty drops cells holding data.
type Query struct {
	Lock      *ckbTypes.Script
	Type      *ckbTypes.Script
	TypeEmpty bool
	DataEmpty bool
}

// CapacityQuery matches plain capacity cells of an owner: no type script
// and no data.
func CapacityQuery(lock *ckbTypes.Script) Query {
	return Query{Lock: lock, TypeEmpty: true, DataEmpty: true}
}

func (q Query) match(c *indexer.LiveCell) bool {
	if c.Output == nil {
		return false
	}
	switch {
	case q.Type != nil:
		if !types.ScriptEqual(q.Type, c.Output.Type) {
			return false
		}
	case q.TypeEmpty:
		if c.Output.Type != nil {
			return false
		}
	}
	if q.DataEmpty && len(c.OutputData) > 0 {
		return false
	}
	return true
}

// CellIterator walks the cells matching a query page by page. A new
// iterator restarts from the first page.
//
//	it := NewCellIterator(client, query, 1000)
//	for it.Next(ctx) {
//		cell := it.Cell()
//	}
//	if err := it.Err(); err != nil { ... }
type CellIterator struct {
	indexer  CellIndexer
	query    Query
	pageSize uint64

	page    []*indexer.LiveCell
	pos     int
	cursor  string
	last    bool
	current *types.Cell
	err     error
}

func NewCellIterator(source CellIndexer, query Query, pageSize uint64) *CellIterator {
	if pageSize == 0 {
		pageSize = types.MaxInput
	}
	return &CellIterator{
		indexer:  source,
		query:    query,
		pageSize: pageSize,
	}
}

// Next advances to the next matching cell, fetching another page when the
// current one is used up. It returns false at the end or on error.
func (it *CellIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	for {
		if err := ctx.Err(); err != nil {
			it.err = err
			return false
		}
		for it.pos < len(it.page) {
			live := it.page[it.pos]
			it.pos++
			if it.query.match(live) {
				it.current = types.NewCellFromLive(live)
				return true
			}
		}
		if it.last {
			it.current = nil
			return false
		}
		if !it.fetch(ctx) {
			return false
		}
	}
}

func (it *CellIterator) fetch(ctx context.Context) bool {
	searchKey := &indexer.SearchKey{
		Script:     it.query.Lock,
		ScriptType: indexer.ScriptTypeLock,
	}
	liveCells, err := it.indexer.GetCells(ctx, searchKey, indexer.SearchOrderAsc, it.pageSize, it.cursor)
	if err != nil {
		it.err = err
		return false
	}
	if liveCells == nil {
		liveCells = &indexer.LiveCells{}
	}
	log.Debugf("Fetched %d cells after cursor %q", len(liveCells.Objects), it.cursor)

	it.page = liveCells.Objects
	it.pos = 0
	if uint64(len(liveCells.Objects)) < it.pageSize || liveCells.LastCursor == "" {
		it.last = true
	}
	it.cursor = liveCells.LastCursor
	return true
}

// Cell returns the cell produced by the last successful Next.
func (it *CellIterator) Cell() *types.Cell {
	return it.current
}

func (it *CellIterator) Err() error {
	return it.err
}
