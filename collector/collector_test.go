package collector

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"testing"

	"github.com/nervosnetwork/ckb-sdk-go/indexer"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/types"
	"github.com/stretchr/testify/require"
)

type mockIndexer struct {
	cells []*indexer.LiveCell
	calls int
	err   error
}

func (m *mockIndexer) GetCells(_ context.Context, searchKey *indexer.SearchKey, _ indexer.SearchOrder, limit uint64, afterCursor string) (*indexer.LiveCells, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	start := 0
	if afterCursor != "" {
		start, _ = strconv.Atoi(afterCursor)
	}

	var objects []*indexer.LiveCell
	i := start
	for ; i < len(m.cells) && uint64(len(objects)) < limit; i++ {
		if types.ScriptEqual(m.cells[i].Output.Lock, searchKey.Script) {
			objects = append(objects, m.cells[i])
		}
	}
	cursor := ""
	if len(objects) > 0 {
		cursor = strconv.Itoa(i)
	}
	return &indexer.LiveCells{Objects: objects, LastCursor: cursor}, nil
}

func lockScript(b byte) *ckbTypes.Script {
	return &ckbTypes.Script{
		CodeHash: ckbTypes.HexToHash("0x9bd7e06f3ecf4be0f2fcd2188b23f1b9fcc88e5d4b65a8637b17723bbda3cce8"),
		HashType: ckbTypes.HashTypeType,
		Args:     []byte{b},
	}
}

func liveCell(lock *ckbTypes.Script, capacity uint64, index uint) *indexer.LiveCell {
	return &indexer.LiveCell{
		OutPoint: &ckbTypes.OutPoint{TxHash: ckbTypes.HexToHash("0xabcd"), Index: index},
		Output:   &ckbTypes.CellOutput{Capacity: capacity, Lock: lock},
	}
}

func TestCellIteratorPages(t *testing.T) {
	owner := lockScript(1)
	m := &mockIndexer{}
	for i := 0; i < 7; i++ {
		m.cells = append(m.cells, liveCell(owner, 100, uint(i)))
	}

	it := NewCellIterator(m, Query{Lock: owner}, 3)
	var got []uint
	for it.Next(context.Background()) {
		got = append(got, it.Cell().OutPoint.Index)
	}
	require.NoError(t, it.Err())
	require.Equal(t, []uint{0, 1, 2, 3, 4, 5, 6}, got)
	require.Equal(t, 3, m.calls)
	require.Nil(t, it.Cell())
	require.False(t, it.Next(context.Background()))
}

func TestCellIteratorFilters(t *testing.T) {
	owner := lockScript(1)
	udt := lockScript(9)
	typed := liveCell(owner, 200, 1)
	typed.Output.Type = udt
	withData := liveCell(owner, 300, 2)
	withData.OutputData = []byte{1}

	m := &mockIndexer{cells: []*indexer.LiveCell{liveCell(owner, 100, 0), typed, withData}}

	cases := []struct {
		Name     string
		Query    Query
		Expected []uint
	}{
		{"any", Query{Lock: owner}, []uint{0, 1, 2}},
		{"empty type", Query{Lock: owner, TypeEmpty: true}, []uint{0, 2}},
		{"capacity only", CapacityQuery(owner), []uint{0}},
		{"exact type", Query{Lock: owner, Type: udt}, []uint{1}},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			it := NewCellIterator(m, c.Query, 10)
			var got []uint
			for it.Next(context.Background()) {
				got = append(got, it.Cell().OutPoint.Index)
			}
			require.NoError(t, it.Err())
			require.Equal(t, c.Expected, got)
		})
	}
}

func TestCellIteratorCancel(t *testing.T) {
	owner := lockScript(1)
	m := &mockIndexer{cells: []*indexer.LiveCell{liveCell(owner, 100, 0)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	it := NewCellIterator(m, Query{Lock: owner}, 10)
	require.False(t, it.Next(ctx))
	require.ErrorIs(t, it.Err(), context.Canceled)
	require.Equal(t, 0, m.calls)
}

func TestCollect(t *testing.T) {
	owner := lockScript(1)
	m := &mockIndexer{}
	for i, capacity := range []uint64{100, 250, 50, 400} {
		m.cells = append(m.cells, liveCell(owner, capacity, uint(i)))
	}
	c := NewCapacityCollector(m, 2)

	for _, required := range []int64{0, 1, 100, 350, 800} {
		res, err := c.Collect(context.Background(), CapacityQuery(owner), big.NewInt(required))
		require.NoError(t, err)
		require.True(t, res.TotalCapacity.Cmp(big.NewInt(required)) >= 0)
		require.Equal(t, 0, res.TotalCapacity.Cmp(types.SumCapacity(res.Cells)))
	}

	_, err := c.Collect(context.Background(), CapacityQuery(owner), big.NewInt(801))
	require.ErrorIs(t, err, types.ErrInsufficientCapacity)
}

func TestCollectShortfall(t *testing.T) {
	owner := lockScript(1)
	m := &mockIndexer{cells: []*indexer.LiveCell{liveCell(owner, 100, 0), liveCell(owner, 200, 1)}}
	c := NewCapacityCollector(m, 10)

	_, err := c.Collect(context.Background(), CapacityQuery(owner), big.NewInt(500))
	require.Error(t, err)

	var insufficient *types.InsufficientCapacityError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, int64(200), insufficient.Shortfall().Int64())
	require.Equal(t, int64(300), insufficient.Collected.Int64())
}

func TestCollectFromSeveralOwners(t *testing.T) {
	alice, bob := lockScript(1), lockScript(2)
	m := &mockIndexer{cells: []*indexer.LiveCell{
		liveCell(alice, 100, 0),
		liveCell(bob, 300, 1),
		liveCell(bob, 300, 2),
	}}
	c := NewCapacityCollector(m, 10)

	res, err := c.CollectFrom(context.Background(), []Query{CapacityQuery(alice), CapacityQuery(bob)}, big.NewInt(350))
	require.NoError(t, err)
	require.Len(t, res.Cells, 2)
	require.True(t, types.ScriptEqual(alice, res.Cells[0].Lock))
	require.True(t, types.ScriptEqual(bob, res.Cells[1].Lock))
	require.Equal(t, int64(400), res.TotalCapacity.Int64())

	_, err = c.CollectFrom(context.Background(), nil, big.NewInt(1))
	require.Error(t, err)
}

func TestCollectPropagatesIndexerError(t *testing.T) {
	m := &mockIndexer{err: errors.New("indexer down")}
	c := NewCapacityCollector(m, 10)

	_, err := c.Collect(context.Background(), CapacityQuery(lockScript(1)), big.NewInt(1))
	require.EqualError(t, err, "indexer down")
}

type emptyIndexer struct{}

func (emptyIndexer) GetCells(context.Context, *indexer.SearchKey, indexer.SearchOrder, uint64, string) (*indexer.LiveCells, error) {
	return nil, nil
}

func TestCellIteratorNilPage(t *testing.T) {
	it := NewCellIterator(emptyIndexer{}, Query{Lock: lockScript(1)}, 10)
	require.False(t, it.Next(context.Background()))
	require.NoError(t, it.Err())

	_, err := NewCapacityCollector(emptyIndexer{}, 10).Collect(context.Background(), CapacityQuery(lockScript(1)), big.NewInt(1))
	require.ErrorIs(t, err, types.ErrInsufficientCapacity)
}
