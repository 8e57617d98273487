package types

import (
	"bytes"
	"math/big"

	"github.com/nervosnetwork/ckb-sdk-go/indexer"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
)

// Cell is a ledger cell as seen while assembling a transaction. Capacity is
// kept as an arbitrary precision integer and only narrowed to uint64 by
// Output when the cell is written to the wire.
type Cell struct {
	OutPoint *ckbTypes.OutPoint
	Capacity *big.Int
	Lock     *ckbTypes.Script
	Type     *ckbTypes.Script
	Data     []byte
}

// NewCellFromLive converts an indexer live cell.
func NewCellFromLive(live *indexer.LiveCell) *Cell {
	c := &Cell{
		OutPoint: live.OutPoint,
		Data:     append([]byte{}, live.OutputData...),
	}
	if live.Output != nil {
		c.Capacity = new(big.Int).SetUint64(live.Output.Capacity)
		c.Lock = live.Output.Lock
		c.Type = live.Output.Type
	}
	return c
}

// NewCellFromOutput converts an on-chain output and its data.
func NewCellFromOutput(outPoint *ckbTypes.OutPoint, output *ckbTypes.CellOutput, data []byte) *Cell {
	return &Cell{
		OutPoint: outPoint,
		Capacity: new(big.Int).SetUint64(output.Capacity),
		Lock:     output.Lock,
		Type:     output.Type,
		Data:     append([]byte{}, data...),
	}
}

// Output returns the wire form of the cell.
func (c *Cell) Output() (*ckbTypes.CellOutput, error) {
	capacity, err := CapacityToUint64(c.Capacity)
	if err != nil {
		return nil, err
	}
	return &ckbTypes.CellOutput{
		Capacity: capacity,
		Lock:     c.Lock,
		Type:     c.Type,
	}, nil
}

// OccupiedCapacity is the minimum capacity, in shannons, the cell needs to
// pay for its own serialized fields.
func (c *Cell) OccupiedCapacity() *big.Int {
	size := uint64(8) + scriptSize(c.Lock) + uint64(len(c.Data))
	if c.Type != nil {
		size += scriptSize(c.Type)
	}
	return CkbytesToShannons(size)
}

// Clone returns a deep copy so later edits by the caller cannot leak into a
// skeleton.
func (c *Cell) Clone() *Cell {
	out := &Cell{
		Lock: cloneScript(c.Lock),
		Type: cloneScript(c.Type),
		Data: append([]byte{}, c.Data...),
	}
	if c.Capacity != nil {
		out.Capacity = new(big.Int).Set(c.Capacity)
	}
	if c.OutPoint != nil {
		out.OutPoint = &ckbTypes.OutPoint{TxHash: c.OutPoint.TxHash, Index: c.OutPoint.Index}
	}
	return out
}

// CapacityToUint64 narrows a capacity for serialization.
func CapacityToUint64(capacity *big.Int) (uint64, error) {
	if capacity == nil || capacity.Sign() < 0 {
		return 0, ErrInvalidCapacity
	}
	if !capacity.IsUint64() {
		return 0, ErrCapacityOverflow
	}
	return capacity.Uint64(), nil
}

// ScriptEqual reports whether two scripts match field by field.
func ScriptEqual(a, b *ckbTypes.Script) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.CodeHash == b.CodeHash && a.HashType == b.HashType && bytes.Equal(a.Args, b.Args)
}

func scriptSize(s *ckbTypes.Script) uint64 {
	if s == nil {
		return 0
	}
	// code_hash + hash_type + args
	return 32 + 1 + uint64(len(s.Args))
}

func cloneScript(s *ckbTypes.Script) *ckbTypes.Script {
	if s == nil {
		return nil
	}
	return &ckbTypes.Script{
		CodeHash: s.CodeHash,
		HashType: s.HashType,
		Args:     append([]byte{}, s.Args...),
	}
}
