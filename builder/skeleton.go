package builder

import (
	"fmt"

	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// Stage is how far a skeleton has progressed towards signing. Stages only
// move forward.
type Stage int

const (
	StageEmpty Stage = iota
	StageBuilt
	StageWitnessesPlaceheld
	StageEntriesGenerated
)

func (s Stage) String() string {
	switch s {
	case StageEmpty:
		return "empty"
	case StageBuilt:
		return "built"
	case StageWitnessesPlaceheld:
		return "witnesses placeheld"
	case StageEntriesGenerated:
		return "entries generated"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// SigningEntry asks for one signature over Message for the lock group whose
// first input sits at Index.
type SigningEntry struct {
	Index    int
	LockHash ckbTypes.Hash
	Message  []byte
}

// TransactionSkeleton is an append-only transaction under construction.
// Every Add method leaves the receiver untouched and returns an updated
// copy, so a skeleton can be shared freely between goroutines.
type TransactionSkeleton struct {
	stage          Stage
	cellDeps       []*ckbTypes.CellDep
	headerDeps     []ckbTypes.Hash
	inputs         []*types.Cell
	outputs        []*types.Cell
	witnesses      [][]byte
	signingEntries []SigningEntry
}

func NewTransactionSkeleton() *TransactionSkeleton {
	return &TransactionSkeleton{}
}

// clone copies the skeleton with every slice clipped to its length, so an
// append on the copy never writes into the original's backing arrays.
func (s *TransactionSkeleton) clone() *TransactionSkeleton {
	return &TransactionSkeleton{
		stage:          s.stage,
		cellDeps:       s.cellDeps[:len(s.cellDeps):len(s.cellDeps)],
		headerDeps:     s.headerDeps[:len(s.headerDeps):len(s.headerDeps)],
		inputs:         s.inputs[:len(s.inputs):len(s.inputs)],
		outputs:        s.outputs[:len(s.outputs):len(s.outputs)],
		witnesses:      s.witnesses[:len(s.witnesses):len(s.witnesses)],
		signingEntries: s.signingEntries[:len(s.signingEntries):len(s.signingEntries)],
	}
}

func (s *TransactionSkeleton) requireBefore(stage Stage, op string) error {
	if s.stage >= stage {
		return fmt.Errorf("%w: cannot %s once %v", types.ErrPreconditionViolated, op, s.stage)
	}
	return nil
}

func (s *TransactionSkeleton) built() {
	if s.stage == StageEmpty {
		s.stage = StageBuilt
	}
}

// AddCellDep appends a cell dep. A dep equal to one already present is
// skipped.
func (s *TransactionSkeleton) AddCellDep(dep *ckbTypes.CellDep) (*TransactionSkeleton, error) {
	if err := s.requireBefore(StageEntriesGenerated, "add cell dep"); err != nil {
		return nil, err
	}
	if dep == nil || dep.OutPoint == nil {
		return nil, fmt.Errorf("%w: cell dep without out point", types.ErrPreconditionViolated)
	}
	next := s.clone()
	for _, d := range s.cellDeps {
		if d.DepType == dep.DepType && d.OutPoint.TxHash == dep.OutPoint.TxHash && d.OutPoint.Index == dep.OutPoint.Index {
			return next, nil
		}
	}
	next.cellDeps = append(next.cellDeps, &ckbTypes.CellDep{
		OutPoint: &ckbTypes.OutPoint{TxHash: dep.OutPoint.TxHash, Index: dep.OutPoint.Index},
		DepType:  dep.DepType,
	})
	next.built()
	return next, nil
}

func (s *TransactionSkeleton) AddCellDeps(deps ...*ckbTypes.CellDep) (*TransactionSkeleton, error) {
	next := s
	for _, dep := range deps {
		var err error
		if next, err = next.AddCellDep(dep); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// AddHeaderDep appends a block hash the scripts may read.
func (s *TransactionSkeleton) AddHeaderDep(hash ckbTypes.Hash) (*TransactionSkeleton, error) {
	if err := s.requireBefore(StageEntriesGenerated, "add header dep"); err != nil {
		return nil, err
	}
	next := s.clone()
	next.headerDeps = append(next.headerDeps, hash)
	next.built()
	return next, nil
}

// AddInput appends a live cell to spend. Inputs can only be added while no
// witness exists, since witnesses align with inputs by position.
func (s *TransactionSkeleton) AddInput(cell *types.Cell) (*TransactionSkeleton, error) {
	if err := s.requireBefore(StageWitnessesPlaceheld, "add input"); err != nil {
		return nil, err
	}
	if len(s.witnesses) > 0 {
		return nil, fmt.Errorf("%w: cannot add input after witnesses", types.ErrPreconditionViolated)
	}
	if err := checkCell(cell); err != nil {
		return nil, err
	}
	if cell.OutPoint == nil {
		return nil, fmt.Errorf("%w: input without out point", types.ErrPreconditionViolated)
	}
	next := s.clone()
	next.inputs = append(next.inputs, cell.Clone())
	next.built()
	return next, nil
}

func (s *TransactionSkeleton) AddInputs(cells ...*types.Cell) (*TransactionSkeleton, error) {
	next := s
	for _, cell := range cells {
		var err error
		if next, err = next.AddInput(cell); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// AddOutput appends a cell to create. Any out point on cell is ignored.
func (s *TransactionSkeleton) AddOutput(cell *types.Cell) (*TransactionSkeleton, error) {
	if err := s.requireBefore(StageEntriesGenerated, "add output"); err != nil {
		return nil, err
	}
	if err := checkCell(cell); err != nil {
		return nil, err
	}
	out := cell.Clone()
	out.OutPoint = nil
	next := s.clone()
	next.outputs = append(next.outputs, out)
	next.built()
	return next, nil
}

func (s *TransactionSkeleton) AddOutputs(cells ...*types.Cell) (*TransactionSkeleton, error) {
	next := s
	for _, cell := range cells {
		var err error
		if next, err = next.AddOutput(cell); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// AddWitness appends a raw witness. Before placeholders are assigned this
// builds the witness list by hand; afterwards it adds trailing witnesses
// beyond the input count, which are covered by every signing message.
func (s *TransactionSkeleton) AddWitness(witness []byte) (*TransactionSkeleton, error) {
	if err := s.requireBefore(StageEntriesGenerated, "add witness"); err != nil {
		return nil, err
	}
	next := s.clone()
	next.witnesses = append(next.witnesses, append([]byte{}, witness...))
	next.built()
	return next, nil
}

func checkCell(cell *types.Cell) error {
	if cell == nil {
		return fmt.Errorf("%w: nil cell", types.ErrPreconditionViolated)
	}
	if cell.Lock == nil {
		return fmt.Errorf("%w: cell without lock script", types.ErrPreconditionViolated)
	}
	if _, err := types.CapacityToUint64(cell.Capacity); err != nil {
		return err
	}
	return nil
}

func (s *TransactionSkeleton) Stage() Stage {
	return s.stage
}

func (s *TransactionSkeleton) CellDeps() []*ckbTypes.CellDep {
	return append([]*ckbTypes.CellDep(nil), s.cellDeps...)
}

func (s *TransactionSkeleton) HeaderDeps() []ckbTypes.Hash {
	return append([]ckbTypes.Hash(nil), s.headerDeps...)
}

// Inputs returns copies of the input cells.
func (s *TransactionSkeleton) Inputs() []*types.Cell {
	return cloneCells(s.inputs)
}

// Outputs returns copies of the output cells.
func (s *TransactionSkeleton) Outputs() []*types.Cell {
	return cloneCells(s.outputs)
}

func (s *TransactionSkeleton) Witnesses() [][]byte {
	out := make([][]byte, len(s.witnesses))
	for i, w := range s.witnesses {
		out[i] = append([]byte{}, w...)
	}
	return out
}

func (s *TransactionSkeleton) SigningEntries() []SigningEntry {
	out := make([]SigningEntry, len(s.signingEntries))
	for i, e := range s.signingEntries {
		out[i] = SigningEntry{Index: e.Index, LockHash: e.LockHash, Message: append([]byte{}, e.Message...)}
	}
	return out
}

// RawTransaction renders the skeleton in wire form. Inputs keep only their
// out points; capacities are narrowed to uint64 here.
func (s *TransactionSkeleton) RawTransaction() (*ckbTypes.Transaction, error) {
	tx := &ckbTypes.Transaction{
		Version:     0,
		CellDeps:    s.CellDeps(),
		HeaderDeps:  s.HeaderDeps(),
		Inputs:      make([]*ckbTypes.CellInput, 0, len(s.inputs)),
		Outputs:     make([]*ckbTypes.CellOutput, 0, len(s.outputs)),
		OutputsData: make([][]byte, 0, len(s.outputs)),
		Witnesses:   s.Witnesses(),
	}
	if tx.CellDeps == nil {
		tx.CellDeps = []*ckbTypes.CellDep{}
	}
	if tx.HeaderDeps == nil {
		tx.HeaderDeps = []ckbTypes.Hash{}
	}
	for _, in := range s.inputs {
		tx.Inputs = append(tx.Inputs, &ckbTypes.CellInput{
			Since:          0,
			PreviousOutput: in.OutPoint,
		})
	}
	for i, out := range s.outputs {
		output, err := out.Output()
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		tx.Outputs = append(tx.Outputs, output)
		tx.OutputsData = append(tx.OutputsData, append([]byte{}, out.Data...))
	}
	return tx, nil
}

// TxHash hashes the transaction body, which excludes witnesses.
func (s *TransactionSkeleton) TxHash() (ckbTypes.Hash, error) {
	tx, err := s.RawTransaction()
	if err != nil {
		return ckbTypes.Hash{}, err
	}
	return tx.ComputeHash()
}

func cloneCells(cells []*types.Cell) []*types.Cell {
	out := make([]*types.Cell, len(cells))
	for i, c := range cells {
		out[i] = c.Clone()
	}
	return out
}
