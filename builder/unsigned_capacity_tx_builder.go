package builder

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/collector"
	"github.com/shaojunda/ckb-tx-sdk/lock"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// feeAttempts bounds how often Build re-collects after the fee estimate
// outgrew the reserve.
const feeAttempts = 4

// UnsignedCapacityTxBuilder pays plain CKB outputs from one or more owner
// locks and returns the remainder to a change lock.
type UnsignedCapacityTxBuilder struct {
	sources   []*ckbTypes.Script
	change    *ckbTypes.Script
	outputs   []*types.Cell
	extraDeps []*ckbTypes.CellDep
	registry  *lock.Registry
	collector *collector.CapacityCollector
	feeRate   uint64
	maxFee    *big.Int
}

func NewUnsignedCapacityTxBuilder(sources []*ckbTypes.Script, change *ckbTypes.Script, outputs []*types.Cell, registry *lock.Registry, capacityCollector *collector.CapacityCollector, extraDeps ...*ckbTypes.CellDep) UnsignedTxBuilder {
	cfg := registry.Config()
	var maxFee *big.Int
	if cfg.Fee.Max > 0 {
		maxFee = new(big.Int).SetUint64(cfg.Fee.Max)
	}
	return &UnsignedCapacityTxBuilder{
		sources:   sources,
		change:    change,
		outputs:   outputs,
		extraDeps: extraDeps,
		registry:  registry,
		collector: capacityCollector,
		feeRate:   cfg.Fee.Rate,
		maxFee:    maxFee,
	}
}

func (b *UnsignedCapacityTxBuilder) BuildCellDeps(inputs []*types.Cell) ([]*ckbTypes.CellDep, error) {
	kinds := make([]lock.Kind, 0, len(inputs))
	for _, input := range inputs {
		kinds = append(kinds, b.registry.Kind(input.Lock))
	}
	deps, err := b.registry.CellDeps(kinds...)
	if err != nil {
		return nil, err
	}
	return append(deps, b.extraDeps...), nil
}

func (b *UnsignedCapacityTxBuilder) BuildInputs(ctx context.Context, required *big.Int) ([]*types.Cell, error) {
	queries := make([]collector.Query, 0, len(b.sources))
	for _, source := range b.sources {
		queries = append(queries, collector.CapacityQuery(source))
	}
	result, err := b.collector.CollectFrom(ctx, queries, required)
	if err != nil {
		return nil, err
	}
	return result.Cells, nil
}

func (b *UnsignedCapacityTxBuilder) BuildOutputs() ([]*types.Cell, error) {
	if len(b.outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs to pay", types.ErrPreconditionViolated)
	}
	outputs := make([]*types.Cell, 0, len(b.outputs))
	for i, out := range b.outputs {
		if out == nil || out.Lock == nil || out.Capacity == nil {
			return nil, fmt.Errorf("%w: output %d is incomplete", types.ErrPreconditionViolated, i)
		}
		if out.Capacity.Cmp(out.OccupiedCapacity()) < 0 {
			return nil, fmt.Errorf("%w: output %d holds %s CKB, needs %s CKB", types.ErrInsufficientOccupiedCapacity,
				i, types.FormatCapacity(out.Capacity), types.FormatCapacity(out.OccupiedCapacity()))
		}
		outputs = append(outputs, out.Clone())
	}
	return outputs, nil
}

// HandleTxFee assembles the transaction with reserve set aside for the fee
// and prices it. When the priced fee fits in the reserve the transaction is
// reassembled with change carrying everything but the exact fee. Otherwise
// the skeleton is nil and the returned fee is the reserve to collect for.
func (b *UnsignedCapacityTxBuilder) HandleTxFee(inputs, outputs []*types.Cell, reserve *big.Int) (*TransactionSkeleton, *big.Int, error) {
	change := new(big.Int).Sub(types.SumCapacity(inputs), types.SumCapacity(outputs))
	change.Sub(change, reserve)

	s, err := b.assemble(inputs, outputs, change)
	if err != nil {
		return nil, nil, err
	}
	fee, err := EstimateFee(s, b.feeRate)
	if err != nil {
		return nil, nil, err
	}
	if fee.Cmp(reserve) > 0 {
		log.Debugf("Fee %s exceeds reserve %s, collecting again", fee, reserve)
		return nil, fee, nil
	}

	change.Add(change, reserve)
	change.Sub(change, fee)
	if s, err = b.assemble(inputs, outputs, change); err != nil {
		return nil, nil, err
	}
	return s, fee, nil
}

func (b *UnsignedCapacityTxBuilder) assemble(inputs, outputs []*types.Cell, change *big.Int) (*TransactionSkeleton, error) {
	deps, err := b.BuildCellDeps(inputs)
	if err != nil {
		return nil, err
	}
	s, err := NewTransactionSkeleton().AddCellDeps(deps...)
	if err != nil {
		return nil, err
	}
	if s, err = s.AddInputs(inputs...); err != nil {
		return nil, err
	}
	if s, err = s.AddOutputs(outputs...); err != nil {
		return nil, err
	}
	if s, err = s.AddOutput(&types.Cell{Capacity: change, Lock: b.change}); err != nil {
		return nil, err
	}
	return AssignPlaceholders(s, b.registry)
}

func (b *UnsignedCapacityTxBuilder) Build(ctx context.Context) (*TransactionSkeleton, error) {
	if len(b.sources) == 0 || b.change == nil {
		return nil, fmt.Errorf("%w: sources and change lock are required", types.ErrPreconditionViolated)
	}
	outputs, err := b.BuildOutputs()
	if err != nil {
		return nil, err
	}

	target := types.SumCapacity(outputs)
	target.Add(target, (&types.Cell{Lock: b.change}).OccupiedCapacity())

	reserve := big.NewInt(0)
	for attempt := 0; attempt < feeAttempts; attempt++ {
		inputs, err := b.BuildInputs(ctx, new(big.Int).Add(target, reserve))
		if err != nil {
			return nil, err
		}
		s, fee, err := b.HandleTxFee(inputs, outputs, reserve)
		if err != nil {
			return nil, err
		}
		if s == nil {
			reserve = fee
			continue
		}
		if err := Validate(s, b.maxFee); err != nil {
			return nil, err
		}
		log.Infof("Built transaction with %d inputs, %d outputs and fee %s CKB",
			len(s.inputs), len(s.outputs), types.FormatCapacity(fee))
		return s, nil
	}
	return nil, errors.New("transaction fee did not settle")
}
