package builder

import (
	"fmt"
	"math/big"

	"github.com/nervosnetwork/ckb-sdk-go/transaction"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// Fee returns inputs minus outputs. It is negative when outputs spend more
// than the inputs hold.
func Fee(s *TransactionSkeleton) *big.Int {
	return new(big.Int).Sub(types.SumCapacity(s.inputs), types.SumCapacity(s.outputs))
}

// CheckFee enforces capacity conservation and bounds the fee by maxFee. A
// nil maxFee means types.MaxFee.
func CheckFee(s *TransactionSkeleton, maxFee *big.Int) error {
	if maxFee == nil {
		maxFee = new(big.Int).SetUint64(types.MaxFee)
	}
	fee := Fee(s)
	if fee.Sign() < 0 {
		return fmt.Errorf("%w: short by %s shannons", types.ErrCapacityNotConserved, new(big.Int).Neg(fee))
	}
	if fee.Cmp(maxFee) > 0 {
		return fmt.Errorf("%w: fee %s exceeds %s shannons", types.ErrFeeTooHigh, fee, maxFee)
	}
	return nil
}

// Validate runs CheckFee and requires every output to hold at least its
// occupied capacity.
func Validate(s *TransactionSkeleton, maxFee *big.Int) error {
	if err := CheckFee(s, maxFee); err != nil {
		return err
	}
	for i, out := range s.outputs {
		occupied := out.OccupiedCapacity()
		if out.Capacity.Cmp(occupied) < 0 {
			return fmt.Errorf("%w: output %d holds %s CKB, needs %s CKB", types.ErrInsufficientOccupiedCapacity,
				i, types.FormatCapacity(out.Capacity), types.FormatCapacity(occupied))
		}
	}
	return nil
}

// EstimateFee prices the serialized transaction at feeRate shannons per
// kilobyte. Witnesses should already be placeheld so the size matches the
// signed transaction.
func EstimateFee(s *TransactionSkeleton, feeRate uint64) (*big.Int, error) {
	tx, err := s.RawTransaction()
	if err != nil {
		return nil, err
	}
	fee, err := transaction.CalculateTransactionFee(tx, feeRate)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(fee), nil
}
