package builder

import (
	"context"
	"math/big"

	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// UnsignedTxBuilder assembles a skeleton that is placeheld, validated and
// ready for GenerateSigningEntries.
type UnsignedTxBuilder interface {
	BuildCellDeps(inputs []*types.Cell) ([]*ckbTypes.CellDep, error)
	BuildInputs(ctx context.Context, required *big.Int) ([]*types.Cell, error)
	BuildOutputs() ([]*types.Cell, error)
	HandleTxFee(inputs, outputs []*types.Cell, reserve *big.Int) (*TransactionSkeleton, *big.Int, error)
	Build(ctx context.Context) (*TransactionSkeleton, error)
}
