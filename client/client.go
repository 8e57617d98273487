package client

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"

	"github.com/nervosnetwork/ckb-sdk-go/rpc"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/builder"
	"github.com/shaojunda/ckb-tx-sdk/collector"
	"github.com/shaojunda/ckb-tx-sdk/config"
	"github.com/shaojunda/ckb-tx-sdk/types"
	"github.com/shaojunda/ckb-tx-sdk/utils"
	"github.com/shaojunda/ckb-tx-sdk/utils/tx"
	"golang.org/x/sync/errgroup"
)

// balanceWorkers bounds concurrent indexer queries in BalancesForAddresses.
const balanceWorkers = 4

var cellbase = ckbTypes.Hash{}

// Balance is the amount an address holds of CKB or of one sUDT token. Token
// fields are empty for CKB, whose Balance is in shannons.
type Balance struct {
	TokenCode       string `json:"token_code,omitempty"`
	TokenIdentifier string `json:"token_identifier,omitempty"`
	TokenDecimal    int    `json:"token_decimal,omitempty"`
	Balance         string `json:"balance"`
	// Capacity is the CKB balance in CKBytes.
	Capacity string `json:"capacity,omitempty"`
}

func NewRpcClient(rpcURL, indexerURL string) (rpc.Client, error) {
	return rpc.DialWithIndexer(rpcURL, indexerURL)
}

// GetTransaction describes an on-chain transaction. Inputs are resolved
// through the transactions that created them; the cellbase input is skipped.
func GetTransaction(ctx context.Context, node Node, hash ckbTypes.Hash, config *config.Config) (*tx.Dict, error) {
	rawTx, err := node.GetTransaction(ctx, hash)
	if err != nil {
		return nil, err
	}
	if rawTx == nil || rawTx.Transaction == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrTransactionNotFound, hash)
	}

	s := builder.NewTransactionSkeleton()
	for _, dep := range rawTx.Transaction.CellDeps {
		if s, err = s.AddCellDep(dep); err != nil {
			return nil, err
		}
	}
	for _, input := range rawTx.Transaction.Inputs {
		if input.PreviousOutput.TxHash == cellbase {
			continue
		}
		previous, err := node.GetTransaction(ctx, input.PreviousOutput.TxHash)
		if err != nil {
			return nil, err
		}
		if previous == nil || previous.Transaction == nil || !hasOutput(previous.Transaction, input.PreviousOutput.Index) {
			return nil, fmt.Errorf("%w: input %s-%d", types.ErrTransactionNotFound, input.PreviousOutput.TxHash, input.PreviousOutput.Index)
		}
		index := input.PreviousOutput.Index
		cell := types.NewCellFromOutput(input.PreviousOutput, previous.Transaction.Outputs[index], previous.Transaction.OutputsData[index])
		if s, err = s.AddInput(cell); err != nil {
			return nil, err
		}
	}
	if len(rawTx.Transaction.OutputsData) != len(rawTx.Transaction.Outputs) {
		return nil, fmt.Errorf("transaction %s has %d outputs and %d outputs data",
			hash, len(rawTx.Transaction.Outputs), len(rawTx.Transaction.OutputsData))
	}
	for i, output := range rawTx.Transaction.Outputs {
		if s, err = s.AddOutput(types.NewCellFromOutput(nil, output, rawTx.Transaction.OutputsData[i])); err != nil {
			return nil, err
		}
	}
	for _, w := range rawTx.Transaction.Witnesses {
		if s, err = s.AddWitness(w); err != nil {
			return nil, err
		}
	}
	dict, err := tx.Describe(s, config)
	if err != nil {
		return nil, err
	}
	// Since values and the cellbase input are not kept in the skeleton.
	dict.TxHash = hash.String()
	return dict, nil
}

// BalanceForAddress sums the capacity of the plain CKB cells owned by addr.
func BalanceForAddress(ctx context.Context, addr string, source collector.CellIndexer, config *config.Config) (*Balance, error) {
	script, err := utils.AddressToScript(addr, config)
	if err != nil {
		return nil, err
	}

	balance := big.NewInt(0)
	it := collector.NewCellIterator(source, collector.CapacityQuery(script), config.Collector.PageSize)
	for it.Next(ctx) {
		balance.Add(balance, it.Cell().Capacity)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	return &Balance{
		Balance:  balance.String(),
		Capacity: types.FormatCapacity(balance),
	}, nil
}

// BalancesForAddress returns the CKB balance of addr followed by one entry
// per configured sUDT token.
func BalancesForAddress(ctx context.Context, addr string, source collector.CellIndexer, config *config.Config) ([]*Balance, error) {
	script, err := utils.AddressToScript(addr, config)
	if err != nil {
		return nil, err
	}

	ckb := big.NewInt(0)
	tokens := make(map[string]*big.Int)
	for key := range config.UDT.Tokens {
		tokens[key] = big.NewInt(0)
	}
	udt := configLock(config.UDT.Script)

	it := collector.NewCellIterator(source, collector.Query{Lock: script}, config.Collector.PageSize)
	for it.Next(ctx) {
		cell := it.Cell()
		if cell.Type == nil && len(cell.Data) == 0 {
			ckb.Add(ckb, cell.Capacity)
			continue
		}
		if !udt.Matches(cell.Type) {
			continue
		}
		uuid := "0x" + hex.EncodeToString(cell.Type.Args)
		total, ok := tokens[uuid]
		if !ok {
			continue
		}
		amount, err := types.ParseUdtAmount(cell.Data)
		if err != nil {
			log.Warnf("Skipping sUDT cell %s-%d: %v", cell.OutPoint.TxHash, cell.OutPoint.Index, err)
			continue
		}
		total.Add(total, amount)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(config.UDT.Tokens))
	for key := range config.UDT.Tokens {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := []*Balance{{Balance: ckb.String(), Capacity: types.FormatCapacity(ckb)}}
	for _, key := range keys {
		token := config.UDT.Tokens[key]
		result = append(result, &Balance{
			TokenCode:       token.Symbol,
			TokenIdentifier: key,
			TokenDecimal:    token.Decimal,
			Balance:         tokens[key].String(),
		})
	}
	return result, nil
}

// BalancesForAddresses queries the CKB balance of several addresses
// concurrently. The first failure cancels the rest.
func BalancesForAddresses(ctx context.Context, addrs []string, source collector.CellIndexer, config *config.Config) (map[string]*Balance, error) {
	balances := make([]*Balance, len(addrs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(balanceWorkers)
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			balance, err := BalanceForAddress(ctx, addr, source, config)
			if err != nil {
				return fmt.Errorf("%s: %w", addr, err)
			}
			balances[i] = balance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[string]*Balance, len(addrs))
	for i, addr := range addrs {
		result[addr] = balances[i]
	}
	return result, nil
}

func hasOutput(tx *ckbTypes.Transaction, index uint) bool {
	return int(index) < len(tx.Outputs) && int(index) < len(tx.OutputsData)
}

func configLock(script config.Script) config.LockConfig {
	return config.LockConfig{Script: script}
}
