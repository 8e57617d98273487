package client

import (
	"bytes"
	"context"
	"math/big"
	"strconv"
	"sync"
	"testing"

	"github.com/nervosnetwork/ckb-sdk-go/indexer"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/config"
	"github.com/shaojunda/ckb-tx-sdk/types"
	"github.com/shaojunda/ckb-tx-sdk/utils"
	"github.com/stretchr/testify/require"
)

const usdt = "0x32e555f3ff8e135cece1351a6a2971518392c1e30375c1e006ad0ce8eac07947"

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	conf, err := config.Load("../config-example.yaml")
	require.NoError(t, err)
	return conf
}

type mockIndexer struct {
	mu    sync.Mutex
	cells []*indexer.LiveCell
	calls int
}

func (m *mockIndexer) GetCells(_ context.Context, searchKey *indexer.SearchKey, _ indexer.SearchOrder, limit uint64, afterCursor string) (*indexer.LiveCells, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

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

func ownerLock(conf *config.Config, b byte) *ckbTypes.Script {
	return conf.Secp256k1.NewScript(bytes.Repeat([]byte{b}, 20))
}

func addressOf(t *testing.T, script *ckbTypes.Script, conf *config.Config) string {
	t.Helper()
	addr, err := utils.ScriptToAddress(script, conf)
	require.NoError(t, err)
	return addr
}

func plainCell(lock *ckbTypes.Script, capacity uint64) *indexer.LiveCell {
	return &indexer.LiveCell{
		OutPoint: &ckbTypes.OutPoint{TxHash: ckbTypes.HexToHash("0xe4b5f3ab675ceded127f8e82802f79254f776cb40879b9b412dc1102ddab2e76")},
		Output:   &ckbTypes.CellOutput{Capacity: capacity, Lock: lock},
	}
}

func udtCell(conf *config.Config, lock *ckbTypes.Script, token string, amount int64) *indexer.LiveCell {
	cell := plainCell(lock, types.UdtCapacity)
	cell.Output.Type = config.LockConfig{Script: conf.UDT.Script}.NewScript(ckbTypes.HexToHash(token).Bytes())
	cell.OutputData, _ = types.UdtAmountBytes(big.NewInt(amount))
	return cell
}

func TestBalanceForAddress(t *testing.T) {
	conf := loadConfig(t)
	conf.Collector.PageSize = 2
	alice, bob := ownerLock(conf, 1), ownerLock(conf, 2)

	m := &mockIndexer{cells: []*indexer.LiveCell{
		plainCell(alice, 100),
		plainCell(bob, 1000),
		plainCell(alice, 200),
		udtCell(conf, alice, usdt, 5),
		plainCell(alice, 300),
	}}

	balance, err := BalanceForAddress(context.Background(), addressOf(t, alice, conf), m, conf)
	require.NoError(t, err)
	require.Equal(t, "600", balance.Balance)
	require.Equal(t, "0.000006", balance.Capacity)
	require.Empty(t, balance.TokenCode)
}

func TestBalancesForAddress(t *testing.T) {
	conf := loadConfig(t)
	alice := ownerLock(conf, 1)
	unknown := "0x1111111111111111111111111111111111111111111111111111111111111111"

	m := &mockIndexer{cells: []*indexer.LiveCell{
		plainCell(alice, 100),
		udtCell(conf, alice, usdt, 5),
		udtCell(conf, alice, usdt, 7),
		udtCell(conf, alice, unknown, 9),
	}}

	balances, err := BalancesForAddress(context.Background(), addressOf(t, alice, conf), m, conf)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	require.Equal(t, "100", balances[0].Balance)
	require.Equal(t, "USDT", balances[1].TokenCode)
	require.Equal(t, usdt, balances[1].TokenIdentifier)
	require.Equal(t, 6, balances[1].TokenDecimal)
	require.Equal(t, "12", balances[1].Balance)
}

func TestBalancesForAddresses(t *testing.T) {
	conf := loadConfig(t)
	var cells []*indexer.LiveCell
	var addrs []string
	for i := byte(1); i <= 6; i++ {
		lock := ownerLock(conf, i)
		cells = append(cells, plainCell(lock, uint64(i)*10))
		addrs = append(addrs, addressOf(t, lock, conf))
	}
	m := &mockIndexer{cells: cells}

	balances, err := BalancesForAddresses(context.Background(), addrs, m, conf)
	require.NoError(t, err)
	require.Len(t, balances, len(addrs))
	for i, addr := range addrs {
		require.Equal(t, strconv.Itoa((i+1)*10), balances[addr].Balance)
	}

	mainnet := config.Default(config.Mainnet)
	foreign := addressOf(t, ownerLock(mainnet, 9), mainnet)
	_, err = BalancesForAddresses(context.Background(), append(addrs, foreign), m, conf)
	require.ErrorIs(t, err, types.ErrNetworkMismatch)
}

func TestGetTransaction(t *testing.T) {
	conf := loadConfig(t)
	alice, bob := ownerLock(conf, 1), ownerLock(conf, 2)

	funding := &ckbTypes.Transaction{
		Outputs:     []*ckbTypes.CellOutput{{Capacity: 500, Lock: bob}, {Capacity: 1000, Lock: alice}},
		OutputsData: [][]byte{{}, {}},
	}
	fundingHash := ckbTypes.HexToHash("0x5e3bcd5a3c082c9eb1559930417710a39c5249b31090d88de2a2855149d0d981")
	spendingHash := ckbTypes.HexToHash("0x234f27f222d3f146a58263bd17c18dd5b852ea8bb3735aa36edfd3980dcc5dff")
	spending := &ckbTypes.Transaction{
		CellDeps:    conf.Secp256k1.CellDeps(),
		Inputs:      []*ckbTypes.CellInput{{PreviousOutput: &ckbTypes.OutPoint{TxHash: fundingHash, Index: 1}}},
		Outputs:     []*ckbTypes.CellOutput{{Capacity: 900, Lock: bob}},
		OutputsData: [][]byte{{}},
		Witnesses:   [][]byte{{1, 2}},
	}
	node := &fakeNode{txs: map[ckbTypes.Hash]*ckbTypes.Transaction{
		fundingHash:  funding,
		spendingHash: spending,
	}}

	dict, err := GetTransaction(context.Background(), node, spendingHash, conf)
	require.NoError(t, err)
	require.Equal(t, spendingHash.String(), dict.TxHash)
	require.Equal(t, "100", dict.Fee)
	require.Len(t, dict.Inputs, 1)
	require.Equal(t, addressOf(t, alice, conf), dict.Inputs[0].Address)
	require.Equal(t, "1000", dict.Inputs[0].Value)
	require.Len(t, dict.Outputs, 1)
	require.Equal(t, addressOf(t, bob, conf), dict.Outputs[0].Address)
	require.Equal(t, []string{"0x0102"}, dict.Witnesses)

	_, err = GetTransaction(context.Background(), node, ckbTypes.HexToHash("0x01"), conf)
	require.ErrorIs(t, err, types.ErrTransactionNotFound)
}

func TestBalancesForAddressTokenOrder(t *testing.T) {
	conf := loadConfig(t)
	alice := ownerLock(conf, 1)
	for _, key := range []string{
		"0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		"0x0000000000000000000000000000000000000000000000000000000000000001",
		"0x8888888888888888888888888888888888888888888888888888888888888888",
	} {
		token := conf.UDT.Tokens[usdt]
		token.Symbol = key[len(key)-2:]
		conf.UDT.Tokens[key] = token
	}
	m := &mockIndexer{cells: []*indexer.LiveCell{plainCell(alice, 100)}}

	for i := 0; i < 5; i++ {
		balances, err := BalancesForAddress(context.Background(), addressOf(t, alice, conf), m, conf)
		require.NoError(t, err)
		var identifiers []string
		for _, b := range balances[1:] {
			identifiers = append(identifiers, b.TokenIdentifier)
		}
		require.Equal(t, []string{
			"0x0000000000000000000000000000000000000000000000000000000000000001",
			usdt,
			"0x8888888888888888888888888888888888888888888888888888888888888888",
			"0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		}, identifiers)
	}
}

func TestGetTransactionMalformedOutputsData(t *testing.T) {
	conf := loadConfig(t)
	alice, bob := ownerLock(conf, 1), ownerLock(conf, 2)
	fundingHash := ckbTypes.HexToHash("0x5e3bcd5a3c082c9eb1559930417710a39c5249b31090d88de2a2855149d0d981")
	spendingHash := ckbTypes.HexToHash("0x234f27f222d3f146a58263bd17c18dd5b852ea8bb3735aa36edfd3980dcc5dff")
	spending := &ckbTypes.Transaction{
		Inputs:      []*ckbTypes.CellInput{{PreviousOutput: &ckbTypes.OutPoint{TxHash: fundingHash, Index: 0}}},
		Outputs:     []*ckbTypes.CellOutput{{Capacity: 900, Lock: bob}},
		OutputsData: [][]byte{{}},
	}

	// The funding transaction lists an output without its data.
	node := &fakeNode{txs: map[ckbTypes.Hash]*ckbTypes.Transaction{
		fundingHash:  {Outputs: []*ckbTypes.CellOutput{{Capacity: 1000, Lock: alice}}},
		spendingHash: spending,
	}}
	_, err := GetTransaction(context.Background(), node, spendingHash, conf)
	require.ErrorIs(t, err, types.ErrTransactionNotFound)

	// The described transaction itself lacks outputs data.
	node.txs[fundingHash] = &ckbTypes.Transaction{
		Outputs:     []*ckbTypes.CellOutput{{Capacity: 1000, Lock: alice}},
		OutputsData: [][]byte{{}},
	}
	spending.OutputsData = nil
	_, err = GetTransaction(context.Background(), node, spendingHash, conf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 outputs and 0 outputs data")
}
