package tx

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shaojunda/ckb-tx-sdk/builder"
	"github.com/shaojunda/ckb-tx-sdk/config"
	"github.com/shaojunda/ckb-tx-sdk/types"
	"github.com/shaojunda/ckb-tx-sdk/utils"
)

// Dict dict
type Dict struct {
	// TxHash is the hash of the transaction body.
	TxHash string `json:"tx_hash,omitempty"`
	// Deps lists cell deps as "tx_hash-index (dep_type)".
	Deps []string `json:"deps,omitempty"`
	// Inputs is a list of accounts that sent money.
	Inputs []Input `json:"inputs"`
	// Outputs is a list of accounts that received money.
	Outputs []Output `json:"outputs"`
	// Witnesses are hex encoded.
	Witnesses []string `json:"witnesses,omitempty"`
	// Fee is inputs minus outputs in shannons.
	Fee string `json:"fee,omitempty"`
	// Extra can contain optional information.
	Extra interface{} `json:"extra,omitempty"`
	// TxAt refers to the time at which the transaction entered a tx pool.
	TxAt time.Time `json:"tx_at,omitempty"`

	BlockNo uint64 `json:"block_no,omitempty"`
}

// Input represents an input in a TxDict
type Input struct {
	// a human readable string representing a uint64, or a token amount
	Value string `json:"value"`
	// Capacity is Value in CKBytes, set for capacity entries only.
	Capacity string `json:"capacity,omitempty"`
	// Address is a human-readable account address
	Address         string `json:"address"`
	LockHash        string `json:"lock_hash,omitempty"`
	TypeHash        string `json:"type_hash,omitempty"`
	OutPoint        string `json:"out_point,omitempty"`
	TokenCode       string `json:"token_code,omitempty"`
	TokenIdentifier string `json:"token_identifier,omitempty"`
	TokenDecimal    int    `json:"token_decimal,omitempty"`
	// Sn is the index of the cell in the transaction.
	Sn int `json:"sn"`
}

// Output represents an output in a TxDict
type Output Input

// Describe summarises a skeleton for display: where capacity comes from and
// goes to, token amounts of known sUDT cells, witnesses and the fee.
func Describe(s *builder.TransactionSkeleton, cfg *config.Config) (*Dict, error) {
	result := &Dict{
		Fee: builder.Fee(s).String(),
	}
	hash, err := s.TxHash()
	if err != nil {
		return nil, err
	}
	result.TxHash = hash.String()

	for _, dep := range s.CellDeps() {
		result.Deps = append(result.Deps, fmt.Sprintf("%s-%d (%s)", dep.OutPoint.TxHash, dep.OutPoint.Index, dep.DepType))
	}

	for i, cell := range s.Inputs() {
		entries, err := describeCell(cell, i, cfg)
		if err != nil {
			return nil, err
		}
		result.Inputs = append(result.Inputs, entries...)
	}
	for i, cell := range s.Outputs() {
		entries, err := describeCell(cell, i, cfg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			result.Outputs = append(result.Outputs, Output(e))
		}
	}

	for _, w := range s.Witnesses() {
		result.Witnesses = append(result.Witnesses, "0x"+hex.EncodeToString(w))
	}
	return result, nil
}

func describeCell(cell *types.Cell, sn int, cfg *config.Config) ([]Input, error) {
	addr, err := utils.ScriptToAddress(cell.Lock, cfg)
	if err != nil {
		return nil, err
	}
	lockHash, err := cell.Lock.Hash()
	if err != nil {
		return nil, err
	}

	entry := Input{
		Value:    cell.Capacity.String(),
		Capacity: types.FormatCapacity(cell.Capacity),
		Address:  addr,
		LockHash: lockHash.String(),
		Sn:       sn,
	}
	if cell.OutPoint != nil {
		entry.OutPoint = fmt.Sprintf("%s-%d", cell.OutPoint.TxHash, cell.OutPoint.Index)
	}
	if cell.Type != nil {
		typeHash, err := cell.Type.Hash()
		if err != nil {
			return nil, err
		}
		entry.TypeHash = typeHash.String()
	}

	entries := []Input{entry}
	if token, ok := udtEntry(cell, addr, sn, cfg); ok {
		entries = append(entries, token)
	}
	return entries, nil
}

func udtEntry(cell *types.Cell, addr string, sn int, cfg *config.Config) (Input, bool) {
	udt := config.LockConfig{Script: cfg.UDT.Script}
	if !udt.Matches(cell.Type) {
		return Input{}, false
	}
	amount, err := types.ParseUdtAmount(cell.Data)
	if err != nil {
		return Input{}, false
	}

	uuid := "0x" + hex.EncodeToString(cell.Type.Args)
	token := Input{
		Value:           amount.String(),
		Address:         addr,
		Sn:              sn,
		TokenIdentifier: uuid,
	}
	if info, ok := cfg.UDT.Tokens[uuid]; ok {
		token.TokenCode = info.Symbol
		token.TokenDecimal = info.Decimal
	}
	return token, true
}
