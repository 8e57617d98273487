package signer

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nervosnetwork/ckb-sdk-go/crypto/blake2b"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/builder"
	"github.com/shaojunda/ckb-tx-sdk/lock"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// Sealer writes signatures into the witnesses of a skeleton.
type Sealer struct {
	Registry *lock.Registry
	// MaxFee bounds the fee of a sealed transaction. Nil means types.MaxFee.
	MaxFee *big.Int
}

// NewSealer bounds fees by the registry config's fee.max.
func NewSealer(registry *lock.Registry) *Sealer {
	s := &Sealer{Registry: registry}
	if limit := registry.Config().Fee.Max; limit > 0 {
		s.MaxFee = new(big.Int).SetUint64(limit)
	}
	return s
}

// Seal takes one signature per signing entry, in entry order, and returns
// the finished transaction. For a multisig group the signature is the
// threshold signatures concatenated in descriptor order; the descriptor is
// prepended here. Only anchor witnesses change, and only their lock field.
// A skeleton failing builder.Validate against MaxFee is not sealed.
func (s *Sealer) Seal(skeleton *builder.TransactionSkeleton, signatures [][]byte) (*ckbTypes.Transaction, error) {
	if skeleton.Stage() != builder.StageEntriesGenerated {
		return nil, fmt.Errorf("%w: cannot seal a skeleton at stage %v", types.ErrPreconditionViolated, skeleton.Stage())
	}
	entries := skeleton.SigningEntries()
	if len(signatures) != len(entries) {
		return nil, fmt.Errorf("%w: %d signing entries, %d signatures", types.ErrSignatureCountMismatch, len(entries), len(signatures))
	}
	if err := builder.Validate(skeleton, s.MaxFee); err != nil {
		return nil, err
	}

	inputs := skeleton.Inputs()
	witnesses := skeleton.Witnesses()
	for i, entry := range entries {
		args, err := builder.DecodeWitnessArgs(witnesses[entry.Index])
		if err != nil {
			return nil, fmt.Errorf("%w: witness %d: %v", types.ErrMalformedWitnessSet, entry.Index, err)
		}

		lockField, err := s.lockField(inputs[entry.Index].Lock, entry, signatures[i])
		if err != nil {
			return nil, err
		}
		if len(args.Lock) != 0 && len(lockField) != len(args.Lock) {
			return nil, fmt.Errorf("witness lock for input %d has %d bytes, placeholder has %d",
				entry.Index, len(lockField), len(args.Lock))
		}

		args.Lock = lockField
		if witnesses[entry.Index], err = args.Serialize(); err != nil {
			return nil, err
		}
	}

	tx, err := skeleton.RawTransaction()
	if err != nil {
		return nil, err
	}
	tx.Witnesses = witnesses
	if tx.Hash, err = tx.ComputeHash(); err != nil {
		return nil, err
	}
	log.Debugf("Sealed tx %s with %d signatures", tx.Hash, len(signatures))
	return tx, nil
}

func (s *Sealer) lockField(lockScript *ckbTypes.Script, entry builder.SigningEntry, signature []byte) ([]byte, error) {
	if s.Registry.Kind(lockScript) != lock.KindMultisig {
		return append([]byte{}, signature...), nil
	}

	m, ok := s.Registry.Multisig(lockScript)
	if !ok {
		return nil, fmt.Errorf("multisig lock %s is not registered", entry.LockHash)
	}
	want := int(m.Threshold) * lock.SignatureSize
	if len(signature) != want {
		return nil, fmt.Errorf("%w: multisig lock %s needs %d signatures, got %d bytes",
			types.ErrSignatureCountMismatch, entry.LockHash, m.Threshold, len(signature))
	}

	sigs := make([][]byte, 0, m.Threshold)
	for off := 0; off < len(signature); off += lock.SignatureSize {
		sigs = append(sigs, signature[off:off+lock.SignatureSize])
	}
	if err := CheckMultisigOrder(m, entry.Message, sigs); err != nil {
		return nil, err
	}
	return m.Witness(sigs...)
}

// CheckMultisigOrder recovers the signer of every signature and requires
// them to be distinct members of m, in descriptor order, with the first
// RequireFirstN members all present.
func CheckMultisigOrder(m *lock.Multisig, message []byte, sigs [][]byte) error {
	last := -1
	for i, sig := range sigs {
		pub, err := crypto.SigToPub(message, sig)
		if err != nil {
			return fmt.Errorf("%w: signature %d: %v", types.ErrSignatureOrder, i, err)
		}
		hash, err := blake2b.Blake160(crypto.CompressPubkey(pub))
		if err != nil {
			return err
		}
		position := m.IndexOf(hash)
		switch {
		case position < 0:
			return fmt.Errorf("%w: signature %d is not from a member key", types.ErrSignatureOrder, i)
		case position <= last:
			return fmt.Errorf("%w: signature %d is from key %d after key %d", types.ErrSignatureOrder, i, position, last)
		case i < int(m.RequireFirstN) && position != i:
			return fmt.Errorf("%w: key %d must sign", types.ErrSignatureOrder, i)
		}
		last = position
	}
	return nil
}
