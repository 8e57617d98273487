package builder

import (
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/nervosnetwork/ckb-sdk-go/crypto/blake2b"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// GenerateSigningEntries computes one signing message per lock group, in
// order of each group's first input. The message is
//
//	blake2b(tx_hash | len(w_i) | w_i | len(w_j) | w_j ... | trailing witnesses)
//
// where i is the group's first input, each j is a later input of the same
// group and lengths are little endian u64.
func GenerateSigningEntries(s *TransactionSkeleton) (*TransactionSkeleton, error) {
	if err := s.requireBefore(StageEntriesGenerated, "generate signing entries"); err != nil {
		return nil, err
	}

	txHash, err := s.TxHash()
	if err != nil {
		return nil, err
	}

	lockHashes := make([]ckbTypes.Hash, len(s.inputs))
	for i, input := range s.inputs {
		if lockHashes[i], err = input.Lock.Hash(); err != nil {
			return nil, err
		}
	}

	next := s.clone()
	anchored := make(map[ckbTypes.Hash]bool)
	for i, lockHash := range lockHashes {
		if anchored[lockHash] {
			continue
		}
		anchored[lockHash] = true
		if i >= len(s.witnesses) {
			return nil, fmt.Errorf("%w: no witness for input %d", types.ErrMalformedWitnessSet, i)
		}

		h, err := blake2b.New()
		if err != nil {
			return nil, err
		}
		h.Write(txHash.Bytes())
		writeWitness(h, s.witnesses[i])
		for j := i + 1; j < len(lockHashes); j++ {
			if lockHashes[j] != lockHash {
				continue
			}
			if j >= len(s.witnesses) {
				return nil, fmt.Errorf("%w: no witness for input %d", types.ErrMalformedWitnessSet, j)
			}
			writeWitness(h, s.witnesses[j])
		}
		for j := len(lockHashes); j < len(s.witnesses); j++ {
			writeWitness(h, s.witnesses[j])
		}

		next.signingEntries = append(next.signingEntries, SigningEntry{
			Index:    i,
			LockHash: lockHash,
			Message:  h.Sum(nil),
		})
	}
	next.stage = StageEntriesGenerated
	log.Debugf("Generated %d signing entries for tx %s", len(next.signingEntries), txHash)
	return next, nil
}

func writeWitness(h hash.Hash, witness []byte) {
	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], uint64(len(witness)))
	h.Write(length[:])
	h.Write(witness)
}
