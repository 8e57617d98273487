package builder

import (
	"encoding/binary"
	"errors"
	"fmt"

	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/lock"
	"github.com/shaojunda/ckb-tx-sdk/types"
)

// PlaceholderSource sizes the zero-filled witness lock for a lock group.
// *lock.Registry implements it.
type PlaceholderSource interface {
	Placeholder(lock *ckbTypes.Script) ([]byte, bool)
}

var _ PlaceholderSource = (*lock.Registry)(nil)

// AssignPlaceholders gives the first input of every lock group a witness
// whose lock field is zero-filled to the size of its final signature, and
// every other input an empty WitnessArgs. It only runs on a skeleton with
// no witnesses.
func AssignPlaceholders(s *TransactionSkeleton, source PlaceholderSource) (*TransactionSkeleton, error) {
	if len(s.witnesses) != 0 || s.stage >= StageWitnessesPlaceheld {
		return nil, fmt.Errorf("%w: placeholders can only be assigned to an empty witness list", types.ErrPreconditionViolated)
	}

	next := s.clone()
	seen := make(map[ckbTypes.Hash]bool)
	for i, input := range s.inputs {
		lockHash, err := input.Lock.Hash()
		if err != nil {
			return nil, err
		}

		var placeholder []byte
		if !seen[lockHash] {
			seen[lockHash] = true
			p, ok := source.Placeholder(input.Lock)
			if ok {
				placeholder = p
			} else {
				log.Warnf("No placeholder layout for lock %s of input %d, leaving it empty", lockHash, i)
			}
		}

		witness, err := (&ckbTypes.WitnessArgs{Lock: placeholder}).Serialize()
		if err != nil {
			return nil, err
		}
		next.witnesses = append(next.witnesses, witness)
	}
	next.stage = StageWitnessesPlaceheld
	log.Debugf("Assigned %d witnesses for %d lock groups", len(next.witnesses), len(seen))
	return next, nil
}

// DecodeWitnessArgs parses a serialized WitnessArgs table. Absent fields
// come back nil.
func DecodeWitnessArgs(b []byte) (*ckbTypes.WitnessArgs, error) {
	const fieldCount = 3
	header := 4 * (1 + fieldCount)
	if len(b) < header {
		return nil, errors.New("witness args too short")
	}
	total := binary.LittleEndian.Uint32(b[0:4])
	if int(total) != len(b) {
		return nil, fmt.Errorf("witness args size %d does not match length %d", total, len(b))
	}
	offsets := make([]uint32, fieldCount+1)
	for i := 0; i < fieldCount; i++ {
		offsets[i] = binary.LittleEndian.Uint32(b[4*(i+1):])
	}
	offsets[fieldCount] = total
	if offsets[0] != uint32(header) {
		return nil, fmt.Errorf("witness args has %d fields", offsets[0]/4-1)
	}

	fields := make([][]byte, fieldCount)
	for i := 0; i < fieldCount; i++ {
		start, end := offsets[i], offsets[i+1]
		if start > end || end > total {
			return nil, errors.New("witness args offsets out of order")
		}
		field := b[start:end]
		if len(field) == 0 {
			continue
		}
		if len(field) < 4 || binary.LittleEndian.Uint32(field) != uint32(len(field)-4) {
			return nil, fmt.Errorf("witness args field %d is not a byte vector", i)
		}
		fields[i] = append([]byte{}, field[4:]...)
	}
	return &ckbTypes.WitnessArgs{
		Lock:       fields[0],
		InputType:  fields[1],
		OutputType: fields[2],
	}, nil
}
