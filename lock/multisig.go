package lock

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/nervosnetwork/ckb-sdk-go/crypto/blake2b"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
)

const (
	// SignatureSize is the length of a recoverable secp256k1 signature.
	SignatureSize = 65
	// PubKeyHashSize is the length of a blake160 public key hash.
	PubKeyHashSize = 20

	multisigHeaderSize = 4
)

// Multisig describes a secp256k1 multisig lock: which public key hashes may
// sign, how many signatures are needed, and how many of the leading keys
// must always sign. The order of PubKeyHashes is the order signatures must
// be supplied in.
type Multisig struct {
	RequireFirstN uint8
	Threshold     uint8
	PubKeyHashes  [][PubKeyHashSize]byte
}

// NewMultisig validates and builds a descriptor.
func NewMultisig(requireFirstN, threshold uint8, pubKeyHashes [][]byte) (*Multisig, error) {
	n := len(pubKeyHashes)
	if n == 0 || n > 255 {
		return nil, fmt.Errorf("multisig needs 1..255 public key hashes, got %d", n)
	}
	if threshold == 0 || int(threshold) > n {
		return nil, fmt.Errorf("threshold %d out of range for %d keys", threshold, n)
	}
	if requireFirstN > threshold {
		return nil, fmt.Errorf("requireFirstN %d exceeds threshold %d", requireFirstN, threshold)
	}

	m := &Multisig{
		RequireFirstN: requireFirstN,
		Threshold:     threshold,
		PubKeyHashes:  make([][PubKeyHashSize]byte, n),
	}
	for i, h := range pubKeyHashes {
		if len(h) != PubKeyHashSize {
			return nil, fmt.Errorf("public key hash %d has %d bytes", i, len(h))
		}
		copy(m.PubKeyHashes[i][:], h)
	}
	return m, nil
}

// Serialize encodes the descriptor as reserved | require_first_n |
// threshold | pubkey count | blake160 hashes.
func (m *Multisig) Serialize() []byte {
	b := make([]byte, 0, multisigHeaderSize+len(m.PubKeyHashes)*PubKeyHashSize)
	b = append(b, 0, m.RequireFirstN, m.Threshold, byte(len(m.PubKeyHashes)))
	for _, h := range m.PubKeyHashes {
		b = append(b, h[:]...)
	}
	return b
}

// Args returns the lock args committing to this descriptor.
func (m *Multisig) Args() ([]byte, error) {
	return blake2b.Blake160(m.Serialize())
}

// Placeholder is the zero-signature lock field used while computing the
// signing message. It has exactly the size of the final witness lock.
func (m *Multisig) Placeholder() []byte {
	descriptor := m.Serialize()
	return append(descriptor, make([]byte, int(m.Threshold)*SignatureSize)...)
}

// Witness joins the descriptor with signatures, which must already be in
// descriptor order.
func (m *Multisig) Witness(signatures ...[]byte) ([]byte, error) {
	b := m.Serialize()
	for i, sig := range signatures {
		if len(sig) != SignatureSize {
			return nil, fmt.Errorf("signature %d has %d bytes", i, len(sig))
		}
		b = append(b, sig...)
	}
	return b, nil
}

// SplitWitness checks that lock starts with this descriptor and returns the
// signatures that follow it.
func (m *Multisig) SplitWitness(lock []byte) ([][]byte, error) {
	descriptor := m.Serialize()
	if !bytes.HasPrefix(lock, descriptor) {
		return nil, errors.New("witness does not start with the multisig descriptor")
	}
	rest := lock[len(descriptor):]
	if len(rest)%SignatureSize != 0 {
		return nil, fmt.Errorf("trailing %d bytes are not whole signatures", len(rest))
	}
	sigs := make([][]byte, 0, len(rest)/SignatureSize)
	for len(rest) > 0 {
		sigs = append(sigs, rest[:SignatureSize])
		rest = rest[SignatureSize:]
	}
	return sigs, nil
}

// IndexOf returns the position of a public key hash in the descriptor, or -1.
func (m *Multisig) IndexOf(pubKeyHash []byte) int {
	for i, h := range m.PubKeyHashes {
		if bytes.Equal(h[:], pubKeyHash) {
			return i
		}
	}
	return -1
}

// Script returns the lock script for this descriptor under registry's
// multisig code.
func (m *Multisig) Script(r *Registry) (*ckbTypes.Script, error) {
	args, err := m.Args()
	if err != nil {
		return nil, err
	}
	return r.cfg.Multisig.NewScript(args), nil
}
