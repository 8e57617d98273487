// Package signer turns the signing entries of a transaction skeleton into
// signatures and seals them into a broadcastable transaction.
package signer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nervosnetwork/ckb-sdk-go/crypto/blake2b"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/builder"
	"github.com/shaojunda/ckb-tx-sdk/lock"
)

// Key is a secp256k1 private key. *secp256k1.Secp256k1Key from ckb-sdk-go
// implements it.
type Key interface {
	// Sign returns a 65 byte recoverable signature over a 32 byte message.
	Sign(message []byte) ([]byte, error)
	// PubKey returns the compressed public key.
	PubKey() []byte
}

// Sign signs the message of one signing entry.
func Sign(entry builder.SigningEntry, key Key) ([]byte, error) {
	sig, err := key.Sign(entry.Message)
	if err != nil {
		return nil, err
	}
	if len(sig) != lock.SignatureSize {
		return nil, fmt.Errorf("signature has %d bytes, want %d", len(sig), lock.SignatureSize)
	}
	return sig, nil
}

// Keyring holds the keys able to unlock each lock group, keyed by lock
// script hash.
type Keyring struct {
	mu   sync.RWMutex
	keys map[ckbTypes.Hash][]Key
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[ckbTypes.Hash][]Key)}
}

// Add registers keys for lockScript. Multisig locks may be given several
// keys in any order.
func (k *Keyring) Add(lockScript *ckbTypes.Script, keys ...Key) error {
	lockHash, err := lockScript.Hash()
	if err != nil {
		return err
	}
	k.mu.Lock()
	k.keys[lockHash] = append(k.keys[lockHash], keys...)
	k.mu.Unlock()
	return nil
}

// SignAll produces one entry in the shape Seal expects for every signing
// entry of s: a single signature, or for a multisig group the threshold
// signatures concatenated in descriptor order.
func (k *Keyring) SignAll(s *builder.TransactionSkeleton, registry *lock.Registry) ([][]byte, error) {
	entries := s.SigningEntries()
	inputs := s.Inputs()

	k.mu.RLock()
	defer k.mu.RUnlock()

	signatures := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		keys := k.keys[entry.LockHash]
		if len(keys) == 0 {
			return nil, fmt.Errorf("no key for lock %s at input %d", entry.LockHash, entry.Index)
		}

		lockScript := inputs[entry.Index].Lock
		if registry.Kind(lockScript) != lock.KindMultisig {
			sig, err := Sign(entry, keys[0])
			if err != nil {
				return nil, err
			}
			signatures = append(signatures, sig)
			continue
		}

		m, ok := registry.Multisig(lockScript)
		if !ok {
			return nil, fmt.Errorf("multisig lock %s is not registered", entry.LockHash)
		}
		blob, err := signMultisig(m, entry, keys)
		if err != nil {
			return nil, err
		}
		signatures = append(signatures, blob)
	}
	log.Debugf("Signed %d entries", len(signatures))
	return signatures, nil
}

func signMultisig(m *lock.Multisig, entry builder.SigningEntry, keys []Key) ([]byte, error) {
	type signer struct {
		position int
		key      Key
	}
	var signers []signer
	for _, key := range keys {
		hash, err := blake2b.Blake160(key.PubKey())
		if err != nil {
			return nil, err
		}
		if i := m.IndexOf(hash); i >= 0 {
			signers = append(signers, signer{position: i, key: key})
		}
	}
	sort.Slice(signers, func(i, j int) bool {
		return signers[i].position < signers[j].position
	})
	if len(signers) < int(m.Threshold) {
		return nil, fmt.Errorf("have %d of %d keys needed for multisig lock %s", len(signers), m.Threshold, entry.LockHash)
	}

	var blob []byte
	for _, s := range signers[:m.Threshold] {
		sig, err := Sign(entry, s.key)
		if err != nil {
			return nil, err
		}
		blob = append(blob, sig...)
	}
	return blob, nil
}
