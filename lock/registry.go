// Package lock knows the witness layout of the lock scripts this SDK can
// sign for. Placeholder sizing and multisig descriptors are looked up here
// by the builder and the signer.
package lock

import (
	"fmt"
	"sync"

	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/config"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindSecp256k1
	KindMultisig
	KindAcp
)

func (k Kind) String() string {
	switch k {
	case KindSecp256k1:
		return "secp256k1_blake160"
	case KindMultisig:
		return "secp256k1_blake160_multisig"
	case KindAcp:
		return "anyone_can_pay"
	}
	return "unknown"
}

// Registry classifies lock scripts using the code hashes in a config and
// the multisig descriptors registered with it. It is safe for concurrent use.
type Registry struct {
	cfg *config.Config

	mu        sync.RWMutex
	multisigs map[[PubKeyHashSize]byte]*Multisig
}

func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		cfg:       cfg,
		multisigs: make(map[[PubKeyHashSize]byte]*Multisig),
	}
}

// RegisterMultisig makes the descriptor available for placeholder sizing
// and seal-time checks. It returns the lock script for the descriptor.
func (r *Registry) RegisterMultisig(m *Multisig) (*ckbTypes.Script, error) {
	args, err := m.Args()
	if err != nil {
		return nil, err
	}
	var key [PubKeyHashSize]byte
	copy(key[:], args)

	r.mu.Lock()
	r.multisigs[key] = m
	r.mu.Unlock()

	return r.cfg.Multisig.NewScript(args), nil
}

func (r *Registry) Kind(lock *ckbTypes.Script) Kind {
	switch {
	case r.cfg.Secp256k1.Matches(lock):
		return KindSecp256k1
	case r.cfg.Multisig.Matches(lock):
		return KindMultisig
	case r.cfg.ACP.Matches(lock):
		return KindAcp
	}
	return KindUnknown
}

// Multisig returns the registered descriptor behind a multisig lock. Args
// may carry a trailing since value; only the leading hash is used.
func (r *Registry) Multisig(lock *ckbTypes.Script) (*Multisig, bool) {
	if r.Kind(lock) != KindMultisig || len(lock.Args) < PubKeyHashSize {
		return nil, false
	}
	var key [PubKeyHashSize]byte
	copy(key[:], lock.Args[:PubKeyHashSize])

	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.multisigs[key]
	return m, ok
}

// Placeholder returns the zero-filled witness lock for a lock group. ok is
// false for locks with no known signature layout.
func (r *Registry) Placeholder(lock *ckbTypes.Script) ([]byte, bool) {
	switch r.Kind(lock) {
	case KindSecp256k1, KindAcp:
		return make([]byte, SignatureSize), true
	case KindMultisig:
		m, ok := r.Multisig(lock)
		if !ok {
			return nil, false
		}
		return m.Placeholder(), true
	}
	return nil, false
}

// CellDeps returns the configured deps for the given lock kinds, each once
// and in the order given.
func (r *Registry) CellDeps(kinds ...Kind) ([]*ckbTypes.CellDep, error) {
	seen := make(map[Kind]bool)
	var deps []*ckbTypes.CellDep
	for _, k := range kinds {
		if seen[k] {
			continue
		}
		seen[k] = true

		var lc config.LockConfig
		switch k {
		case KindSecp256k1:
			lc = r.cfg.Secp256k1
		case KindMultisig:
			lc = r.cfg.Multisig
		case KindAcp:
			lc = r.cfg.ACP
		default:
			return nil, fmt.Errorf("no cell deps configured for %v lock", k)
		}
		if len(lc.Deps) == 0 {
			return nil, fmt.Errorf("no cell deps configured for %v lock", k)
		}
		deps = append(deps, lc.CellDeps()...)
	}
	return deps, nil
}

// Config returns the config the registry resolves scripts against.
func (r *Registry) Config() *config.Config {
	return r.cfg
}
