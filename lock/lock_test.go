package lock

import (
	"bytes"
	"testing"

	"github.com/shaojunda/ckb-tx-sdk/config"
	"github.com/stretchr/testify/require"
)

func hashes(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = bytes.Repeat([]byte{byte(i + 1)}, PubKeyHashSize)
	}
	return out
}

func TestMultisigSerialize(t *testing.T) {
	m, err := NewMultisig(1, 2, hashes(3))
	require.NoError(t, err)

	b := m.Serialize()
	require.Len(t, b, 4+3*PubKeyHashSize)
	require.Equal(t, []byte{0, 1, 2, 3}, b[:4])
	require.Equal(t, hashes(3)[1], b[4+PubKeyHashSize:4+2*PubKeyHashSize])

	args, err := m.Args()
	require.NoError(t, err)
	require.Len(t, args, PubKeyHashSize)

	placeholder := m.Placeholder()
	require.Len(t, placeholder, len(b)+2*SignatureSize)
	require.Equal(t, b, placeholder[:len(b)])
	require.Equal(t, make([]byte, 2*SignatureSize), placeholder[len(b):])
}

func TestNewMultisigRejects(t *testing.T) {
	cases := []struct {
		Name          string
		RequireFirstN uint8
		Threshold     uint8
		Hashes        [][]byte
	}{
		{"no keys", 0, 1, nil},
		{"zero threshold", 0, 0, hashes(2)},
		{"threshold above keys", 0, 3, hashes(2)},
		{"first n above threshold", 2, 1, hashes(2)},
		{"short hash", 0, 1, [][]byte{{1, 2, 3}}},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			_, err := NewMultisig(c.RequireFirstN, c.Threshold, c.Hashes)
			require.Error(t, err)
		})
	}
}

func TestMultisigWitnessRoundTrip(t *testing.T) {
	m, err := NewMultisig(0, 2, hashes(3))
	require.NoError(t, err)

	sig1 := bytes.Repeat([]byte{0xaa}, SignatureSize)
	sig2 := bytes.Repeat([]byte{0xbb}, SignatureSize)
	w, err := m.Witness(sig1, sig2)
	require.NoError(t, err)
	require.Len(t, w, len(m.Placeholder()))

	sigs, err := m.SplitWitness(w)
	require.NoError(t, err)
	require.Equal(t, [][]byte{sig1, sig2}, sigs)

	_, err = m.Witness([]byte{1})
	require.Error(t, err)
	_, err = m.SplitWitness(append(w, 0))
	require.Error(t, err)
	_, err = m.SplitWitness(sig1)
	require.Error(t, err)

	require.Equal(t, 2, m.IndexOf(hashes(3)[2]))
	require.Equal(t, -1, m.IndexOf(make([]byte, PubKeyHashSize)))
}

func TestRegistry(t *testing.T) {
	cfg := config.Default(config.Testnet)
	r := NewRegistry(cfg)

	secp := cfg.Secp256k1.NewScript(hashes(1)[0])
	require.Equal(t, KindSecp256k1, r.Kind(secp))
	p, ok := r.Placeholder(secp)
	require.True(t, ok)
	require.Equal(t, make([]byte, SignatureSize), p)

	m, err := NewMultisig(0, 2, hashes(3))
	require.NoError(t, err)
	script, err := m.Script(r)
	require.NoError(t, err)

	// unregistered multisig has no known layout yet
	_, ok = r.Placeholder(script)
	require.False(t, ok)

	registered, err := r.RegisterMultisig(m)
	require.NoError(t, err)
	require.Equal(t, script, registered)
	require.Equal(t, KindMultisig, r.Kind(script))

	p, ok = r.Placeholder(script)
	require.True(t, ok)
	require.Equal(t, m.Placeholder(), p)

	got, ok := r.Multisig(script)
	require.True(t, ok)
	require.Same(t, m, got)

	// acp is not configured in the defaults
	unknown := cfg.ACP.NewScript(hashes(1)[0])
	require.Equal(t, KindUnknown, r.Kind(unknown))
	_, ok = r.Placeholder(unknown)
	require.False(t, ok)
}

func TestRegistryCellDeps(t *testing.T) {
	r := NewRegistry(config.Default(config.Testnet))

	deps, err := r.CellDeps(KindSecp256k1, KindMultisig, KindSecp256k1)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	require.Equal(t, uint(0), deps[0].OutPoint.Index)
	require.Equal(t, uint(1), deps[1].OutPoint.Index)

	_, err = r.CellDeps(KindAcp)
	require.Error(t, err)
	_, err = r.CellDeps(KindUnknown)
	require.Error(t, err)
}
