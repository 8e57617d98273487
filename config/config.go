package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"gopkg.in/yaml.v2"
)

const (
	Mainnet = "mainnet"
	Testnet = "testnet"
)

type Dep struct {
	TxHash  string `yaml:"txHash"`
	Index   uint   `yaml:"index"`
	DepType string `yaml:"depType"`
}

type Script struct {
	CodeHash string `yaml:"codeHash"`
	HashType string `yaml:"hashType"`
}

// LockConfig locates a script on chain and the cell deps it needs.
type LockConfig struct {
	Deps   []Dep  `yaml:"deps"`
	Script Script `yaml:"script"`
}

type Config struct {
	Rpc      string `yaml:"rpc"`
	Indexer  string `yaml:"indexer"`
	Network  string `yaml:"network"`
	LogLevel string `yaml:"logLevel"`

	Secp256k1 LockConfig `yaml:"secp256k1"`
	Multisig  LockConfig `yaml:"multisig"`
	ACP       LockConfig `yaml:"acp"`
	UDT       struct {
		Deps   []Dep  `yaml:"deps"`
		Script Script `yaml:"script"`
		Tokens map[string]struct {
			Symbol  string `yaml:"symbol"`
			Decimal int    `yaml:"decimal"`
		} `yaml:"tokens"`
	} `yaml:"udt"`

	Fee struct {
		// Rate is shannons per 1000 bytes.
		Rate uint64 `yaml:"rate"`
		// Max is the largest fee, in shannons, validation accepts.
		Max uint64 `yaml:"max"`
	} `yaml:"fee"`

	Collector struct {
		PageSize uint64 `yaml:"pageSize"`
	} `yaml:"collector"`

	Confirmation struct {
		Interval time.Duration `yaml:"interval"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"confirmation"`

	// IndexerSync controls how long to wait for the indexer to reach the
	// node's tip before querying cells.
	IndexerSync struct {
		// BlockDifference is how many blocks the indexer may trail the node.
		BlockDifference uint64        `yaml:"blockDifference"`
		Interval        time.Duration `yaml:"interval"`
		Timeout         time.Duration `yaml:"timeout"`
	} `yaml:"indexerSync"`
}

// Default returns a config carrying the well-known system script locations
// for network.
func Default(network string) *Config {
	c := &Config{
		Rpc:      "http://127.0.0.1:8114",
		Indexer:  "http://127.0.0.1:8116",
		Network:  network,
		LogLevel: "info",
	}
	c.Secp256k1.Script = Script{CodeHash: "0x9bd7e06f3ecf4be0f2fcd2188b23f1b9fcc88e5d4b65a8637b17723bbda3cce8", HashType: "type"}
	c.Multisig.Script = Script{CodeHash: "0x5c5069eb0857efc65e1bca0c07df34c31663b3622fd3876c876320fc9634e2a8", HashType: "type"}

	switch network {
	case Mainnet:
		group := "0x71a7ba8fc96349fea0ed3a5c47992e3b4084b031a42264a018e0072e8172e46c"
		c.Secp256k1.Deps = []Dep{{TxHash: group, Index: 0, DepType: "dep_group"}}
		c.Multisig.Deps = []Dep{{TxHash: group, Index: 1, DepType: "dep_group"}}
	case Testnet:
		group := "0xf8de3bb47d055cdf460d93a2a6e1b05f7432f9777c8c474abf4eec1d4aee5d37"
		c.Secp256k1.Deps = []Dep{{TxHash: group, Index: 0, DepType: "dep_group"}}
		c.Multisig.Deps = []Dep{{TxHash: group, Index: 1, DepType: "dep_group"}}
	}

	c.Fee.Rate = 1000
	c.Fee.Max = 100000000
	c.Collector.PageSize = 1000
	c.Confirmation.Interval = time.Second
	c.Confirmation.Timeout = 5 * time.Minute
	c.IndexerSync.Interval = 250 * time.Millisecond
	c.IndexerSync.Timeout = 5 * time.Minute
	return c
}

// Load reads a yaml config from path on top of the defaults for the
// network it names.
func Load(path string) (*Config, error) {
	file, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(file)
}

func Parse(data []byte) (*Config, error) {
	var probe struct {
		Network string `yaml:"network"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	network := probe.Network
	if network == "" {
		network = Testnet
	}

	c := Default(network)
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Network != Mainnet && c.Network != Testnet {
		return fmt.Errorf("unknown network %q", c.Network)
	}
	if c.Collector.PageSize == 0 {
		return errors.New("collector.pageSize must be positive")
	}
	if c.Confirmation.Interval <= 0 {
		return errors.New("confirmation.interval must be positive")
	}
	if c.IndexerSync.Interval <= 0 {
		return errors.New("indexerSync.interval must be positive")
	}
	locks := []struct {
		name string
		lc   LockConfig
	}{
		{"secp256k1", c.Secp256k1},
		{"multisig", c.Multisig},
	}
	for _, l := range locks {
		name, lc := l.name, l.lc
		if lc.Script.CodeHash == "" {
			return fmt.Errorf("%s.script.codeHash is required", name)
		}
		if err := validateHashType(lc.Script.HashType); err != nil {
			return fmt.Errorf("%s: %v", name, err)
		}
		for _, dep := range lc.Deps {
			if dep.DepType != string(ckbTypes.DepTypeCode) && dep.DepType != string(ckbTypes.DepTypeDepGroup) {
				return fmt.Errorf("%s: unknown depType %q", name, dep.DepType)
			}
		}
	}
	return nil
}

// IsMainnet reports whether addresses should use the mainnet prefix.
func (c *Config) IsMainnet() bool {
	return c.Network == Mainnet
}

// CellDeps converts configured deps to wire cell deps.
func (lc LockConfig) CellDeps() []*ckbTypes.CellDep {
	deps := make([]*ckbTypes.CellDep, 0, len(lc.Deps))
	for _, d := range lc.Deps {
		deps = append(deps, &ckbTypes.CellDep{
			OutPoint: &ckbTypes.OutPoint{
				TxHash: ckbTypes.HexToHash(d.TxHash),
				Index:  d.Index,
			},
			DepType: ckbTypes.DepType(d.DepType),
		})
	}
	return deps
}

// Matches reports whether script runs the code this config locates.
func (lc LockConfig) Matches(script *ckbTypes.Script) bool {
	if script == nil || lc.Script.CodeHash == "" {
		return false
	}
	return script.CodeHash == ckbTypes.HexToHash(lc.Script.CodeHash) &&
		string(script.HashType) == lc.Script.HashType
}

// NewScript builds a script running this config's code with args.
func (lc LockConfig) NewScript(args []byte) *ckbTypes.Script {
	return &ckbTypes.Script{
		CodeHash: ckbTypes.HexToHash(lc.Script.CodeHash),
		HashType: ckbTypes.ScriptHashType(lc.Script.HashType),
		Args:     args,
	}
}

func validateHashType(t string) error {
	switch t {
	case "data", "type", "data1":
		return nil
	}
	return fmt.Errorf("unknown hashType %q", t)
}
