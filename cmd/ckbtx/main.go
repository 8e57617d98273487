package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/nervosnetwork/ckb-sdk-go/crypto/secp256k1"
	"github.com/nervosnetwork/ckb-sdk-go/rpc"
	ckbTypes "github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/builder"
	"github.com/shaojunda/ckb-tx-sdk/client"
	"github.com/shaojunda/ckb-tx-sdk/collector"
	"github.com/shaojunda/ckb-tx-sdk/config"
	"github.com/shaojunda/ckb-tx-sdk/lock"
	"github.com/shaojunda/ckb-tx-sdk/signer"
	"github.com/shaojunda/ckb-tx-sdk/types"
	"github.com/shaojunda/ckb-tx-sdk/utils"
)

// Flags shared by all commands.
var opts struct {
	Config   string `short:"C" long:"config" description:"Path to the YAML config file" default:"config-example.yaml"`
	LogLevel string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical, off}"`
}

type transferCommand struct {
	Key    string `short:"k" long:"key" description:"Hex encoded secp256k1 private key of the sender" required:"true"`
	To     string `short:"t" long:"to" description:"Recipient address" required:"true"`
	Amount string `short:"a" long:"amount" description:"Amount in CKBytes, e.g. 100.5" required:"true"`
	Wait   bool   `short:"w" long:"wait" description:"Wait until the transaction is committed"`
}

type balanceCommand struct {
	Tokens bool `long:"tokens" description:"Include configured sUDT balances"`
	Args   struct {
		Addresses []string `positional-arg-name:"address" required:"1"`
	} `positional-args:"yes"`
}

type txCommand struct {
	Args struct {
		Hash string `positional-arg-name:"hash"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("transfer", "Send CKBytes",
		"Collect capacity from the key's secp256k1 lock, pay the recipient and return change to the sender.",
		&transferCommand{})
	parser.AddCommand("balance", "Show address balances",
		"Sum the live plain CKB cells of one or more addresses.",
		&balanceCommand{})
	parser.AddCommand("tx", "Describe a transaction",
		"Fetch an on-chain transaction and print its inputs, outputs and fee.",
		&txCommand{})

	if _, err := parser.Parse(); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

// setup loads the config, applies the log level and dials the node.
func setup() (*config.Config, rpc.Client, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, nil, err
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	setLogLevels(level)

	cli, err := client.NewRpcClient(cfg.Rpc, cfg.Indexer)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", cfg.Rpc, err)
	}
	return cfg, cli, nil
}

func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// waitForIndexer holds off cell collection until the indexer has caught up
// with the node.
func waitForIndexer(ctx context.Context, cli rpc.Client, cfg *config.Config) error {
	w := client.NewIndexerWaiter(cli, cfg)
	defer w.Ticker.Stop()
	w.OnProgress = func(indexerTip, nodeTip uint64) {
		log.Infof("Waiting for indexer: block %d of %d", indexerTip, nodeTip)
	}
	return w.Wait(ctx)
}

func (c *transferCommand) Execute(_ []string) error {
	cfg, cli, err := setup()
	if err != nil {
		return err
	}
	defer cli.Close()

	ctx, cancel := interruptContext()
	defer cancel()

	key, err := secp256k1.HexToKey(strings.TrimPrefix(c.Key, "0x"))
	if err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	sender, err := utils.PubKeyToScript("0x"+hex.EncodeToString(key.PubKey()), false, cfg)
	if err != nil {
		return err
	}
	recipient, err := utils.AddressToScript(c.To, cfg)
	if err != nil {
		return err
	}
	amount, err := parseCkbytes(c.Amount)
	if err != nil {
		return err
	}
	if err := waitForIndexer(ctx, cli, cfg); err != nil {
		return err
	}

	registry := lock.NewRegistry(cfg)
	capacityCollector := collector.NewCapacityCollector(cli, cfg.Collector.PageSize)
	skeleton, err := builder.NewUnsignedCapacityTxBuilder(
		[]*ckbTypes.Script{sender}, sender,
		[]*types.Cell{{Capacity: amount, Lock: recipient}},
		registry, capacityCollector,
	).Build(ctx)
	if err != nil {
		return err
	}

	if skeleton, err = builder.GenerateSigningEntries(skeleton); err != nil {
		return err
	}
	keyring := signer.NewKeyring()
	if err := keyring.Add(sender, key); err != nil {
		return err
	}
	signatures, err := keyring.SignAll(skeleton, registry)
	if err != nil {
		return err
	}
	tx, err := signer.NewSealer(registry).Seal(skeleton, signatures)
	if err != nil {
		return err
	}

	var hash ckbTypes.Hash
	if c.Wait {
		poller := client.NewPoller(cli, cfg.Confirmation.Interval, cfg.Confirmation.Timeout)
		poller.OnStatus = func(s client.Status) {
			log.Infof("Transaction status: %s", s)
		}
		hash, err = client.SendAndWait(ctx, cli, tx, poller)
	} else {
		hash, err = client.Broadcast(ctx, cli, tx)
	}
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func (c *balanceCommand) Execute(_ []string) error {
	cfg, cli, err := setup()
	if err != nil {
		return err
	}
	defer cli.Close()

	ctx, cancel := interruptContext()
	defer cancel()

	if err := waitForIndexer(ctx, cli, cfg); err != nil {
		return err
	}
	if c.Tokens {
		result := make(map[string][]*client.Balance, len(c.Args.Addresses))
		for _, addr := range c.Args.Addresses {
			balances, err := client.BalancesForAddress(ctx, addr, cli, cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", addr, err)
			}
			result[addr] = balances
		}
		return printJSON(result)
	}

	balances, err := client.BalancesForAddresses(ctx, c.Args.Addresses, cli, cfg)
	if err != nil {
		return err
	}
	return printJSON(balances)
}

func (c *txCommand) Execute(_ []string) error {
	cfg, cli, err := setup()
	if err != nil {
		return err
	}
	defer cli.Close()

	ctx, cancel := interruptContext()
	defer cancel()

	dict, err := client.GetTransaction(ctx, cli, ckbTypes.HexToHash(c.Args.Hash), cfg)
	if err != nil {
		return err
	}
	return printJSON(dict)
}

// parseCkbytes converts a decimal CKByte amount into shannons.
func parseCkbytes(s string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok || r.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidCapacity, s)
	}
	r.Mul(r, new(big.Rat).SetInt(types.CkbytesToShannons(1)))
	if !r.IsInt() {
		return nil, fmt.Errorf("%w: %q has more than 8 decimals", types.ErrInvalidCapacity, s)
	}
	return new(big.Int).Set(r.Num()), nil
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
