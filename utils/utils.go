package utils

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nervosnetwork/ckb-sdk-go/address"
	"github.com/nervosnetwork/ckb-sdk-go/crypto/blake2b"
	"github.com/nervosnetwork/ckb-sdk-go/types"
	"github.com/shaojunda/ckb-tx-sdk/config"
	ctypes "github.com/shaojunda/ckb-tx-sdk/types"
)

func addressMode(config *config.Config) address.Mode {
	if config.IsMainnet() {
		return address.Mainnet
	}
	return address.Testnet
}

// AddressToScript parses addr and rejects addresses of the other network.
func AddressToScript(addr string, config *config.Config) (*types.Script, error) {
	parsedAddr, err := address.Parse(addr)
	if err != nil {
		return nil, err
	}
	if parsedAddr.Mode != addressMode(config) {
		return nil, fmt.Errorf("%w: %s is a %s address", ctypes.ErrNetworkMismatch, addr, parsedAddr.Mode)
	}
	return parsedAddr.Script, nil
}

func ScriptToAddress(script *types.Script, config *config.Config) (string, error) {
	return address.Generate(addressMode(config), script)
}

// PubKeyToScript returns the secp256k1 or anyone-can-pay lock owned by a
// compressed public key given in hex.
func PubKeyToScript(pub string, isAcp bool, config *config.Config) (*types.Script, error) {
	args, err := blake2b.Blake160(common.FromHex(pub))
	if err != nil {
		return nil, err
	}
	if isAcp {
		if config.ACP.Script.CodeHash == "" {
			return nil, fmt.Errorf("%w: acp script is not configured", ctypes.ErrNotAcpLock)
		}
		return config.ACP.NewScript(args), nil
	}
	return config.Secp256k1.NewScript(args), nil
}

func PubKeyToAddress(pub string, isAcp bool, config *config.Config) (string, error) {
	script, err := PubKeyToScript(pub, isAcp, config)
	if err != nil {
		return "", err
	}
	return ScriptToAddress(script, config)
}

func IsAcpAddress(addr string, config *config.Config) (bool, error) {
	script, err := AddressToScript(addr, config)
	if err != nil {
		return false, err
	}
	return config.ACP.Matches(script), nil
}
