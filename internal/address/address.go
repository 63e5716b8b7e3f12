// Package address implements P2WPKH bech32 address encoding and
// best-effort output-script classification for the transfer history
// engine.
package address

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/coreledger/btcwallet/pkg/werrors"
)

// Network identifies one of the three networks this module addresses.
type Network string

// Supported networks.
const (
	Bitcoin Network = "bitcoin"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
)

// Params returns the chaincfg.Params (and therefore the bech32 hrp) for
// a network name.
func Params(network Network) (*chaincfg.Params, error) {
	switch network {
	case Bitcoin:
		return &chaincfg.MainNetParams, nil
	case Testnet:
		return &chaincfg.TestNet3Params, nil
	case Regtest:
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, werrors.New(werrors.KindInvalidRecipient, fmt.Sprintf("unknown network %q", network))
	}
}

// Encode derives the bech32 P2WPKH address for a compressed public key
// on the given network: program = RIPEMD160(SHA256(pubkey)),
// address = bech32(hrp, witver=0, program).
func Encode(pubKeyCompressed []byte, network Network) (string, error) {
	params, err := Params(network)
	if err != nil {
		return "", err
	}

	hash160 := btcutil.Hash160(pubKeyCompressed)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash160, params)
	if err != nil {
		return "", fmt.Errorf("encoding P2WPKH address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// Decode parses a bech32 address for the given network and returns its
// 20-byte witness program. Returns InvalidRecipient for anything other
// than a valid v0 P2WPKH program on that network.
func Decode(addr string, network Network) ([]byte, error) {
	params, err := Params(network)
	if err != nil {
		return nil, err
	}

	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, werrors.Wrap(werrors.KindInvalidRecipient, fmt.Sprintf("cannot decode address %q", addr), err)
	}

	wpkh, ok := decoded.(*btcutil.AddressWitnessPubKeyHash)
	if !ok {
		return nil, werrors.New(werrors.KindInvalidRecipient, fmt.Sprintf("%q is not a P2WPKH address", addr))
	}
	if !wpkh.IsForNet(params) {
		return nil, werrors.New(werrors.KindInvalidRecipient, fmt.Sprintf("%q is not valid on network %s", addr, network))
	}

	program := wpkh.WitnessProgram()
	out := make([]byte, len(program))
	copy(out, program)
	return out, nil
}

// OutputScript builds the 22-byte "OP_0 <push 20> <program>" P2WPKH
// output script for a witness program.
func OutputScript(program []byte) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_0)
	builder.AddData(program)
	return builder.Script()
}

// ScriptToAddress classifies an arbitrary output script for a network.
// It never errors: scripts it cannot classify return ("", false).
// Recognized templates are P2WPKH, P2PKH, P2SH, P2WSH, and P2TR; only
// P2WPKH round-trips through Encode/Decode, the others are receive-side
// classification support for the transfer history engine.
func ScriptToAddress(script []byte, network Network) (addr string, ok bool) {
	params, err := Params(network)
	if err != nil {
		return "", false
	}

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil || len(addrs) != 1 {
		return "", false
	}
	return addrs[0].EncodeAddress(), true
}

// IsP2WPKH reports whether script is the canonical 22-byte P2WPKH
// template (0x00 0x14 <20 bytes>).
func IsP2WPKH(script []byte) bool {
	return len(script) == 22 && script[0] == 0x00 && script[1] == 0x14
}
