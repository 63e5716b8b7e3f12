// Package btcwallet is a non-custodial Bitcoin P2WPKH wallet engine:
// BIP-39/32/84 key derivation, bech32 address encoding, UTXO-driven
// transaction construction with BIP-143 segwit signing, and transfer
// history reconstruction, all driven from a seed and an external
// Electrum-compatible chain data source.
package btcwallet

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/coreledger/btcwallet/internal/address"
	"github.com/coreledger/btcwallet/internal/electrum"
	"github.com/coreledger/btcwallet/internal/history"
	"github.com/coreledger/btcwallet/internal/secure"
	"github.com/coreledger/btcwallet/internal/txbuilder"
	"github.com/coreledger/btcwallet/pkg/werrors"
)

// KeyPair is the public and private key material of a full-access
// Account, exposed read-only per the library's public surface.
type KeyPair struct {
	PublicKey  [33]byte
	PrivateKey [32]byte
}

// ReadOnlyAccount is the capability set shared by both account
// variants: none of its methods exposes key material.
type ReadOnlyAccount interface {
	Index() int
	Path() string
	GetAddress() string
	GetBalance(ctx context.Context) (int64, error)
	GetTransfers(ctx context.Context, q TransferQuery) ([]history.Record, error)
	QuoteSendTransaction(ctx context.Context, to string, valueSats int64) (int64, error)
	Dispose()
}

// DefaultTransferLimit is get_transfers' documented limit default
// (§6.1: "limit?=10").
const DefaultTransferLimit = 10

// TransferQuery parameterizes GetTransfers at the public library
// surface. Limit is a pointer so a caller who never sets it gets the
// spec's default of DefaultTransferLimit, while a caller who
// explicitly passes Limit: ptr(0) still gets back no records — the
// zero value of a plain int cannot distinguish "unset" from "explicit
// zero", so the pointer carries that distinction through to resolve.
type TransferQuery struct {
	Direction history.Direction // "" or "all" for both
	Limit     *int              // nil defaults to DefaultTransferLimit
	Skip      int
}

// resolve turns a public TransferQuery into the history engine's fully
// resolved Query, applying the limit default.
func (q TransferQuery) resolve() history.Query {
	limit := DefaultTransferLimit
	if q.Limit != nil {
		limit = *q.Limit
	}
	return history.Query{Direction: q.Direction, Limit: limit, Skip: q.Skip}
}

// Account is the full-access account facade (C6): address, sign/verify,
// balance, send/quote, transfers, dispose.
type Account struct {
	mu       sync.Mutex
	disposed bool

	index   int
	path    string
	network address.Network

	privKey               *secure.Bytes // 32 bytes, the final derived private key
	chainCode             *secure.Bytes // 32 bytes, the final derived chain code
	masterKeyAndChainCode *secure.Bytes // 64 bytes, master private key || master chain code
	pubKey                [33]byte
	address               string // memoized

	client  electrum.Client
	builder *txbuilder.Builder
	history *history.Engine
}

var (
	_ ReadOnlyAccount = (*Account)(nil)
)

// Index returns the account index used at construction, or -1 for
// accounts constructed by explicit path tail.
func (a *Account) Index() int { return a.index }

// Path returns the absolute derivation path, e.g. "m/84'/0'/0'/0/0".
func (a *Account) Path() string { return a.path }

// GetAddress returns the account's memoized P2WPKH address.
func (a *Account) GetAddress() string { return a.address }

// KeyPair returns a copy of the account's public and private key
// material. Returns DisposedAccount once disposed.
func (a *Account) KeyPair() (KeyPair, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return KeyPair{}, errDisposedAccount()
	}
	var kp KeyPair
	copy(kp.PublicKey[:], a.pubKey[:])
	copy(kp.PrivateKey[:], a.privKey.Bytes())
	return kp, nil
}

// Sign signs SHA-256(message) with the account's private key using
// deterministic, low-S ECDSA, and returns the base64 encoding of the
// DER-serialized signature.
func (a *Account) Sign(message string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return "", errDisposedAccount()
	}

	digest := sha256.Sum256([]byte(message))
	privKey, _ := btcec.PrivKeyFromBytes(a.privKey.Bytes())
	sig := ecdsa.Sign(privKey, digest[:])
	return base64.StdEncoding.EncodeToString(sig.Serialize()), nil
}

// Verify reports whether sig (base64 DER) is a valid signature over
// SHA-256(message) by this account's public key. A well-formed but
// mismatching signature returns false, not an error; a signature that
// cannot be parsed as DER raises MalformedSignature.
func (a *Account) Verify(message, sig string) (bool, error) {
	a.mu.Lock()
	pubKeyBytes := a.pubKey
	disposed := a.disposed
	a.mu.Unlock()
	if disposed {
		return false, errDisposedAccount()
	}

	der, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false, werrors.Wrap(werrors.KindMalformedSignature, "signature is not valid base64", err)
	}
	parsed, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return false, werrors.Wrap(werrors.KindMalformedSignature, "signature is not valid DER", err)
	}

	pubKey, err := btcec.ParsePubKey(pubKeyBytes[:])
	if err != nil {
		return false, fmt.Errorf("parsing account public key: %w", err)
	}

	digest := sha256.Sum256([]byte(message))
	return parsed.Verify(digest[:], pubKey), nil
}

// GetBalance returns the account's confirmed balance in satoshis.
func (a *Account) GetBalance(ctx context.Context) (int64, error) {
	if err := a.checkLive(); err != nil {
		return 0, err
	}
	bal, err := a.client.GetBalance(ctx, a.address)
	if err != nil {
		return 0, werrors.NetworkFailure(err)
	}
	return bal.ConfirmedSats, nil
}

// GetTokenBalance always fails: this engine has no token model.
func (a *Account) GetTokenBalance(context.Context, string) (int64, error) {
	return 0, werrors.UnsupportedOperation("getTokenBalance")
}

// Transfer always fails: non-native-asset transfers are not modeled.
func (a *Account) Transfer(context.Context, string, int64) error {
	return werrors.UnsupportedOperation("transfer")
}

// SendTransaction builds, signs, and broadcasts a P2WPKH transaction
// paying value satoshis to to.
func (a *Account) SendTransaction(ctx context.Context, to string, valueSats int64) (string, int64, error) {
	if err := a.checkLive(); err != nil {
		return "", 0, err
	}
	res, err := a.builder.Send(ctx, to, valueSats)
	if err != nil {
		return "", 0, err
	}
	return res.TxID, res.FeeSats, nil
}

// QuoteSendTransaction performs everything send_transaction would do
// short of broadcasting, returning the fee it would pay.
func (a *Account) QuoteSendTransaction(ctx context.Context, to string, valueSats int64) (int64, error) {
	if err := a.checkLive(); err != nil {
		return 0, err
	}
	return a.builder.Quote(ctx, to, valueSats)
}

// GetTransfers returns this account's reconstructed transfer history.
func (a *Account) GetTransfers(ctx context.Context, q TransferQuery) ([]history.Record, error) {
	if err := a.checkLive(); err != nil {
		return nil, err
	}
	return a.history.Get(ctx, q.resolve())
}

// Dispose zeroes the account's key material and releases its Electrum
// handle. Idempotent; after Dispose, KeyPair, Sign, Verify, GetBalance,
// SendTransaction, QuoteSendTransaction and GetTransfers fail with
// DisposedAccount. GetTokenBalance and Transfer still fail with
// UnsupportedOperation, and Index, Path and GetAddress still return
// their values.
func (a *Account) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}
	a.disposed = true
	a.privKey.Destroy()
	if a.chainCode != nil {
		a.chainCode.Destroy()
	}
	if a.masterKeyAndChainCode != nil {
		a.masterKeyAndChainCode.Destroy()
	}
	a.client = nil
	a.builder = nil
	a.history = nil
}

func (a *Account) checkLive() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return errDisposedAccount()
	}
	return nil
}

func errDisposedAccount() error {
	return werrors.New(werrors.KindDisposedAccount, "account has been disposed")
}
