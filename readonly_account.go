package btcwallet

import (
	"context"
	"sync"

	"github.com/coreledger/btcwallet/internal/address"
	"github.com/coreledger/btcwallet/internal/electrum"
	"github.com/coreledger/btcwallet/internal/history"
	"github.com/coreledger/btcwallet/internal/txbuilder"
	"github.com/coreledger/btcwallet/pkg/werrors"
)

// WatchOnlyAccount is the read-only account variant of §6.1/§9: it
// exposes the capability set shared with Account (address, balance,
// transfers, quote) but holds no key material and rejects sign/send.
// Constructed directly from an address rather than derived from a seed.
type WatchOnlyAccount struct {
	mu       sync.Mutex
	disposed bool

	address string
	network address.Network

	client  electrum.Client
	builder *txbuilder.Builder
	history *history.Engine
}

var _ ReadOnlyAccount = (*WatchOnlyAccount)(nil)

// NewWatchOnlyAccount constructs a key-less account that watches addr
// on the given network through client.
func NewWatchOnlyAccount(addr string, network address.Network, client electrum.Client) (*WatchOnlyAccount, error) {
	program, err := address.Decode(addr, network)
	if err != nil {
		return nil, err
	}

	return &WatchOnlyAccount{
		address: addr,
		network: network,
		client:  client,
		builder: &txbuilder.Builder{
			Client:     client,
			Network:    network,
			OwnAddress: addr,
			OwnProgram: program,
		},
		history: &history.Engine{Client: client, Network: network, Address: addr},
	}, nil
}

// Index is always -1 for a watch-only account; it has no position in a
// wallet's derivation tree.
func (w *WatchOnlyAccount) Index() int { return -1 }

// Path is always empty for a watch-only account.
func (w *WatchOnlyAccount) Path() string { return "" }

// GetAddress returns the watched address.
func (w *WatchOnlyAccount) GetAddress() string { return w.address }

// GetBalance returns the watched address's confirmed balance in satoshis.
func (w *WatchOnlyAccount) GetBalance(ctx context.Context) (int64, error) {
	if err := w.checkLive(); err != nil {
		return 0, err
	}
	bal, err := w.client.GetBalance(ctx, w.address)
	if err != nil {
		return 0, werrors.NetworkFailure(err)
	}
	return bal.ConfirmedSats, nil
}

// GetTransfers returns the watched address's reconstructed transfer history.
func (w *WatchOnlyAccount) GetTransfers(ctx context.Context, q TransferQuery) ([]history.Record, error) {
	if err := w.checkLive(); err != nil {
		return nil, err
	}
	return w.history.Get(ctx, q.resolve())
}

// QuoteSendTransaction estimates the fee a send would pay without
// requiring key material (see txbuilder.Builder.QuoteReadOnly).
func (w *WatchOnlyAccount) QuoteSendTransaction(ctx context.Context, to string, valueSats int64) (int64, error) {
	if err := w.checkLive(); err != nil {
		return 0, err
	}
	return w.builder.QuoteReadOnly(ctx, to, valueSats)
}

// Sign always fails: a watch-only account has no private key.
func (w *WatchOnlyAccount) Sign(string) (string, error) {
	return "", werrors.UnsupportedOperation("sign")
}

// SendTransaction always fails: a watch-only account has no private key.
func (w *WatchOnlyAccount) SendTransaction(context.Context, string, int64) (string, int64, error) {
	return "", 0, werrors.UnsupportedOperation("sendTransaction")
}

// Dispose is idempotent; afterwards GetBalance, GetTransfers and
// QuoteSendTransaction fail with DisposedAccount. Sign and
// SendTransaction still fail with UnsupportedOperation, and Index, Path
// and GetAddress still return their values.
func (w *WatchOnlyAccount) Dispose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disposed = true
}

func (w *WatchOnlyAccount) checkLive() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return errDisposedAccount()
	}
	return nil
}
