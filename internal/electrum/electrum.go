// Package electrum declares the narrow interface the wallet engine
// consumes to read chain state and broadcast transactions. The Electrum
// wire protocol itself — JSON line framing, subscriptions, reconnection,
// script-hash derivation — is an external collaborator and is not
// implemented here; this package defines only the contract and the DTOs
// crossing it.
package electrum

import "context"

// Balance is the result of get_balance.
type Balance struct {
	ConfirmedSats   int64
	UnconfirmedSats int64
}

// UTXO is an unspent output as reported by list_unspent, before the
// transaction builder resolves its parent script.
type UTXO struct {
	TxID  string
	Vout  uint32
	Value int64
}

// HistoryEntry is one entry from get_history: a txid and its
// confirmation height (0 for mempool).
type HistoryEntry struct {
	TxID   string
	Height int64
}

// Client is the semantic surface the transaction builder, history
// engine, and account facade call through. Every method may fail with a
// werrors.NetworkFailure; no implementation of this interface may retry
// internally above its own transport layer and still honor the no-
// automatic-retries contract documented on the core (the adapter's own
// reconnection logic is exactly the part this interface keeps external).
type Client interface {
	// GetBalance returns the confirmed and unconfirmed balance of address.
	GetBalance(ctx context.Context, address string) (Balance, error)

	// ListUnspent returns the unspent outputs owned by address, in
	// server order.
	ListUnspent(ctx context.Context, address string) ([]UTXO, error)

	// GetHistory returns address's transaction history ordered by
	// ascending height, with mempool entries (height 0) last.
	GetHistory(ctx context.Context, address string) ([]HistoryEntry, error)

	// GetTransaction returns the full consensus-serialized bytes of txid.
	GetTransaction(ctx context.Context, txid string) ([]byte, error)

	// EstimateFee returns a fee rate in satoshis per virtual byte for
	// confirmation within targetBlocks. The caller clamps the result to
	// a minimum of 1.
	EstimateFee(ctx context.Context, targetBlocks int) (satsPerVByte int64, err error)

	// Broadcast submits rawTxHex to the network and returns its txid.
	Broadcast(ctx context.Context, rawTxHex string) (txid string, err error)
}
