// Package electrumtest provides a deterministic in-memory electrum.Client
// for use across the wallet engine's test suite. It is not part of the
// public API.
package electrumtest

import (
	"context"
	"fmt"

	"github.com/coreledger/btcwallet/internal/electrum"
)

// Mock implements electrum.Client with func fields, following the same
// per-method-override shape used elsewhere in the corpus for API mocks.
// A nil func field returns the type's zero value and a nil error, with
// two exceptions: EstimateFee returns 1, and GetTransaction serves
// Transactions[txid] or fails for a txid that is not registered.
type Mock struct {
	BalanceFunc     func(ctx context.Context, address string) (electrum.Balance, error)
	UnspentFunc     func(ctx context.Context, address string) ([]electrum.UTXO, error)
	HistoryFunc     func(ctx context.Context, address string) ([]electrum.HistoryEntry, error)
	TransactionFunc func(ctx context.Context, txid string) ([]byte, error)
	FeeFunc         func(ctx context.Context, targetBlocks int) (int64, error)
	BroadcastFunc   func(ctx context.Context, rawTxHex string) (string, error)

	// Transactions is a convenience store keyed by txid for tests that
	// want GetTransaction to serve precomputed raw bytes without
	// defining TransactionFunc.
	Transactions map[string][]byte
}

func (m *Mock) GetBalance(ctx context.Context, address string) (electrum.Balance, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx, address)
	}
	return electrum.Balance{}, nil
}

func (m *Mock) ListUnspent(ctx context.Context, address string) ([]electrum.UTXO, error) {
	if m.UnspentFunc != nil {
		return m.UnspentFunc(ctx, address)
	}
	return nil, nil
}

func (m *Mock) GetHistory(ctx context.Context, address string) ([]electrum.HistoryEntry, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, address)
	}
	return nil, nil
}

func (m *Mock) GetTransaction(ctx context.Context, txid string) ([]byte, error) {
	if m.TransactionFunc != nil {
		return m.TransactionFunc(ctx, txid)
	}
	if raw, ok := m.Transactions[txid]; ok {
		return raw, nil
	}
	return nil, fmt.Errorf("electrumtest: no transaction registered for %s", txid)
}

func (m *Mock) EstimateFee(ctx context.Context, targetBlocks int) (int64, error) {
	if m.FeeFunc != nil {
		return m.FeeFunc(ctx, targetBlocks)
	}
	return 1, nil
}

func (m *Mock) Broadcast(ctx context.Context, rawTxHex string) (string, error) {
	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(ctx, rawTxHex)
	}
	return "", nil
}

var _ electrum.Client = (*Mock)(nil)
