package btcwallet

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/btcwallet/internal/address"
	"github.com/coreledger/btcwallet/internal/electrum"
	"github.com/coreledger/btcwallet/internal/electrum/electrumtest"
	"github.com/coreledger/btcwallet/pkg/werrors"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestManager(t *testing.T, client electrum.Client) *WalletManager {
	t.Helper()
	m, err := NewFromMnemonic(testMnemonic, "", client, DefaultConfig())
	require.NoError(t, err)
	return m
}

func TestAccount_signVerifyRoundTrip(t *testing.T) {
	m := newTestManager(t, &electrumtest.Mock{})
	acct, err := m.GetAccount(0)
	require.NoError(t, err)

	sig, err := acct.Sign("Dummy message to sign.")
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	ok, err := acct.Verify("Dummy message to sign.", sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = acct.Verify("a different message", sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccount_verifyMalformedSignature(t *testing.T) {
	m := newTestManager(t, &electrumtest.Mock{})
	acct, err := m.GetAccount(0)
	require.NoError(t, err)

	_, err = acct.Verify("message", "not-base64-der!!")
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.KindMalformedSignature))
}

func TestAccount_disposeRejectsFurtherOperations(t *testing.T) {
	m := newTestManager(t, &electrumtest.Mock{})
	acct, err := m.GetAccount(0)
	require.NoError(t, err)

	acct.Dispose()
	acct.Dispose() // idempotent

	_, err = acct.GetBalance(context.Background())
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.KindDisposedAccount))

	_, err = acct.Sign("anything")
	require.Error(t, err)
}

func TestAccount_unsupportedOperations(t *testing.T) {
	m := newTestManager(t, &electrumtest.Mock{})
	acct, err := m.GetAccount(0)
	require.NoError(t, err)

	_, err = acct.GetTokenBalance(context.Background(), "USDC")
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.KindUnsupportedOperation))

	err = acct.Transfer(context.Background(), "addr", 1)
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.KindUnsupportedOperation))
}

func TestAccount_getBalanceWrapsNetworkFailure(t *testing.T) {
	mock := &electrumtest.Mock{
		BalanceFunc: func(ctx context.Context, addr string) (electrum.Balance, error) {
			return electrum.Balance{}, errBoom
		},
	}
	m := newTestManager(t, mock)
	acct, err := m.GetAccount(0)
	require.NoError(t, err)

	_, err = acct.GetBalance(context.Background())
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.KindNetworkFailure))
}

func TestAccount_keyPairMatchesAddress(t *testing.T) {
	m := newTestManager(t, &electrumtest.Mock{})
	acct, err := m.GetAccount(0)
	require.NoError(t, err)

	kp, err := acct.KeyPair()
	require.NoError(t, err)
	assert.NotZero(t, kp.PublicKey)
	assert.NotZero(t, kp.PrivateKey)
	assert.Equal(t, "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", acct.GetAddress())

	fromKey, err := address.Encode(kp.PublicKey[:], address.Bitcoin)
	require.NoError(t, err)
	assert.Equal(t, acct.GetAddress(), fromKey)
}

// buildIncomingTx constructs a single-output transaction paying value
// sats to ownScript, with one input spending an arbitrary,
// unregistered prevout. The prevout is intentionally never registered
// with the mock: resolveInputs tolerates the resulting fetch failure
// (fee becomes nil) without affecting classification.
func buildIncomingTx(t *testing.T, value int64, ownScript []byte) (txid string, raw []byte) {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, ownScript))
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return tx.TxHash().String(), buf.Bytes()
}

// manyTransfersAccount returns an account whose history is count
// distinct incoming transactions, for exercising TransferQuery's
// limit defaulting.
func manyTransfersAccount(t *testing.T, count int) *Account {
	t.Helper()
	m := newTestManager(t, &electrumtest.Mock{})
	acct, err := m.GetAccount(0)
	require.NoError(t, err)

	ownProgram, err := address.Decode(acct.GetAddress(), acct.network)
	require.NoError(t, err)
	ownScript, err := address.OutputScript(ownProgram)
	require.NoError(t, err)

	txs := make(map[string][]byte, count)
	entries := make([]electrum.HistoryEntry, 0, count)
	for i := 0; i < count; i++ {
		txid, raw := buildIncomingTx(t, int64(10000+i), ownScript)
		txs[txid] = raw
		entries = append(entries, electrum.HistoryEntry{TxID: txid, Height: int64(100 + i)})
	}

	mock := &electrumtest.Mock{
		Transactions: txs,
		HistoryFunc: func(ctx context.Context, addr string) ([]electrum.HistoryEntry, error) {
			return entries, nil
		},
	}
	acct.client = mock
	acct.history.Client = mock
	return acct
}

func TestAccount_getTransfersDefaultsLimitToTen(t *testing.T) {
	acct := manyTransfersAccount(t, 15)

	records, err := acct.GetTransfers(context.Background(), TransferQuery{})
	require.NoError(t, err)
	assert.Len(t, records, DefaultTransferLimit)
}

func TestAccount_getTransfersExplicitZeroLimitReturnsEmpty(t *testing.T) {
	acct := manyTransfersAccount(t, 15)

	zero := 0
	records, err := acct.GetTransfers(context.Background(), TransferQuery{Limit: &zero})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAccount_getTransfersExplicitLimitHonored(t *testing.T) {
	acct := manyTransfersAccount(t, 15)

	three := 3
	records, err := acct.GetTransfers(context.Background(), TransferQuery{Limit: &three})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

type boomErr string

func (e boomErr) Error() string { return string(e) }

var errBoom = boomErr("network down")
