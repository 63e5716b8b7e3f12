package btcwallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/btcwallet/internal/electrum/electrumtest"
	"github.com/coreledger/btcwallet/pkg/werrors"
)

func TestWalletManager_getAccountCachesByPath(t *testing.T) {
	m := newTestManager(t, &electrumtest.Mock{})

	a1, err := m.GetAccount(0)
	require.NoError(t, err)
	a2, err := m.GetAccount(0)
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	a3, err := m.GetAccount(1)
	require.NoError(t, err)
	assert.NotSame(t, a1, a3)
	assert.NotEqual(t, a1.GetAddress(), a3.GetAddress())
}

func TestWalletManager_getAccountByPath(t *testing.T) {
	m := newTestManager(t, &electrumtest.Mock{})

	a, err := m.GetAccountByPath("0'/0/0")
	require.NoError(t, err)
	assert.Equal(t, -1, a.Index())
	assert.Equal(t, "m/84'/0'/0'/0/0", a.Path())

	byIndex, err := m.GetAccount(0)
	require.NoError(t, err)
	assert.Equal(t, byIndex.GetAddress(), a.GetAddress())
}

func TestWalletManager_invalidBipRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bip = 49
	_, err := NewFromMnemonic(testMnemonic, "", &electrumtest.Mock{}, cfg)
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.KindUnsupportedBip))
}

func TestWalletManager_invalidMnemonicRejected(t *testing.T) {
	_, err := NewFromMnemonic("not a valid mnemonic", "", &electrumtest.Mock{}, DefaultConfig())
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.KindInvalidMnemonic))
}

func TestWalletManager_disposeCascadesToAccounts(t *testing.T) {
	m := newTestManager(t, &electrumtest.Mock{})
	acct, err := m.GetAccount(0)
	require.NoError(t, err)

	m.Dispose()
	m.Dispose() // idempotent

	_, err = acct.GetBalance(context.Background())
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.KindDisposedAccount))

	_, err = m.GetAccount(1)
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.KindDisposedWallet))
}

func TestWalletManager_getFeeRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{
			"fastestFee": 20,
			"hourFee":    5,
		})
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.FeeRatesURL = server.URL
	m, err := NewFromMnemonic(testMnemonic, "", &electrumtest.Mock{}, cfg)
	require.NoError(t, err)

	rates, err := m.GetFeeRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, rates.Normal)
	assert.Equal(t, 20, rates.Fast)
}

func TestWalletManager_seedPhrasePreservedAndNormalized(t *testing.T) {
	m := newTestManager(t, &electrumtest.Mock{})
	assert.Equal(t, testMnemonic, m.SeedPhrase())
}

func TestNewFromSeed_noSeedPhrase(t *testing.T) {
	seed := make([]byte, 64)
	m, err := NewFromSeed(seed, &electrumtest.Mock{}, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, m.SeedPhrase())
}
