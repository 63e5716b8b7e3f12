package btcwallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coreledger/btcwallet/internal/address"
	"github.com/coreledger/btcwallet/internal/derivation"
	"github.com/coreledger/btcwallet/internal/electrum"
	"github.com/coreledger/btcwallet/internal/history"
	"github.com/coreledger/btcwallet/internal/mnemonic"
	"github.com/coreledger/btcwallet/internal/secure"
	"github.com/coreledger/btcwallet/internal/txbuilder"
	"github.com/coreledger/btcwallet/pkg/werrors"
)

// FeeRates is the result of get_fee_rates, in sats/vB.
type FeeRates struct {
	Normal int
	Fast   int
}

// WalletManager is the seed-scoped account cache and factory (C7). It
// owns the seed (in a secure buffer, retained so it can derive further
// accounts on demand) and an Electrum adapter, composed rather than inherited
// per the design note against an "abstract wallet" base type.
type WalletManager struct {
	mu       sync.Mutex
	disposed bool

	seed       *secure.Bytes
	seedPhrase string // empty unless constructed from a mnemonic

	cfg    Config
	client electrum.Client

	accounts map[string]*Account // full path -> account, injective

	httpClient *http.Client
}

// NewFromMnemonic constructs a WalletManager from a BIP-39 mnemonic and
// optional passphrase.
func NewFromMnemonic(phrase, passphrase string, client electrum.Client, cfg Config) (*WalletManager, error) {
	if !mnemonic.Valid(phrase) {
		return nil, werrors.New(werrors.KindInvalidMnemonic, "mnemonic failed BIP-39 validation")
	}
	seedBytes, err := mnemonic.ToSeed(phrase, passphrase)
	if err != nil {
		return nil, err
	}
	defer secure.Wipe(seedBytes)

	m, err := newManager(seedBytes, client, cfg)
	if err != nil {
		return nil, err
	}
	m.seedPhrase = mnemonic.Normalize(phrase)
	return m, nil
}

// NewFromSeed constructs a WalletManager from raw seed bytes supplied
// directly by the caller. Ownership of rawSeed remains the caller's
// policy; this constructor copies it into a secure buffer and does not
// modify the caller's slice.
func NewFromSeed(rawSeed []byte, client electrum.Client, cfg Config) (*WalletManager, error) {
	return newManager(rawSeed, client, cfg)
}

func newManager(seedBytes []byte, client electrum.Client, cfg Config) (*WalletManager, error) {
	cfg, err := withDefaults(cfg)
	if err != nil {
		return nil, err
	}

	m := &WalletManager{
		seed:     secure.FromSlice(seedBytes),
		cfg:      cfg,
		client:   client,
		accounts: make(map[string]*Account),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	return m, nil
}

// SeedPhrase returns the normalized mnemonic this manager was
// constructed from, or "" if it was constructed from raw seed bytes.
func (m *WalletManager) SeedPhrase() string { return m.seedPhrase }

// GetAccount returns the account at base path + "0'/0/<index>",
// constructing and caching it on first access.
func (m *WalletManager) GetAccount(index int) (*Account, error) {
	path := derivation.BuildAccountPath(m.cfg.Bip, uint32(index))
	acct, err := m.getAccountByFullPath(path)
	if err != nil {
		return nil, err
	}
	acct.index = index
	return acct, nil
}

// GetAccountByPath returns the account at base path + tail, accepting a
// leading "/" as "append to base" and an absolute "m/..." path used
// verbatim.
func (m *WalletManager) GetAccountByPath(tail string) (*Account, error) {
	path := derivation.BuildPath(m.cfg.Bip, tail)
	acct, err := m.getAccountByFullPath(path)
	if err != nil {
		return nil, err
	}
	acct.index = -1
	return acct, nil
}

func (m *WalletManager) getAccountByFullPath(path string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return nil, errDisposedWallet()
	}
	if acct, ok := m.accounts[path]; ok {
		return acct, nil
	}

	m.cfg.Logger.Debug(context.Background(), "deriving account", slog.String("path", path))

	master, err := derivation.Master(m.seed.Bytes())
	if err != nil {
		return nil, err
	}
	child, err := derivation.DeriveFromMaster(master, path)
	if err != nil {
		return nil, err
	}
	masterPriv, masterChainCode, err := derivation.MasterPrivAndChainCode(master)
	if err != nil {
		return nil, err
	}

	addr, err := address.Encode(child.PublicKey, m.cfg.Network)
	if err != nil {
		return nil, err
	}
	program, err := address.Decode(addr, m.cfg.Network)
	if err != nil {
		return nil, err
	}

	// Retained per the C8 secrets-lifecycle contract even though it is
	// not consumed beyond derivation: the master key and chain code are
	// exclusively owned by the Account and zeroized on dispose, exactly
	// like the final private key and chain code.
	masterBuf := secure.New(len(masterPriv) + len(masterChainCode))
	copy(masterBuf.Bytes(), masterPriv)
	copy(masterBuf.Bytes()[len(masterPriv):], masterChainCode)
	secure.Wipe(masterPriv)
	secure.Wipe(masterChainCode)

	privBuf := secure.FromSlice(child.PrivateKey)
	secure.Wipe(child.PrivateKey)
	chainCodeBuf := secure.FromSlice(child.ChainCode)

	var pubKey [33]byte
	copy(pubKey[:], child.PublicKey)

	acct := &Account{
		path:                  path,
		network:               m.cfg.Network,
		privKey:               privBuf,
		chainCode:             chainCodeBuf,
		masterKeyAndChainCode: masterBuf,
		pubKey:                pubKey,
		address:               addr,
		client:                m.client,
		builder: &txbuilder.Builder{
			Client:     m.client,
			Network:    m.cfg.Network,
			OwnAddress: addr,
			OwnProgram: program,
			PrivateKey: privBuf.Bytes(),
			PublicKey:  pubKey[:],
		},
		history: &history.Engine{Client: m.client, Network: m.cfg.Network, Address: addr},
	}

	m.accounts[path] = acct
	return acct, nil
}

// GetFeeRates queries the external fee-rate convenience endpoint and
// maps {hourFee->normal, fastestFee->fast}.
func (m *WalletManager) GetFeeRates(ctx context.Context) (FeeRates, error) {
	m.mu.Lock()
	disposed := m.disposed
	m.mu.Unlock()
	if disposed {
		return FeeRates{}, errDisposedWallet()
	}

	url := m.cfg.FeeRatesURL
	if url == "" {
		url = DefaultFeeRatesURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FeeRates{}, fmt.Errorf("building fee rates request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.cfg.Logger.Error(ctx, "fee rates request failed", slog.String("url", url), slog.String("error", err.Error()))
		return FeeRates{}, werrors.NetworkFailure(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return FeeRates{}, werrors.NetworkFailure(fmt.Errorf("fee rates endpoint returned status %d", resp.StatusCode))
	}

	var body struct {
		FastestFee int `json:"fastestFee"`
		HourFee    int `json:"hourFee"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return FeeRates{}, fmt.Errorf("decoding fee rates response: %w", err)
	}

	return FeeRates{Normal: body.HourFee, Fast: body.FastestFee}, nil
}

// Dispose disposes every account previously handed out and marks the
// manager disposed. Idempotent.
func (m *WalletManager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true
	for _, acct := range m.accounts {
		acct.Dispose()
	}
	m.seed.Destroy()
}

func errDisposedWallet() error {
	return werrors.New(werrors.KindDisposedWallet, "wallet manager has been disposed")
}
