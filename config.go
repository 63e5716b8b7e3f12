package btcwallet

import (
	"fmt"

	"github.com/coreledger/btcwallet/internal/address"
	"github.com/coreledger/btcwallet/internal/logging"
	"github.com/coreledger/btcwallet/pkg/werrors"
)

// Config is the WalletManager's configuration, matching the public
// library surface of §6.1 exactly.
type Config struct {
	Host     string          // default "electrum.blockstream.info"
	Port     int             // default 50001
	Protocol string          // "tcp" or "ssl", default "tcp"
	Network  address.Network // default Bitcoin
	Bip      int             // 44 or 84, default 84

	// FeeRatesURL overrides the default fee-rate convenience endpoint
	// queried by get_fee_rates. Empty uses DefaultFeeRatesURL.
	FeeRatesURL string

	// Logger receives the WalletManager's diagnostic events: account
	// derivation (debug) and failed fee-rate requests (error). Electrum
	// calls and transaction building are not logged. Nil disables
	// logging entirely.
	Logger *logging.Logger
}

// DefaultFeeRatesURL is the fee-rate convenience endpoint queried by
// get_fee_rates when Config.FeeRatesURL is unset.
const DefaultFeeRatesURL = "https://mempool.space/api/v1/fees/recommended"

// DefaultConfig returns the configuration defaults from §6.1.
func DefaultConfig() Config {
	return Config{
		Host:     "electrum.blockstream.info",
		Port:     50001,
		Protocol: "tcp",
		Network:  address.Bitcoin,
		Bip:      84,
	}
}

// withDefaults fills zero-value fields of cfg with DefaultConfig and
// validates Bip.
func withDefaults(cfg Config) (Config, error) {
	d := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = d.Host
	}
	if cfg.Port == 0 {
		cfg.Port = d.Port
	}
	if cfg.Protocol == "" {
		cfg.Protocol = d.Protocol
	}
	if cfg.Network == "" {
		cfg.Network = d.Network
	}
	if cfg.Bip == 0 {
		cfg.Bip = d.Bip
	}
	if cfg.Bip != 44 && cfg.Bip != 84 {
		return Config{}, werrors.New(werrors.KindUnsupportedBip, fmt.Sprintf("bip %d is not 44 or 84", cfg.Bip))
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	return cfg, nil
}
