// Package derivation implements BIP-32 child-key derivation and the
// BIP-84/BIP-44 account path assembly rules the wallet engine uses to
// turn a seed and a path into a signing key pair.
package derivation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/hdkeychain/v3"

	"github.com/coreledger/btcwallet/pkg/werrors"
)

// hdVersions satisfies hdkeychain.NetworkParams. The wallet engine
// never serializes extended keys to the xprv/xpub string format, so a
// single mainnet-style version pair is sufficient across all three
// configured networks (bitcoin, testnet, regtest) — only the address
// encoder's hrp varies by network.
type hdVersions struct{}

func (hdVersions) HDPrivKeyVersion() [4]byte { return [4]byte{0x04, 0x88, 0xAD, 0xE4} }
func (hdVersions) HDPubKeyVersion() [4]byte  { return [4]byte{0x04, 0x88, 0xB2, 0x1E} }

// ChildKey is the result of walking a BIP-32 path: a private key, its
// compressed public key, and enough metadata to keep deriving further
// children if ever needed.
type ChildKey struct {
	PrivateKey       []byte // 32 bytes
	PublicKey        []byte // 33 bytes, compressed
	ChainCode        []byte // 32 bytes
	ParentFingerprint uint32
	Depth            uint8
	Index            uint32
}

// Master derives the master extended key pair from a seed: {master
// private key, master chain code} = HMAC-SHA512("Bitcoin seed", seed).
func Master(seed []byte) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewMaster(seed, hdVersions{})
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}
	return key, nil
}

// Derive walks path (e.g. "m/84'/0'/0'/0/5") from the master key derived
// from seed and returns the resulting child key pair.
func Derive(seed []byte, path string) (*ChildKey, error) {
	master, err := Master(seed)
	if err != nil {
		return nil, err
	}
	return DeriveFromMaster(master, path)
}

// DeriveFromMaster walks path from an already-constructed master key.
// Callers that need to retain the master key+chain code themselves
// (see the Account data model in the secrets lifecycle design) use
// Master followed by DeriveFromMaster instead of Derive.
func DeriveFromMaster(master *hdkeychain.ExtendedKey, path string) (*ChildKey, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	key := master
	for _, idx := range indices {
		var err error
		key, err = key.ChildBIP32Std(idx)
		if err != nil {
			if errors.Is(err, hdkeychain.ErrInvalidChild) {
				return nil, werrors.Wrap(werrors.KindDerivationOutOfRange,
					"derived scalar out of range, caller should retry with the next index", err)
			}
			return nil, fmt.Errorf("deriving child key: %w", err)
		}
	}

	priv, err := key.SerializedPrivKey()
	if err != nil {
		return nil, fmt.Errorf("serializing private key: %w", err)
	}
	privCopy := make([]byte, len(priv))
	copy(privCopy, priv)

	return &ChildKey{
		PrivateKey:        privCopy,
		PublicKey:         key.SerializedPubKey(),
		ChainCode:         key.ChainCode(),
		ParentFingerprint: key.ParentFingerprint(),
		Depth:             key.Depth(),
		Index:             key.ChildIndex(),
	}, nil
}

// MasterPrivAndChainCode returns the master private key and chain code
// as two fixed 32-byte slices, for callers wiring them into a
// zero-on-dispose buffer.
func MasterPrivAndChainCode(master *hdkeychain.ExtendedKey) (priv, chainCode []byte, err error) {
	p, err := master.SerializedPrivKey()
	if err != nil {
		return nil, nil, fmt.Errorf("serializing master private key: %w", err)
	}
	privCopy := make([]byte, len(p))
	copy(privCopy, p)
	return privCopy, master.ChainCode(), nil
}

// ParsePath parses a derivation path like "m/84'/0'/0'/0/5" into the
// raw BIP-32 indices hdkeychain expects, with hardened segments (a
// trailing apostrophe) offset by hdkeychain.HardenedKeyStart.
func ParsePath(path string) ([]uint32, error) {
	segments := strings.Split(path, "/")
	if len(segments) == 0 {
		return nil, invalidPath(path)
	}

	start := 0
	if segments[0] == "m" || segments[0] == "M" {
		start = 1
	}

	indices := make([]uint32, 0, len(segments)-start)
	for _, seg := range segments[start:] {
		if seg == "" {
			return nil, invalidPath(path)
		}

		hardened := strings.HasSuffix(seg, "'") || strings.HasSuffix(seg, "h") || strings.HasSuffix(seg, "H")
		numeric := seg
		if hardened {
			numeric = seg[:len(seg)-1]
		}

		n, err := strconv.ParseUint(numeric, 10, 32)
		if err != nil {
			return nil, invalidPath(path)
		}

		idx := uint32(n)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		indices = append(indices, idx)
	}

	return indices, nil
}

// BuildAccountPath assembles the full derivation path for an account
// index: base "m/<bip>'/0'" followed by "0'/0/<index>".
func BuildAccountPath(bip int, index uint32) string {
	return fmt.Sprintf("m/%d'/0'/0'/0/%d", bip, index)
}

// BuildPath applies the base-path assembly rule to a caller-supplied
// path tail: an absolute path (starting "m/") is used verbatim; any
// other tail — with or without a leading slash — is appended to
// "m/<bip>'/0'".
func BuildPath(bip int, tail string) string {
	if strings.HasPrefix(tail, "m/") || strings.HasPrefix(tail, "M/") {
		return tail
	}
	tail = strings.TrimPrefix(tail, "/")
	return fmt.Sprintf("m/%d'/0'/%s", bip, tail)
}

func invalidPath(path string) error {
	return werrors.New(werrors.KindInvalidPath, fmt.Sprintf("malformed derivation path %q", path))
}
