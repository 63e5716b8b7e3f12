// Package txbuilder implements UTXO-driven P2WPKH transaction
// construction: UTXO gathering, iterative fee/vsize sizing, change
// output placement, and BIP-143 segwit signing.
package txbuilder

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/coreledger/btcwallet/internal/address"
	"github.com/coreledger/btcwallet/internal/electrum"
	"github.com/coreledger/btcwallet/pkg/werrors"
)

// DustLimit is the minimum spendable output value, in satoshis.
const DustLimit = 546

// MinFeeSats is the fee floor that protects against absurdly small
// vsize estimates.
const MinFeeSats = 141

const txVersion = 2

// Result is the outcome of building (and, unless quoting, broadcasting)
// a transaction.
type Result struct {
	TxID    string
	FeeSats int64
	RawHex  string // consensus-serialized signed (or placeholder-witness) transaction
}

// Builder constructs and signs transactions spent from a single
// account's own P2WPKH address.
type Builder struct {
	Client         electrum.Client
	Network        address.Network
	OwnAddress     string
	OwnProgram     []byte // 20-byte witness program (hash160 of the account pubkey)
	PrivateKey     []byte // 32 bytes
	PublicKey      []byte // 33 bytes, compressed
}

type selectedInput struct {
	utxo     electrum.UTXO
	value    int64
	pkScript []byte
}

// Send performs the full send_transaction contract: precondition
// checks, fee-rate fetch, UTXO gathering, iterative sizing, signing,
// finalization, and broadcast.
func (b *Builder) Send(ctx context.Context, to string, valueSats int64) (*Result, error) {
	res, err := b.plan(ctx, to, valueSats, true)
	if err != nil {
		return nil, err
	}

	txid, err := b.Client.Broadcast(ctx, res.RawHex)
	if err != nil {
		return nil, werrors.NetworkFailure(err)
	}
	res.TxID = txid
	return res, nil
}

// Quote performs steps 1-7 of send_transaction (everything short of
// broadcast) and returns the computed fee.
func (b *Builder) Quote(ctx context.Context, to string, valueSats int64) (int64, error) {
	res, err := b.plan(ctx, to, valueSats, true)
	if err != nil {
		return 0, err
	}
	return res.FeeSats, nil
}

// QuoteReadOnly estimates the fee a send would pay without requiring
// (or disclosing) key material: it follows the same UTXO-gathering and
// fee-iteration steps but substitutes a fixed-size placeholder witness
// in place of a real signature when measuring virtual size. Used by the
// read-only account variant, which has no private key to sign with.
func (b *Builder) QuoteReadOnly(ctx context.Context, to string, valueSats int64) (int64, error) {
	res, err := b.plan(ctx, to, valueSats, false)
	if err != nil {
		return 0, err
	}
	return res.FeeSats, nil
}

// plan runs preconditions through finalization (steps 1-7) without
// broadcasting. When sign is false, inputs receive a fixed-size
// placeholder witness instead of a real signature.
func (b *Builder) plan(ctx context.Context, to string, valueSats int64, sign bool) (*Result, error) {
	if valueSats <= DustLimit {
		return nil, werrors.New(werrors.KindBelowDustLimit, fmt.Sprintf("value %d does not exceed dust limit %d", valueSats, DustLimit))
	}

	recipientProgram, err := address.Decode(to, b.Network)
	if err != nil {
		return nil, err
	}
	recipientScript, err := address.OutputScript(recipientProgram)
	if err != nil {
		return nil, fmt.Errorf("building recipient script: %w", err)
	}
	ownScript, err := address.OutputScript(b.OwnProgram)
	if err != nil {
		return nil, fmt.Errorf("building own script: %w", err)
	}

	rawRate, err := b.Client.EstimateFee(ctx, 1)
	if err != nil {
		return nil, werrors.NetworkFailure(err)
	}
	rate := rawRate
	if rate < 1 {
		rate = 1
	}

	unspent, err := b.Client.ListUnspent(ctx, b.OwnAddress)
	if err != nil {
		return nil, werrors.NetworkFailure(err)
	}
	if len(unspent) == 0 {
		return nil, werrors.New(werrors.KindNoUnspentOutputs, "no unspent outputs for account address")
	}

	parentCache := map[string]*wire.MsgTx{}
	var selected []selectedInput
	var sum int64
	next := 0

	takeNext := func() error {
		if next >= len(unspent) {
			return werrors.New(werrors.KindInsufficientBalance, "utxo set cannot cover value plus fee")
		}
		u := unspent[next]
		next++
		parent, err := b.fetchParent(ctx, parentCache, u.TxID)
		if err != nil {
			return err
		}
		if int(u.Vout) >= len(parent.TxOut) {
			return fmt.Errorf("vout %d out of range for tx %s", u.Vout, u.TxID)
		}
		out := parent.TxOut[u.Vout]
		selected = append(selected, selectedInput{utxo: u, value: out.Value, pkScript: out.PkScript})
		sum += out.Value
		return nil
	}

	// Step 3: gather until the recipient value alone is covered.
	for sum < valueSats {
		if err := takeNext(); err != nil {
			return nil, err
		}
	}

	var fee int64
	measuredInputs := -1 // forces a vsize measurement on the first pass
	for {
		tx, changeValue, err := b.assemble(selected, recipientScript, ownScript, valueSats, fee)
		if err != nil {
			return nil, err
		}

		if sign {
			if err := b.sign(tx, selected); err != nil {
				return nil, err
			}
		} else {
			placeholderWitness(tx)
		}

		// Step 4: re-measure vsize whenever the selected input set has
		// grown since the last measurement, not only on the very first
		// pass — expanding the UTXO set changes vsize and therefore fee.
		if len(selected) != measuredInputs {
			vsize := virtualSize(tx)
			fee = feeFromVsize(vsize, rate)
			measuredInputs = len(selected)
			continue
		}

		if sum >= valueSats+fee {
			var buf bytes.Buffer
			if err := tx.Serialize(&buf); err != nil {
				return nil, fmt.Errorf("serializing transaction: %w", err)
			}

			actualFee := sum - valueSats - changeValue
			return &Result{
				TxID:    tx.TxHash().String(),
				FeeSats: actualFee,
				RawHex:  hex.EncodeToString(buf.Bytes()),
			}, nil
		}

		if err := takeNext(); err != nil {
			return nil, err
		}
	}
}

func (b *Builder) fetchParent(ctx context.Context, cache map[string]*wire.MsgTx, txid string) (*wire.MsgTx, error) {
	if tx, ok := cache[txid]; ok {
		return tx, nil
	}
	raw, err := b.Client.GetTransaction(ctx, txid)
	if err != nil {
		return nil, werrors.NetworkFailure(err)
	}
	tx := wire.NewMsgTx(txVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("parsing parent transaction %s: %w", txid, err)
	}
	cache[txid] = tx
	return tx, nil
}

// assemble builds the unsigned (empty witness) transaction for the
// current selected input set, the given fee, and returns the change
// output's value (0 if absorbed into the fee).
func (b *Builder) assemble(selected []selectedInput, recipientScript, ownScript []byte, valueSats, fee int64) (*wire.MsgTx, int64, error) {
	tx := wire.NewMsgTx(txVersion)

	for _, in := range selected {
		hash, err := chainhash.NewHashFromStr(in.utxo.TxID)
		if err != nil {
			return nil, 0, fmt.Errorf("parsing txid %s: %w", in.utxo.TxID, err)
		}
		outpoint := wire.NewOutPoint(hash, in.utxo.Vout)
		tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))
	}

	tx.AddTxOut(wire.NewTxOut(valueSats, recipientScript))

	var sum int64
	for _, in := range selected {
		sum += in.value
	}

	change := sum - valueSats - fee
	if change > DustLimit {
		tx.AddTxOut(wire.NewTxOut(change, ownScript))
		return tx, change, nil
	}
	return tx, 0, nil
}

// sign signs every input of tx with b's private key under BIP-143,
// assuming every input spends b's own P2WPKH output.
func (b *Builder) sign(tx *wire.MsgTx, selected []selectedInput) error {
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(selected))
	for i, in := range selected {
		prevOuts[tx.TxIn[i].PreviousOutPoint] = wire.NewTxOut(in.value, in.pkScript)
	}
	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	scriptCode, err := p2pkhScriptCode(b.OwnProgram)
	if err != nil {
		return err
	}

	privKey, pubKey := btcec.PrivKeyFromBytes(b.PrivateKey)
	_ = pubKey

	for i, in := range selected {
		sigHash, err := txscript.CalcWitnessSigHash(scriptCode, sigHashes, txscript.SigHashAll, tx, i, in.value)
		if err != nil {
			return fmt.Errorf("computing sighash for input %d: %w", i, err)
		}

		sig := ecdsa.Sign(privKey, sigHash)
		witnessSig := append(sig.Serialize(), byte(txscript.SigHashAll))
		tx.TxIn[i].Witness = wire.TxWitness{witnessSig, b.PublicKey}
		tx.TxIn[i].SignatureScript = nil
	}
	return nil
}

// placeholderWitness fills every input's witness with a maximum-size
// DER signature placeholder and a compressed pubkey placeholder, for
// vsize estimation when no private key is available to sign with. A
// low-S DER-encoded secp256k1 signature is at most 72 bytes; adding the
// trailing sighash-type byte gives 73.
func placeholderWitness(tx *wire.MsgTx) {
	const placeholderSigLen = 73
	const placeholderPubKeyLen = 33
	for _, in := range tx.TxIn {
		in.Witness = wire.TxWitness{
			make([]byte, placeholderSigLen),
			make([]byte, placeholderPubKeyLen),
		}
	}
}

// p2pkhScriptCode builds the BIP-143 scriptCode for a P2WPKH input:
// the classic P2PKH template over the same 20-byte hash.
func p2pkhScriptCode(pubKeyHash []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pubKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// virtualSize implements vsize = ceil((base_size*3 + total_size) / 4).
func virtualSize(tx *wire.MsgTx) int64 {
	base := int64(tx.SerializeSizeStripped())
	total := int64(tx.SerializeSize())
	weight := base*3 + total
	return ceilDiv(weight, 4)
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// feeFromVsize implements fee = max(141, ceil(vsize*rate)).
func feeFromVsize(vsize, rate int64) int64 {
	v := big.NewInt(vsize)
	r := big.NewInt(rate)
	fee := new(big.Int).Mul(v, r)
	if fee.Cmp(big.NewInt(MinFeeSats)) < 0 {
		return MinFeeSats
	}
	return fee.Int64()
}
