// Package history implements the transfer-history reconstruction
// algorithm: per-vout classification of a watched address's
// transactions into incoming and outgoing transfers.
package history

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/coreledger/btcwallet/internal/address"
	"github.com/coreledger/btcwallet/internal/electrum"
	"github.com/coreledger/btcwallet/pkg/werrors"
)

// Direction is the classification of a Record relative to the watched
// address.
type Direction string

// Recognized directions. "change" and "unrelated" are internal
// classifications that never escape as a Record's Direction; they are
// dropped before the caller sees them.
const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
	change   Direction = "change"
	unrelated Direction = "unrelated"
)

// Record is one relevant vout from the watched address's history.
type Record struct {
	TxID      string
	Vout      uint32
	Height    int64 // 0 = mempool
	ValueSats int64
	Direction Direction
	FeeSats   *int64 // nil when a parent transaction could not be fetched
	Recipient string // the output's own address, empty if not decodable
	Owner     string // the watched address
}

// Query parameterizes get_transfers.
type Query struct {
	Direction Direction // "" or "all" for both
	Limit     int
	Skip      int
}

// Engine reconstructs transfer history for a single watched address.
type Engine struct {
	Client  electrum.Client
	Network address.Network
	Address string
}

// Get implements get_transfers: retrieve history (skipping the first
// Skip transactions), classify every vout of every remaining
// transaction, filter by direction, and stop once Limit records have
// accumulated.
func (e *Engine) Get(ctx context.Context, q Query) ([]Record, error) {
	limit := q.Limit
	if limit == 0 {
		return []Record{}, nil
	}

	entries, err := e.Client.GetHistory(ctx, e.Address)
	if err != nil {
		return nil, werrors.NetworkFailure(err)
	}
	if q.Skip >= len(entries) {
		return []Record{}, nil
	}
	entries = entries[q.Skip:]

	cache := map[string]*wire.MsgTx{}
	records := make([]Record, 0, limit)

	for _, entry := range entries {
		tx, err := e.fetch(ctx, cache, entry.TxID)
		if err != nil {
			return nil, werrors.NetworkFailure(err)
		}

		totalInput, isOutgoingTx, inputsResolved := e.resolveInputs(ctx, cache, tx)

		var fee *int64
		if totalInput > 0 {
			totalOutput := int64(0)
			for _, out := range tx.TxOut {
				totalOutput += out.Value
			}
			f := totalInput - totalOutput
			fee = &f
		}
		if !inputsResolved {
			fee = nil
		}

		for vout, out := range tx.TxOut {
			recipient, _ := address.ScriptToAddress(out.PkScript, e.Network)
			toSelf := recipient == e.Address

			var dir Direction
			switch {
			case toSelf && !isOutgoingTx:
				dir = Incoming
			case !toSelf && isOutgoingTx:
				dir = Outgoing
			case toSelf && isOutgoingTx:
				dir = change
			default:
				dir = unrelated
			}

			if dir != Incoming && dir != Outgoing {
				continue
			}
			if q.Direction != "" && q.Direction != "all" && q.Direction != dir {
				continue
			}

			records = append(records, Record{
				TxID:      entry.TxID,
				Vout:      uint32(vout),
				Height:    entry.Height,
				ValueSats: out.Value,
				Direction: dir,
				FeeSats:   fee,
				Recipient: recipient,
				Owner:     e.Address,
			})

			if len(records) == limit {
				return records, nil
			}
		}
	}

	return records, nil
}

// resolveInputs sums the value of every input's previous output and
// reports whether any previous output pays the watched address. If any
// previous output cannot be fetched, inputsResolved is false and the
// missing input contributes 0 to the sum without being allowed to mark
// the transaction outgoing.
func (e *Engine) resolveInputs(ctx context.Context, cache map[string]*wire.MsgTx, tx *wire.MsgTx) (totalInput int64, isOutgoingTx bool, inputsResolved bool) {
	inputsResolved = true

	for _, in := range tx.TxIn {
		prevTxID := in.PreviousOutPoint.Hash.String()
		prevTx, err := e.fetch(ctx, cache, prevTxID)
		if err != nil {
			inputsResolved = false
			continue
		}

		vout := in.PreviousOutPoint.Index
		if int(vout) >= len(prevTx.TxOut) {
			inputsResolved = false
			continue
		}

		out := prevTx.TxOut[vout]
		totalInput += out.Value

		if recipient, ok := address.ScriptToAddress(out.PkScript, e.Network); ok && recipient == e.Address {
			isOutgoingTx = true
		}
	}

	return totalInput, isOutgoingTx, inputsResolved
}

func (e *Engine) fetch(ctx context.Context, cache map[string]*wire.MsgTx, txid string) (*wire.MsgTx, error) {
	if tx, ok := cache[txid]; ok {
		return tx, nil
	}
	raw, err := e.Client.GetTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}
	tx := wire.NewMsgTx(2)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("parsing transaction %s: %w", txid, err)
	}
	cache[txid] = tx
	return tx, nil
}
