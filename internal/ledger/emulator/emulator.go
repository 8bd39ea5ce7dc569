// Package emulator is an in-process ledger for development and tests. It
// keeps a UTXO set in a storage.DB, validates and applies transactions,
// and runs the handle validators the real ledger would run.
package emulator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/handlemint/internal/ledger"
	"github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/internal/storage"
	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/plutus"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Emulator errors.
var (
	ErrBelowMinUTxO = errors.New("output below minimum lovelace")
	ErrNoRedeemer   = errors.New("redeemer does not address a script")
)

var slotKey = []byte("m/slot")

// DefaultParams are the protocol parameters of a fresh emulator.
var DefaultParams = ledger.Params{
	Fee:     tx.FeeParams{MinFeeA: 44, MinFeeB: 155_381, PerRedeemer: 50_000},
	MinUTxO: 1_000_000,
}

// Emulator implements ledger.Querier, ledger.Submitter, ledger.Evaluator
// and scripts.Registry. Every applied transaction advances the slot by one.
type Emulator struct {
	mu       sync.Mutex
	db       storage.DB
	utxos    *utxo.Store
	registry *scripts.Store
	params   ledger.Params
	slot     uint64
}

var (
	_ ledger.Ledger    = (*Emulator)(nil)
	_ scripts.Registry = (*Emulator)(nil)
)

// New opens an emulator on db, resuming at its recorded slot.
func New(db storage.DB, params ledger.Params) (*Emulator, error) {
	e := &Emulator{
		db:       db,
		utxos:    utxo.NewStore(db),
		registry: scripts.NewStore(db),
		params:   params,
	}
	raw, err := db.Get(slotKey)
	switch {
	case err == nil && len(raw) == 8:
		e.slot = binary.BigEndian.Uint64(raw)
	case err == nil:
		return nil, fmt.Errorf("emulator slot: bad record of %d bytes", len(raw))
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("emulator slot: %w", err)
	}
	return e, nil
}

// Params returns the protocol parameters at the current slot.
func (e *Emulator) Params(ctx context.Context) (ledger.Params, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Params{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.params
	p.Slot = e.slot
	return p, nil
}

// UTXOsAt returns the unspent outputs locked by addr.
func (e *Emulator) UTXOsAt(ctx context.Context, addr types.Address) ([]*utxo.UTXO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.utxos.GetByAddress(addr)
}

// UTXOsWithAsset returns the unspent outputs holding asset.
func (e *Emulator) UTXOsWithAsset(ctx context.Context, asset types.Asset) ([]*utxo.UTXO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.utxos.GetByAsset(asset)
}

// UTXO returns the unspent output at op.
func (e *Emulator) UTXO(op types.Outpoint) (*utxo.UTXO, error) {
	return e.utxos.Get(op)
}

// Digest returns the authenticated digest of the whole UTXO set.
func (e *Emulator) Digest() (types.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return utxo.Commitment(e.utxos)
}

// Lookup resolves a deployed script recorded at genesis.
func (e *Emulator) Lookup(ctx context.Context, role scripts.Role) (scripts.Ref, error) {
	return e.registry.Lookup(ctx, role)
}

// Evaluate runs every script of transaction against the current UTXO set
// without applying it. Signatures and fee are not checked. The trace logs
// are returned even when a script fails.
func (e *Emulator) Evaluate(ctx context.Context, transaction *tx.Transaction) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := transaction.Validate(); err != nil {
		return nil, err
	}
	return e.evaluate(transaction)
}

// Submit validates transaction in full, runs its scripts and applies it.
func (e *Emulator) Submit(ctx context.Context, transaction *tx.Transaction) (types.Hash, error) {
	if err := ctx.Err(); err != nil {
		return types.Hash{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	fee, err := transaction.ValidateWithUTXOs(e.utxos, e.params.Fee)
	if err != nil {
		return types.Hash{}, fmt.Errorf("reject tx: %w", err)
	}
	for i, out := range transaction.Outputs {
		if out.Value < e.params.MinUTxO {
			return types.Hash{}, fmt.Errorf("reject tx: output %d: %w: %d < %d", i, ErrBelowMinUTxO, out.Value, e.params.MinUTxO)
		}
	}
	if _, err := e.evaluate(transaction); err != nil {
		return types.Hash{}, fmt.Errorf("reject tx: %w", err)
	}

	hash := transaction.Hash()
	spent := make([]types.Outpoint, len(transaction.Inputs))
	for i, in := range transaction.Inputs {
		spent[i] = in.PrevOut
	}
	if err := e.apply(spent, e.outputsOf(hash, transaction.Outputs)); err != nil {
		return types.Hash{}, err
	}

	log.Ledger.Info().
		Str("tx", hash.String()).
		Int("inputs", len(transaction.Inputs)).
		Int("outputs", len(transaction.Outputs)).
		Int("mint", len(transaction.Mint)).
		Uint64("fee", fee).
		Uint64("slot", e.slot).
		Msg("Applied transaction")
	return hash, nil
}

func (e *Emulator) outputsOf(txid types.Hash, outs []tx.Output) []*utxo.UTXO {
	created := make([]*utxo.UTXO, len(outs))
	for i, out := range outs {
		created[i] = &utxo.UTXO{
			Outpoint: types.Outpoint{TxID: txid, Index: uint32(i)},
			Output:   out,
			Slot:     e.slot + 1,
		}
	}
	return created
}

// apply commits a UTXO diff and advances the slot. Callers hold mu.
func (e *Emulator) apply(spent []types.Outpoint, created []*utxo.UTXO) error {
	if err := e.utxos.Apply(spent, created); err != nil {
		return fmt.Errorf("apply tx: %w", err)
	}
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], e.slot+1)
	if err := e.db.Put(slotKey, raw[:]); err != nil {
		return fmt.Errorf("advance slot: %w", err)
	}
	e.slot++
	return nil
}

// evaluate runs one validator per redeemer. Callers hold mu.
func (e *Emulator) evaluate(t *tx.Transaction) ([]string, error) {
	inputs := make([]*utxo.UTXO, len(t.Inputs))
	for i, in := range t.Inputs {
		u, err := e.utxos.Get(in.PrevOut)
		if err != nil {
			return nil, fmt.Errorf("input %d (%s): %w", i, in.PrevOut, tx.ErrInputNotFound)
		}
		inputs[i] = u
	}
	available := make(map[types.Hash28][]byte)
	for _, op := range t.ReferenceInputs {
		u, err := e.utxos.Get(op)
		if err != nil {
			return nil, fmt.Errorf("reference input %s: %w", op, tx.ErrReferenceNotFound)
		}
		if len(u.Output.Script) > 0 {
			available[crypto.ScriptHash(u.Output.Script)] = u.Output.Script
		}
	}

	var logs []string
	policies := t.MintPolicies()
	for _, r := range t.Redeemers {
		var hash types.Hash28
		switch r.Purpose {
		case tx.PurposeSpend:
			addr := inputs[r.Index].Output.Address
			if !addr.IsScript() {
				return logs, fmt.Errorf("spend %d: %w", r.Index, ErrNoRedeemer)
			}
			hash = addr.Hash
		case tx.PurposeMint:
			hash = policies[r.Index]
		case tx.PurposeWithdraw:
			hash = t.Withdrawals[r.Index].Script
		}

		raw, ok := available[hash]
		if !ok {
			return logs, fmt.Errorf("%s %d: %w: %s", r.Purpose, r.Index, ErrScriptNotFound, hash)
		}
		script, err := scripts.Parse(raw)
		if err != nil {
			return logs, fmt.Errorf("%s %d: %w", r.Purpose, r.Index, err)
		}
		data, err := plutus.Decode(r.Data)
		if err != nil {
			return logs, fmt.Errorf("%s %d: redeemer: %w", r.Purpose, r.Index, err)
		}
		c := &scriptContext{
			tx:       t,
			inputs:   inputs,
			purpose:  r.Purpose,
			index:    int(r.Index),
			script:   script,
			redeemer: data,
			logs:     &logs,
		}
		if err := run(c); err != nil {
			return logs, err
		}
	}
	return logs, nil
}
