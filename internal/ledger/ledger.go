// Package ledger defines the ledger collaborators a mint batch talks to:
// UTXO and parameter queries, transaction evaluation and submission.
package ledger

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Params are the ledger protocol parameters a batch needs.
type Params struct {
	Fee tx.FeeParams `json:"fee"`
	// MinUTxO is the least lovelace any output may carry.
	MinUTxO uint64 `json:"minUtxo"`
	// Slot is the ledger's current slot.
	Slot uint64 `json:"slot"`
}

// Querier reads ledger state.
type Querier interface {
	UTXOsAt(ctx context.Context, addr types.Address) ([]*utxo.UTXO, error)
	UTXOsWithAsset(ctx context.Context, asset types.Asset) ([]*utxo.UTXO, error)
	Params(ctx context.Context) (Params, error)
}

// Submitter hands a signed transaction to the ledger.
type Submitter interface {
	Submit(ctx context.Context, transaction *tx.Transaction) (types.Hash, error)
}

// Evaluator runs every script of a transaction without applying it and
// returns the scripts' trace logs.
type Evaluator interface {
	Evaluate(ctx context.Context, transaction *tx.Transaction) ([]string, error)
}

// Ledger is the full collaborator surface.
type Ledger interface {
	Querier
	Submitter
	Evaluator
}

// NetworkFetchError reports a failed collaborator query.
type NetworkFetchError struct {
	Op  string
	Err error
}

func (e *NetworkFetchError) Error() string {
	return fmt.Sprintf("ledger fetch %s: %v", e.Op, e.Err)
}

func (e *NetworkFetchError) Unwrap() error {
	return e.Err
}

// FetchError wraps err as a *NetworkFetchError for op, passing nil through.
func FetchError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &NetworkFetchError{Op: op, Err: err}
}
