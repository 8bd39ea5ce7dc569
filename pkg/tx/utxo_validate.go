package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/handlemint/pkg/types"
)

// UTXO-aware validation errors.
var (
	ErrInputNotFound     = errors.New("input UTXO not found")
	ErrReferenceNotFound = errors.New("reference input not found")
	ErrInsufficientFee   = errors.New("insufficient fee")
	ErrInputOverflow     = errors.New("input values overflow")
	ErrValueNotConserved = errors.New("value not conserved")
	ErrAssetsNotBalanced = errors.New("assets not balanced")
	ErrMissingWitness    = errors.New("missing witness")
	ErrMissingRedeemer   = errors.New("missing redeemer")
)

// UTXOProvider provides read-only access to the UTXO set for validation.
type UTXOProvider interface {
	GetUTXO(outpoint types.Outpoint) (*Output, error)
	HasUTXO(outpoint types.Outpoint) bool
}

// ValidateWithUTXOs performs full validation of a transaction against the
// UTXO set. It checks that every input and reference input exists, that
// key-locked inputs and required signers are witnessed, that every script
// input, mint policy and withdrawal has a redeemer, that signatures are
// valid, that value and assets balance, and that the declared fee covers
// the minimum. Script execution is left to the caller. Returns the fee.
func (tx *Transaction) ValidateWithUTXOs(provider UTXOProvider, params FeeParams) (uint64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	signers := make(map[types.Hash28]bool, len(tx.Witnesses))
	for _, s := range tx.Signers() {
		signers[s] = true
	}

	var totalInput uint64
	inputAssets := make(types.Bundle)
	for i, in := range tx.Inputs {
		if !provider.HasUTXO(in.PrevOut) {
			return 0, fmt.Errorf("input %d (%s): %w", i, in.PrevOut, ErrInputNotFound)
		}
		prev, err := provider.GetUTXO(in.PrevOut)
		if err != nil {
			return 0, fmt.Errorf("input %d: %w", i, err)
		}

		switch prev.Address.Type {
		case types.ScriptTypeP2PKH:
			if !signers[prev.Address.Hash] {
				return 0, fmt.Errorf("input %d (%s): %w for key %s", i, in.PrevOut, ErrMissingWitness, prev.Address.Hash)
			}
		case types.ScriptTypeP2SH:
			if _, ok := tx.Redeemer(PurposeSpend, i); !ok {
				return 0, fmt.Errorf("input %d (%s): %w", i, in.PrevOut, ErrMissingRedeemer)
			}
		}

		if totalInput > math.MaxUint64-prev.Value {
			return 0, fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
		totalInput += prev.Value
		inputAssets.Merge(types.BundleOf(prev.Assets))
	}

	for i, ref := range tx.ReferenceInputs {
		if !provider.HasUTXO(ref) {
			return 0, fmt.Errorf("reference input %d (%s): %w", i, ref, ErrReferenceNotFound)
		}
	}
	for i := range tx.MintPolicies() {
		if _, ok := tx.Redeemer(PurposeMint, i); !ok {
			return 0, fmt.Errorf("mint policy %d: %w", i, ErrMissingRedeemer)
		}
	}
	for i := range tx.Withdrawals {
		if _, ok := tx.Redeemer(PurposeWithdraw, i); !ok {
			return 0, fmt.Errorf("withdrawal %d: %w", i, ErrMissingRedeemer)
		}
	}
	for _, s := range tx.RequiredSigners {
		if !signers[s] {
			return 0, fmt.Errorf("required signer %s: %w", s, ErrMissingWitness)
		}
	}

	if err := tx.VerifySignatures(); err != nil {
		return 0, err
	}

	withdrawn, err := tx.TotalWithdrawals()
	if err != nil {
		return 0, err
	}
	totalOutput, err := tx.TotalOutputValue()
	if err != nil {
		return 0, fmt.Errorf("output overflow: %w", err)
	}
	if totalInput > math.MaxUint64-withdrawn || totalOutput > math.MaxUint64-tx.Fee {
		return 0, ErrInputOverflow
	}
	if totalInput+withdrawn != totalOutput+tx.Fee {
		return 0, fmt.Errorf("%w: inputs=%d withdrawals=%d outputs=%d fee=%d",
			ErrValueNotConserved, totalInput, withdrawn, totalOutput, tx.Fee)
	}

	produced := tx.OutputAssets()
	consumed := inputAssets
	consumed.Merge(types.BundleOf(tx.Mint))
	if !consumed.Equal(produced) || consumed.HasNegative() {
		return 0, fmt.Errorf("%w: consumed+minted %v, produced %v", ErrAssetsNotBalanced, consumed.Sorted(), produced.Sorted())
	}

	if minFee := RequiredFee(tx, params); tx.Fee < minFee {
		return 0, fmt.Errorf("%w: fee=%d, required=%d", ErrInsufficientFee, tx.Fee, minFee)
	}
	return tx.Fee, nil
}
