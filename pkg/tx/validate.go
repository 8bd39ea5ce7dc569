package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Structural limits.
const (
	MaxTxInputs     = 256
	MaxTxOutputs    = 256
	MaxDatumSize    = 16 * 1024
	MaxScriptSize   = 16 * 1024
	MaxRedeemerSize = 64 * 1024
)

// Validation errors.
var (
	ErrNoInputs           = errors.New("transaction has no inputs")
	ErrNoOutputs          = errors.New("transaction has no outputs")
	ErrDuplicateInput     = errors.New("duplicate input")
	ErrInputOrder         = errors.New("inputs not in canonical order")
	ErrOutputOverflow     = errors.New("output values overflow")
	ErrZeroOutput         = errors.New("output value is zero")
	ErrInvalidAddress     = errors.New("invalid output address")
	ErrNonPositiveAsset   = errors.New("output asset quantity must be positive")
	ErrZeroMint           = errors.New("mint quantity is zero")
	ErrMintOrder          = errors.New("mint entries not in canonical order")
	ErrWithdrawalOrder    = errors.New("withdrawals not in canonical order")
	ErrRedeemerIndex      = errors.New("redeemer index out of range")
	ErrDuplicateRedeemer  = errors.New("duplicate redeemer")
	ErrMissingPubKey      = errors.New("witness missing public key")
	ErrMissingSig         = errors.New("witness missing signature")
	ErrInvalidSig         = errors.New("invalid signature")
	ErrTooManyInputs      = errors.New("too many inputs")
	ErrTooManyOutputs     = errors.New("too many outputs")
	ErrDatumTooLarge      = errors.New("datum too large")
	ErrScriptTooLarge     = errors.New("reference script too large")
	ErrRedeemerTooLarge   = errors.New("redeemer too large")
	ErrReferenceIsSpent   = errors.New("reference input is also spent")
	ErrUnknownPurpose     = errors.New("unknown redeemer purpose")
	ErrDuplicateReference = errors.New("duplicate reference input")
)

// Validate checks transaction structure and basic rules.
// This does NOT check UTXO existence (that requires the UTXO set).
func (tx *Transaction) Validate() error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > MaxTxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(tx.Inputs), MaxTxInputs)
	}
	if len(tx.Outputs) > MaxTxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(tx.Outputs), MaxTxOutputs)
	}

	// Inputs must be strictly ascending, which also rules out duplicates.
	spent := make(map[types.Outpoint]bool, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if spent[in.PrevOut] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		spent[in.PrevOut] = true
		if i > 0 && tx.Inputs[i-1].PrevOut.Compare(in.PrevOut) > 0 {
			return fmt.Errorf("input %d: %w", i, ErrInputOrder)
		}
	}
	refs := make(map[types.Outpoint]bool, len(tx.ReferenceInputs))
	for i, ref := range tx.ReferenceInputs {
		if spent[ref] {
			return fmt.Errorf("reference input %d: %w", i, ErrReferenceIsSpent)
		}
		if refs[ref] {
			return fmt.Errorf("reference input %d: %w", i, ErrDuplicateReference)
		}
		refs[ref] = true
	}

	var totalOutput uint64
	for i, out := range tx.Outputs {
		if out.Value == 0 {
			return fmt.Errorf("output %d: %w", i, ErrZeroOutput)
		}
		if !out.Address.Type.Valid() || out.Address.IsZero() {
			return fmt.Errorf("output %d: %w", i, ErrInvalidAddress)
		}
		for _, a := range out.Assets {
			if a.Quantity <= 0 {
				return fmt.Errorf("output %d: %w: %s", i, ErrNonPositiveAsset, a.Asset)
			}
		}
		if len(out.Datum) > MaxDatumSize {
			return fmt.Errorf("output %d: %w: %d bytes, max %d", i, ErrDatumTooLarge, len(out.Datum), MaxDatumSize)
		}
		if len(out.Script) > MaxScriptSize {
			return fmt.Errorf("output %d: %w: %d bytes, max %d", i, ErrScriptTooLarge, len(out.Script), MaxScriptSize)
		}
		if totalOutput > math.MaxUint64-out.Value {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		totalOutput += out.Value
	}

	for i, m := range tx.Mint {
		if m.Quantity == 0 {
			return fmt.Errorf("mint %d: %w", i, ErrZeroMint)
		}
		if i > 0 && tx.Mint[i-1].Asset.Compare(m.Asset) >= 0 {
			return fmt.Errorf("mint %d: %w", i, ErrMintOrder)
		}
	}
	for i := 1; i < len(tx.Withdrawals); i++ {
		if tx.Withdrawals[i-1].Script.Compare(tx.Withdrawals[i].Script) >= 0 {
			return fmt.Errorf("withdrawal %d: %w", i, ErrWithdrawalOrder)
		}
	}

	if err := tx.validateRedeemers(); err != nil {
		return err
	}

	for i, w := range tx.Witnesses {
		if len(w.PubKey) == 0 {
			return fmt.Errorf("witness %d: %w", i, ErrMissingPubKey)
		}
		if len(w.Signature) == 0 {
			return fmt.Errorf("witness %d: %w", i, ErrMissingSig)
		}
	}
	return nil
}

func (tx *Transaction) validateRedeemers() error {
	type slot struct {
		purpose Purpose
		index   uint32
	}
	limits := map[Purpose]int{
		PurposeSpend:    len(tx.Inputs),
		PurposeMint:     len(tx.MintPolicies()),
		PurposeWithdraw: len(tx.Withdrawals),
	}
	seen := make(map[slot]bool, len(tx.Redeemers))
	for i, r := range tx.Redeemers {
		limit, ok := limits[r.Purpose]
		if !ok {
			return fmt.Errorf("redeemer %d: %w: %d", i, ErrUnknownPurpose, r.Purpose)
		}
		if int(r.Index) >= limit {
			return fmt.Errorf("redeemer %d: %w: %s %d of %d", i, ErrRedeemerIndex, r.Purpose, r.Index, limit)
		}
		s := slot{r.Purpose, r.Index}
		if seen[s] {
			return fmt.Errorf("redeemer %d: %w: %s %d", i, ErrDuplicateRedeemer, r.Purpose, r.Index)
		}
		seen[s] = true
		if len(r.Data) > MaxRedeemerSize {
			return fmt.Errorf("redeemer %d: %w", i, ErrRedeemerTooLarge)
		}
	}
	return nil
}

// VerifySignatures checks that all witness signatures are valid for this transaction.
func (tx *Transaction) VerifySignatures() error {
	hash := tx.Hash()
	for i, w := range tx.Witnesses {
		if err := crypto.Verify(hash[:], w.Signature, w.PubKey); err != nil {
			return fmt.Errorf("witness %d: %w: %w", i, ErrInvalidSig, err)
		}
	}
	return nil
}
