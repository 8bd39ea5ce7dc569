package tx

// WitnessSize is the encoded size of one witness: a 33-byte compressed
// public key and a 64-byte Schnorr signature in a two-element array.
const WitnessSize = 1 + (2 + 33) + (2 + 64)

// FeeParams are the ledger's linear fee coefficients.
type FeeParams struct {
	// MinFeeA is charged per byte of the encoded transaction.
	MinFeeA uint64 `json:"minFeeA" toml:"min_fee_a"`
	// MinFeeB is charged once per transaction.
	MinFeeB uint64 `json:"minFeeB" toml:"min_fee_b"`
	// PerRedeemer is charged for every script execution.
	PerRedeemer uint64 `json:"perRedeemer" toml:"per_redeemer"`
}

// Fee returns the fee for a transaction of size bytes running redeemers scripts.
func (p FeeParams) Fee(size, redeemers int) uint64 {
	return p.MinFeeB + p.MinFeeA*uint64(size) + p.PerRedeemer*uint64(redeemers)
}

// EstimatedSize returns the encoded size of the transaction once
// extraWitnesses more witnesses are attached.
func EstimatedSize(transaction *Transaction, extraWitnesses int) int {
	return len(transaction.Bytes()) + extraWitnesses*WitnessSize
}

// RequiredFee returns the minimum fee for a fully built transaction,
// counting a witness for every required signer not yet signed.
func RequiredFee(transaction *Transaction, params FeeParams) uint64 {
	missing := 0
	for _, s := range transaction.RequiredSigners {
		if !transaction.SignedBy(s) {
			missing++
		}
	}
	return params.Fee(EstimatedSize(transaction, missing), len(transaction.Redeemers))
}
