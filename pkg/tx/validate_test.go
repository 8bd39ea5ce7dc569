package tx

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// validTx creates a minimal valid signed transaction for testing.
func validTx(t *testing.T) *Transaction {
	t.Helper()
	key, _ := crypto.GenerateKey()
	tx, err := NewBuilder().
		AddInput(types.Outpoint{TxID: types.Hash{0x01}, Index: 0}).
		Pay(testAddr(0x01), 1000).
		Sign(key)
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestValidate_Valid(t *testing.T) {
	if err := validTx(t).Validate(); err != nil {
		t.Errorf("valid tx should pass: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	op1 := types.Outpoint{TxID: types.Hash{0x01}}
	op2 := types.Outpoint{TxID: types.Hash{0x02}}
	out := Output{Address: testAddr(1), Value: 1000}

	tests := []struct {
		name   string
		mutate func(tx *Transaction)
		want   error
	}{
		{"no inputs", func(tx *Transaction) { tx.Inputs = nil }, ErrNoInputs},
		{"no outputs", func(tx *Transaction) { tx.Outputs = nil }, ErrNoOutputs},
		{"duplicate input", func(tx *Transaction) { tx.Inputs = []Input{{PrevOut: op1}, {PrevOut: op1}} }, ErrDuplicateInput},
		{"unsorted inputs", func(tx *Transaction) { tx.Inputs = []Input{{PrevOut: op2}, {PrevOut: op1}} }, ErrInputOrder},
		{"reference is spent", func(tx *Transaction) { tx.ReferenceInputs = []types.Outpoint{op1} }, ErrReferenceIsSpent},
		{"duplicate reference", func(tx *Transaction) { tx.ReferenceInputs = []types.Outpoint{op2, op2} }, ErrDuplicateReference},
		{"zero output", func(tx *Transaction) { tx.Outputs[0].Value = 0 }, ErrZeroOutput},
		{"zero address", func(tx *Transaction) { tx.Outputs[0].Address = types.Address{} }, ErrInvalidAddress},
		{"negative asset", func(tx *Transaction) {
			tx.Outputs[0].Assets = []types.AssetQuantity{{Asset: testAsset(1, "a"), Quantity: -1}}
		}, ErrNonPositiveAsset},
		{"datum too large", func(tx *Transaction) { tx.Outputs[0].Datum = make([]byte, MaxDatumSize+1) }, ErrDatumTooLarge},
		{"script too large", func(tx *Transaction) { tx.Outputs[0].Script = make([]byte, MaxScriptSize+1) }, ErrScriptTooLarge},
		{"output overflow", func(tx *Transaction) {
			tx.Outputs = []Output{{Address: testAddr(1), Value: ^uint64(0)}, out}
		}, ErrOutputOverflow},
		{"too many outputs", func(tx *Transaction) { tx.Outputs = make([]Output, MaxTxOutputs+1) }, ErrTooManyOutputs},
		{"zero mint", func(tx *Transaction) { tx.Mint = []types.AssetQuantity{{Asset: testAsset(1, "a")}} }, ErrZeroMint},
		{"unsorted mint", func(tx *Transaction) {
			tx.Mint = []types.AssetQuantity{{Asset: testAsset(2, "a"), Quantity: 1}, {Asset: testAsset(1, "a"), Quantity: 1}}
		}, ErrMintOrder},
		{"unsorted withdrawals", func(tx *Transaction) {
			tx.Withdrawals = []Withdrawal{{Script: types.Hash28{2}}, {Script: types.Hash28{1}}}
		}, ErrWithdrawalOrder},
		{"redeemer out of range", func(tx *Transaction) {
			tx.Redeemers = []Redeemer{{Purpose: PurposeSpend, Index: 1}}
		}, ErrRedeemerIndex},
		{"mint redeemer without mint", func(tx *Transaction) {
			tx.Redeemers = []Redeemer{{Purpose: PurposeMint, Index: 0}}
		}, ErrRedeemerIndex},
		{"duplicate redeemer", func(tx *Transaction) {
			tx.Redeemers = []Redeemer{{Purpose: PurposeSpend}, {Purpose: PurposeSpend}}
		}, ErrDuplicateRedeemer},
		{"unknown purpose", func(tx *Transaction) { tx.Redeemers = []Redeemer{{Purpose: 9}} }, ErrUnknownPurpose},
		{"missing pubkey", func(tx *Transaction) { tx.Witnesses[0].PubKey = nil }, ErrMissingPubKey},
		{"missing signature", func(tx *Transaction) { tx.Witnesses[0].Signature = nil }, ErrMissingSig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTx(t)
			tt.mutate(tx)
			if err := tx.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidate_TooManyInputs(t *testing.T) {
	tx := validTx(t)
	tx.Inputs = nil
	for i := 0; i <= MaxTxInputs; i++ {
		tx.Inputs = append(tx.Inputs, Input{PrevOut: types.Outpoint{TxID: types.Hash{0x01}, Index: uint32(i)}})
	}
	if err := tx.Validate(); !errors.Is(err, ErrTooManyInputs) {
		t.Errorf("expected ErrTooManyInputs, got: %v", err)
	}
}

func TestVerifySignatures(t *testing.T) {
	tx := validTx(t)
	if err := tx.VerifySignatures(); err != nil {
		t.Fatalf("VerifySignatures: %v", err)
	}

	tx.Outputs[0].Value++
	if err := tx.VerifySignatures(); !errors.Is(err, ErrInvalidSig) {
		t.Errorf("modified tx: expected ErrInvalidSig, got: %v", err)
	}
}
