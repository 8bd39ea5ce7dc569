package tx

import (
	"testing"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

func TestFeeParams_Fee(t *testing.T) {
	p := FeeParams{MinFeeA: 44, MinFeeB: 155_381, PerRedeemer: 100_000}
	tests := []struct {
		name      string
		size      int
		redeemers int
		want      uint64
	}{
		{"empty", 0, 0, 155_381},
		{"300 bytes", 300, 0, 155_381 + 44*300},
		{"with scripts", 1000, 3, 155_381 + 44*1000 + 300_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Fee(tt.size, tt.redeemers); got != tt.want {
				t.Errorf("Fee(%d, %d) = %d, want %d", tt.size, tt.redeemers, got, tt.want)
			}
		})
	}
}

func TestWitnessSize_MatchesEncoding(t *testing.T) {
	key, _ := crypto.GenerateKey()
	tx := NewBuilder().AddInput(types.Outpoint{TxID: types.Hash{1}}).Pay(testAddr(1), 1).Build()
	unsigned := len(tx.Bytes())
	if err := tx.Sign(key); err != nil {
		t.Fatal(err)
	}
	if got := len(tx.Bytes()) - unsigned; got != WitnessSize {
		t.Fatalf("witness adds %d bytes, WitnessSize = %d", got, WitnessSize)
	}
}

func TestRequiredFee_CountsMissingWitnesses(t *testing.T) {
	key, _ := crypto.GenerateKey()
	p := FeeParams{MinFeeA: 1}
	tx := NewBuilder().
		AddInput(types.Outpoint{TxID: types.Hash{1}}).
		Pay(testAddr(1), 1).
		RequireSigner(key.KeyHash()).
		Build()
	before := RequiredFee(tx, p)
	if err := tx.Sign(key); err != nil {
		t.Fatal(err)
	}
	if after := RequiredFee(tx, p); after != before {
		t.Fatalf("RequiredFee changed after signing: %d -> %d", before, after)
	}
}
