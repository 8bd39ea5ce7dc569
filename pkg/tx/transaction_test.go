package tx

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

func testAddr(b byte) types.Address {
	var h types.Hash28
	h[0] = b
	return types.KeyAddress(h)
}

func testScriptAddr(b byte) types.Address {
	var h types.Hash28
	h[0] = b
	return types.ScriptAddress(h)
}

func testAsset(policy byte, name string) types.Asset {
	var p types.Hash28
	p[0] = policy
	return types.NewAsset(p, []byte(name))
}

// richTx exercises every field of the model.
func richTx(t *testing.T) *Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder().
		AddInput(types.Outpoint{TxID: types.Hash{0x02}, Index: 1}).
		AddScriptInput(types.Outpoint{TxID: types.Hash{0x01}, Index: 0}, []byte{0xd8, 0x79, 0x80}).
		AddReferenceInput(types.Outpoint{TxID: types.Hash{0x09}}).
		AddOutput(Output{
			Address: testScriptAddr(0x07),
			Value:   2_000_000,
			Assets:  []types.AssetQuantity{{Asset: testAsset(0xaa, "\x00\x06\x43\xb0abc"), Quantity: 1}},
			Datum:   []byte{0xd8, 0x79, 0x80},
		}).
		Pay(testAddr(0x08), 5_000_000).
		Mint(testAsset(0xaa, "\x00\x06\x43\xb0abc"), 1, []byte{0x01}).
		Withdraw(types.Hash28{0x05}, 0, []byte{0x02}).
		RequireSigner(key.KeyHash()).
		SetFee(200_000)
	tx, err := b.Sign(key)
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestBuilder_CanonicalOrder(t *testing.T) {
	tx := richTx(t)
	if tx.Inputs[0].PrevOut.TxID != (types.Hash{0x01}) {
		t.Fatalf("inputs not sorted: %v", tx.Inputs)
	}
	r, ok := tx.SpendRedeemer(types.Outpoint{TxID: types.Hash{0x01}})
	if !ok || r.Index != 0 {
		t.Fatalf("spend redeemer = %+v, %v; want index 0 after sorting", r, ok)
	}
	if _, ok := tx.SpendRedeemer(types.Outpoint{TxID: types.Hash{0x02}, Index: 1}); ok {
		t.Error("key input has a redeemer")
	}
	if _, ok := tx.Redeemer(PurposeMint, 0); !ok {
		t.Error("missing mint redeemer")
	}
	if _, ok := tx.Redeemer(PurposeWithdraw, 0); !ok {
		t.Error("missing withdraw redeemer")
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestHash_ExcludesWitnesses(t *testing.T) {
	tx := richTx(t)
	h := tx.Hash()
	tx.Witnesses = nil
	if tx.Hash() != h {
		t.Fatal("hash depends on witnesses")
	}
	tx.Fee++
	if tx.Hash() == h {
		t.Fatal("hash ignores the fee")
	}
}

func TestHash_CoversScriptData(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tx *Transaction)
	}{
		{"datum", func(tx *Transaction) { tx.Outputs[0].Datum = []byte{0x09} }},
		{"script", func(tx *Transaction) { tx.Outputs[0].Script = []byte{0x4d} }},
		{"redeemer", func(tx *Transaction) { tx.Redeemers[0].Data = []byte{0x09} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := richTx(t)
			h := tx.Hash()
			tt.mutate(tx)
			if tx.Hash() == h {
				t.Fatalf("hash ignores the %s", tt.name)
			}
			if err := tx.VerifySignatures(); !errors.Is(err, ErrInvalidSig) {
				t.Fatalf("signature still valid after changing the %s: %v", tt.name, err)
			}
		})
	}
}

func TestBytes_RoundTrip(t *testing.T) {
	tx := richTx(t)
	b := tx.Bytes()
	got, err := FromBytes(b)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if !bytes.Equal(got.Bytes(), b) {
		t.Fatal("re-encoding changed bytes")
	}
	if !bytes.Equal(got.Outputs[0].Datum, tx.Outputs[0].Datum) {
		t.Errorf("datum = %x, want %x", got.Outputs[0].Datum, tx.Outputs[0].Datum)
	}
	for i, r := range tx.Redeemers {
		if !bytes.Equal(got.Redeemers[i].Data, r.Data) {
			t.Errorf("redeemer %d = %x, want %x", i, got.Redeemers[i].Data, r.Data)
		}
	}
	if len(got.Witnesses) != 1 || !bytes.Equal(got.Witnesses[0].PubKey, tx.Witnesses[0].PubKey) {
		t.Error("witness lost through encoding")
	}
	if got.Hash() != tx.Hash() {
		t.Fatal("hash changed through encoding")
	}
	if err := got.VerifySignatures(); err != nil {
		t.Fatalf("decoded signatures: %v", err)
	}

	fromHex, err := FromHex(tx.Hex())
	if err != nil || fromHex.Hash() != tx.Hash() {
		t.Fatalf("FromHex = %v", err)
	}
	if _, err := FromBytes([]byte{0x01}); err == nil {
		t.Fatal("FromBytes accepted garbage")
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	tx := richTx(t)
	data, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Transaction
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Hash() != tx.Hash() {
		t.Fatalf("hash changed through JSON:\n%s", data)
	}
	if err := got.VerifySignatures(); err != nil {
		t.Fatalf("signatures lost: %v", err)
	}
}

func TestSign_ReplacesSameKey(t *testing.T) {
	key, _ := crypto.GenerateKey()
	tx := NewBuilder().AddInput(types.Outpoint{TxID: types.Hash{1}}).Pay(testAddr(1), 1).Build()
	if err := tx.Sign(key); err != nil {
		t.Fatal(err)
	}
	if err := tx.Sign(key); err != nil {
		t.Fatal(err)
	}
	if len(tx.Witnesses) != 1 {
		t.Fatalf("witnesses = %d, want 1", len(tx.Witnesses))
	}
	if !tx.SignedBy(key.KeyHash()) {
		t.Fatal("SignedBy = false")
	}
}

func TestTotals(t *testing.T) {
	tx := &Transaction{
		Outputs:     []Output{{Value: 3}, {Value: 4}},
		Withdrawals: []Withdrawal{{Amount: 5}, {Amount: 6}},
	}
	if v, err := tx.TotalOutputValue(); err != nil || v != 7 {
		t.Errorf("TotalOutputValue = %d, %v", v, err)
	}
	if v, err := tx.TotalWithdrawals(); err != nil || v != 11 {
		t.Errorf("TotalWithdrawals = %d, %v", v, err)
	}
	tx.Outputs = append(tx.Outputs, Output{Value: ^uint64(0)})
	if _, err := tx.TotalOutputValue(); err == nil {
		t.Error("expected overflow")
	}
}

func TestMintPolicies(t *testing.T) {
	tx := NewBuilder().
		Mint(testAsset(0x02, "b"), 1, nil).
		Mint(testAsset(0x01, "a"), 1, nil).
		Mint(testAsset(0x02, "c"), -1, nil).
		Build()
	policies := tx.MintPolicies()
	if len(policies) != 2 || policies[0][0] != 0x01 || policies[1][0] != 0x02 {
		t.Fatalf("MintPolicies = %v", policies)
	}
	if len(tx.Mint) != 3 || tx.Mint[0].Asset.Policy[0] != 0x01 {
		t.Fatalf("Mint not sorted: %v", tx.Mint)
	}
}
