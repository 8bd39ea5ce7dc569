// Package tx defines the transaction model, its wire encoding and
// ledger-independent validation.
package tx

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
	"github.com/fxamacker/cbor/v2"
)

// Transaction consumes inputs, mints or burns assets, withdraws from
// script credentials and creates outputs. Inputs and withdrawals are kept
// in canonical order; redeemers address them by position.
type Transaction struct {
	_               struct{}              `cbor:",toarray"`
	Version         uint32                `json:"version"`
	Inputs          []Input               `json:"inputs"`
	ReferenceInputs []types.Outpoint      `json:"referenceInputs,omitempty"`
	Outputs         []Output              `json:"outputs"`
	Mint            []types.AssetQuantity `json:"mint,omitempty"`
	Withdrawals     []Withdrawal          `json:"withdrawals,omitempty"`
	Fee             uint64                `json:"fee"`
	RequiredSigners []types.Hash28        `json:"requiredSigners,omitempty"`
	Redeemers       []Redeemer            `json:"redeemers,omitempty"`
	Witnesses       []Witness             `json:"witnesses,omitempty"`
}

// Input references a UTXO being spent.
type Input struct {
	_       struct{}       `cbor:",toarray"`
	PrevOut types.Outpoint `json:"prevout"`
}

// Output defines a new UTXO. Datum is an inline plutus datum and Script a
// reference script made available to later transactions.
type Output struct {
	_       struct{}              `cbor:",toarray"`
	Address types.Address         `json:"address"`
	Value   uint64                `json:"value"`
	Assets  []types.AssetQuantity `json:"assets,omitempty"`
	Datum   []byte                `cbor:"datum" json:"-"`
	Script  []byte                `cbor:"script" json:"-"`
}

// Withdrawal draws Amount from the reward account of a script credential.
// Zero-amount withdrawals are used to run the script once per transaction.
type Withdrawal struct {
	_      struct{}     `cbor:",toarray"`
	Script types.Hash28 `json:"script"`
	Amount uint64       `json:"amount"`
}

// Purpose identifies what a redeemer unlocks.
type Purpose uint8

const (
	PurposeSpend Purpose = iota
	PurposeMint
	PurposeWithdraw
)

func (p Purpose) String() string {
	switch p {
	case PurposeSpend:
		return "spend"
	case PurposeMint:
		return "mint"
	case PurposeWithdraw:
		return "withdraw"
	default:
		return fmt.Sprintf("purpose(%d)", uint8(p))
	}
}

// Redeemer is the script argument for one input, policy or withdrawal.
// Index counts into Inputs, the sorted distinct mint policies or
// Withdrawals, depending on Purpose.
type Redeemer struct {
	_       struct{} `cbor:",toarray"`
	Purpose Purpose  `json:"purpose"`
	Index   uint32   `json:"index"`
	Data    []byte   `cbor:"data" json:"-"`
}

// Witness is a public key and its signature over the transaction hash.
type Witness struct {
	_         struct{} `cbor:",toarray"`
	PubKey    []byte   `cbor:"pubkey" json:"-"`
	Signature []byte   `cbor:"signature" json:"-"`
}

type outputJSON struct {
	Address types.Address         `json:"address"`
	Value   uint64                `json:"value"`
	Assets  []types.AssetQuantity `json:"assets,omitempty"`
	Datum   *string               `json:"datum,omitempty"`
	Script  *string               `json:"script,omitempty"`
}

// MarshalJSON encodes the output with hex-encoded datum and script.
func (out Output) MarshalJSON() ([]byte, error) {
	return json.Marshal(outputJSON{
		Address: out.Address,
		Value:   out.Value,
		Assets:  out.Assets,
		Datum:   hexPtr(out.Datum),
		Script:  hexPtr(out.Script),
	})
}

// UnmarshalJSON decodes an output with hex-encoded datum and script.
func (out *Output) UnmarshalJSON(data []byte) error {
	var j outputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	datum, err := unhexPtr(j.Datum)
	if err != nil {
		return fmt.Errorf("datum: %w", err)
	}
	script, err := unhexPtr(j.Script)
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}
	*out = Output{Address: j.Address, Value: j.Value, Assets: j.Assets, Datum: datum, Script: script}
	return nil
}

type redeemerJSON struct {
	Purpose Purpose `json:"purpose"`
	Index   uint32  `json:"index"`
	Data    string  `json:"data"`
}

// MarshalJSON encodes the redeemer with hex-encoded data.
func (r Redeemer) MarshalJSON() ([]byte, error) {
	return json.Marshal(redeemerJSON{Purpose: r.Purpose, Index: r.Index, Data: hex.EncodeToString(r.Data)})
}

// UnmarshalJSON decodes a redeemer with hex-encoded data.
func (r *Redeemer) UnmarshalJSON(data []byte) error {
	var j redeemerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*r = Redeemer{Purpose: j.Purpose, Index: j.Index}
	if j.Data == "" {
		return nil
	}
	b, err := hex.DecodeString(j.Data)
	if err != nil {
		return err
	}
	r.Data = b
	return nil
}

type witnessJSON struct {
	PubKey    string `json:"pubkey"`
	Signature string `json:"signature"`
}

// MarshalJSON encodes the witness with hex-encoded fields.
func (w Witness) MarshalJSON() ([]byte, error) {
	return json.Marshal(witnessJSON{PubKey: hex.EncodeToString(w.PubKey), Signature: hex.EncodeToString(w.Signature)})
}

// UnmarshalJSON decodes a witness with hex-encoded fields.
func (w *Witness) UnmarshalJSON(data []byte) error {
	var j witnessJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	pub, err := hex.DecodeString(j.PubKey)
	if err != nil {
		return err
	}
	sig, err := hex.DecodeString(j.Signature)
	if err != nil {
		return err
	}
	*w = Witness{PubKey: pub, Signature: sig}
	return nil
}

func hexPtr(b []byte) *string {
	if b == nil {
		return nil
	}
	s := hex.EncodeToString(b)
	return &s
}

func unhexPtr(s *string) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return hex.DecodeString(*s)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(fmt.Sprintf("tx: cbor enc mode: %v", err))
	}
	if decMode, err = (cbor.DecOptions{MaxArrayElements: 65536}).DecMode(); err != nil {
		panic(fmt.Sprintf("tx: cbor dec mode: %v", err))
	}
}

// Hash computes the transaction ID (BLAKE3 of the signing bytes).
// Witnesses are excluded so signing does not change the ID.
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.SigningBytes())
}

// SigningBytes returns the encoding of the transaction without witnesses.
func (tx *Transaction) SigningBytes() []byte {
	body := *tx
	body.Witnesses = nil
	b, err := encMode.Marshal(&body)
	if err != nil {
		panic(fmt.Sprintf("tx: encode body: %v", err))
	}
	return b
}

// Bytes returns the full wire encoding, witnesses included.
func (tx *Transaction) Bytes() []byte {
	b, err := encMode.Marshal(tx)
	if err != nil {
		panic(fmt.Sprintf("tx: encode: %v", err))
	}
	return b
}

// Hex returns Bytes() hex-encoded.
func (tx *Transaction) Hex() string {
	return hex.EncodeToString(tx.Bytes())
}

// FromBytes decodes a transaction produced by Bytes.
func FromBytes(b []byte) (*Transaction, error) {
	var tx Transaction
	if err := decMode.Unmarshal(b, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &tx, nil
}

// FromHex decodes a hex-encoded transaction.
func FromHex(s string) (*Transaction, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode transaction hex: %w", err)
	}
	return FromBytes(b)
}

// Outpoint returns the outpoint of output i of this transaction.
func (tx *Transaction) Outpoint(i int) types.Outpoint {
	return types.Outpoint{TxID: tx.Hash(), Index: uint32(i)}
}

// TotalOutputValue returns the sum of all output values.
// Returns an error if the sum overflows uint64.
func (tx *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range tx.Outputs {
		if total > math.MaxUint64-out.Value {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Value
	}
	return total, nil
}

// TotalWithdrawals returns the sum of all withdrawal amounts.
func (tx *Transaction) TotalWithdrawals() (uint64, error) {
	var total uint64
	for _, w := range tx.Withdrawals {
		if total > math.MaxUint64-w.Amount {
			return 0, fmt.Errorf("withdrawal overflow")
		}
		total += w.Amount
	}
	return total, nil
}

// OutputAssets returns the assets created by all outputs.
func (tx *Transaction) OutputAssets() types.Bundle {
	b := make(types.Bundle)
	for _, out := range tx.Outputs {
		b.Merge(types.BundleOf(out.Assets))
	}
	return b
}

// MintPolicies returns the distinct mint policies in ascending order.
// Mint redeemer indices count into this list.
func (tx *Transaction) MintPolicies() []types.Hash28 {
	return types.BundleOf(tx.Mint).Policies()
}

// InputIndex returns the position of op among the inputs, or -1.
func (tx *Transaction) InputIndex(op types.Outpoint) int {
	return slices.IndexFunc(tx.Inputs, func(in Input) bool { return in.PrevOut == op })
}

// Redeemer returns the redeemer for purpose at index.
func (tx *Transaction) Redeemer(purpose Purpose, index int) (Redeemer, bool) {
	for _, r := range tx.Redeemers {
		if r.Purpose == purpose && int(r.Index) == index {
			return r, true
		}
	}
	return Redeemer{}, false
}

// SpendRedeemer returns the redeemer attached to the input spending op.
func (tx *Transaction) SpendRedeemer(op types.Outpoint) (Redeemer, bool) {
	i := tx.InputIndex(op)
	if i < 0 {
		return Redeemer{}, false
	}
	return tx.Redeemer(PurposeSpend, i)
}

// Signers returns the key hashes of all witnesses.
func (tx *Transaction) Signers() []types.Hash28 {
	out := make([]types.Hash28, 0, len(tx.Witnesses))
	for _, w := range tx.Witnesses {
		out = append(out, crypto.KeyHash(w.PubKey))
	}
	return out
}

// SignedBy reports whether a witness for key is attached.
func (tx *Transaction) SignedBy(key types.Hash28) bool {
	return slices.Contains(tx.Signers(), key)
}

// Sign appends a witness by key over the transaction hash. Signing twice
// with the same key replaces the earlier witness.
func (tx *Transaction) Sign(key crypto.Signer) error {
	hash := tx.Hash()
	sig, err := key.Sign(hash[:])
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	pub := key.PublicKey()
	w := Witness{PubKey: pub, Signature: sig}
	for i := range tx.Witnesses {
		if string(tx.Witnesses[i].PubKey) == string(pub) {
			tx.Witnesses[i] = w
			return nil
		}
	}
	tx.Witnesses = append(tx.Witnesses, w)
	return nil
}
