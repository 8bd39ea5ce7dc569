package tx

import (
	"fmt"
	"slices"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Builder constructs transactions incrementally. Redeemers are attached
// to the thing they unlock and resolved to indices by Build, after inputs,
// mint entries and withdrawals are put in canonical order.
type Builder struct {
	tx             *Transaction
	spendRedeemers map[types.Outpoint][]byte
	mintRedeemers  map[types.Hash28][]byte
	withdrawals    map[types.Hash28]withdrawal
	mint           types.Bundle
}

type withdrawal struct {
	amount   uint64
	redeemer []byte
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{
		tx:             &Transaction{Version: 1},
		spendRedeemers: make(map[types.Outpoint][]byte),
		mintRedeemers:  make(map[types.Hash28][]byte),
		withdrawals:    make(map[types.Hash28]withdrawal),
		mint:           make(types.Bundle),
	}
}

// AddInput adds a key-locked input.
func (b *Builder) AddInput(prevOut types.Outpoint) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{PrevOut: prevOut})
	return b
}

// AddScriptInput adds a script-locked input spent with redeemer.
func (b *Builder) AddScriptInput(prevOut types.Outpoint, redeemer []byte) *Builder {
	b.AddInput(prevOut)
	b.spendRedeemers[prevOut] = redeemer
	return b
}

// AddReferenceInput makes the output at op readable without spending it.
func (b *Builder) AddReferenceInput(op types.Outpoint) *Builder {
	b.tx.ReferenceInputs = append(b.tx.ReferenceInputs, op)
	return b
}

// AddOutput appends out.
func (b *Builder) AddOutput(out Output) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, out)
	return b
}

// Pay adds a plain output of value to addr.
func (b *Builder) Pay(addr types.Address, value uint64) *Builder {
	return b.AddOutput(Output{Address: addr, Value: value})
}

// Mint mints (qty > 0) or burns (qty < 0) asset. The redeemer is shared
// by every asset of the same policy; the last one given wins.
func (b *Builder) Mint(asset types.Asset, qty int64, redeemer []byte) *Builder {
	b.mint.Add(asset, qty)
	b.mintRedeemers[asset.Policy] = redeemer
	return b
}

// Withdraw draws amount from the script credential, running it with redeemer.
func (b *Builder) Withdraw(script types.Hash28, amount uint64, redeemer []byte) *Builder {
	b.withdrawals[script] = withdrawal{amount: amount, redeemer: redeemer}
	return b
}

// RequireSigner adds key to the required signers.
func (b *Builder) RequireSigner(key types.Hash28) *Builder {
	if !slices.Contains(b.tx.RequiredSigners, key) {
		b.tx.RequiredSigners = append(b.tx.RequiredSigners, key)
	}
	return b
}

// SetFee sets the declared fee.
func (b *Builder) SetFee(fee uint64) *Builder {
	b.tx.Fee = fee
	return b
}

// Build returns the constructed transaction with canonical ordering and
// resolved redeemer indices.
// Does NOT validate; call tx.Validate() separately.
func (b *Builder) Build() *Transaction {
	t := b.tx
	slices.SortFunc(t.Inputs, func(x, y Input) int { return x.PrevOut.Compare(y.PrevOut) })
	slices.SortFunc(t.RequiredSigners, types.Hash28.Compare)
	t.Mint = b.mint.Sorted()
	if len(t.Mint) == 0 {
		t.Mint = nil
	}

	t.Withdrawals = t.Withdrawals[:0]
	for script, w := range b.withdrawals {
		t.Withdrawals = append(t.Withdrawals, Withdrawal{Script: script, Amount: w.amount})
	}
	slices.SortFunc(t.Withdrawals, func(x, y Withdrawal) int { return x.Script.Compare(y.Script) })
	if len(t.Withdrawals) == 0 {
		t.Withdrawals = nil
	}

	t.Redeemers = nil
	for i, in := range t.Inputs {
		if data, ok := b.spendRedeemers[in.PrevOut]; ok {
			t.Redeemers = append(t.Redeemers, Redeemer{Purpose: PurposeSpend, Index: uint32(i), Data: data})
		}
	}
	for i, policy := range t.MintPolicies() {
		if data, ok := b.mintRedeemers[policy]; ok {
			t.Redeemers = append(t.Redeemers, Redeemer{Purpose: PurposeMint, Index: uint32(i), Data: data})
		}
	}
	for i, w := range t.Withdrawals {
		t.Redeemers = append(t.Redeemers, Redeemer{Purpose: PurposeWithdraw, Index: uint32(i), Data: b.withdrawals[w.Script].redeemer})
	}
	return t
}

// Sign builds the transaction and attaches a witness for each key.
func (b *Builder) Sign(keys ...crypto.Signer) (*Transaction, error) {
	t := b.Build()
	for i, k := range keys {
		if err := t.Sign(k); err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
	}
	return t, nil
}
