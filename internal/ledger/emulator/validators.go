package emulator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/handle"
	"github.com/Klingon-tech/handlemint/internal/mpf"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/pkg/plutus"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Script evaluation errors.
var (
	ErrScriptNotFound = errors.New("script not found in reference inputs")
	ErrScriptFailed   = errors.New("script failed")
)

// scriptContext is what one script execution sees.
type scriptContext struct {
	tx       *tx.Transaction
	inputs   []*utxo.UTXO
	purpose  tx.Purpose
	index    int
	script   scripts.Script
	redeemer plutus.Data
	logs     *[]string
}

func (c *scriptContext) tracef(format string, args ...any) {
	*c.logs = append(*c.logs, fmt.Sprintf("%s[%s %d]: ", c.script.Kind, c.purpose, c.index)+fmt.Sprintf(format, args...))
}

func (c *scriptContext) fail(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	c.tracef("FAIL %s", msg)
	return fmt.Errorf("%w: %s %s %d: %s", ErrScriptFailed, c.script.Kind, c.purpose, c.index, msg)
}

func (c *scriptContext) withdraws(script types.Hash28) bool {
	for _, w := range c.tx.Withdrawals {
		if w.Script == script {
			return true
		}
	}
	return false
}

func (c *scriptContext) requires(key types.Hash28) bool {
	return slices.Contains(c.tx.RequiredSigners, key)
}

func (c *scriptContext) mintedUnder(policy types.Hash28) types.Bundle {
	out := make(types.Bundle)
	for _, m := range c.tx.Mint {
		if m.Asset.Policy == policy {
			out.Add(m.Asset, m.Quantity)
		}
	}
	return out
}

type validator func(c *scriptContext) error

var validators = map[scripts.Kind]struct {
	purpose tx.Purpose
	run     validator
}{
	scripts.KindState:    {tx.PurposeSpend, validateState},
	scripts.KindOrder:    {tx.PurposeSpend, validateOrder},
	scripts.KindPolicy:   {tx.PurposeMint, validatePolicy},
	scripts.KindOneShot:  {tx.PurposeMint, validateOneShot},
	scripts.KindGovernor: {tx.PurposeWithdraw, validateGovernor},
}

func run(c *scriptContext) error {
	v, ok := validators[c.script.Kind]
	if !ok {
		return c.fail("no validator")
	}
	if v.purpose != c.purpose {
		return c.fail("cannot run as %s", c.purpose)
	}
	return v.run(c)
}

// validateState lets the commitment output be spent only alongside the governor.
func validateState(c *scriptContext) error {
	gov, err := c.script.HashParam(0)
	if err != nil {
		return c.fail("%v", err)
	}
	if !c.withdraws(gov) {
		return c.fail("governor %s not invoked", gov)
	}
	c.tracef("delegated to governor")
	return nil
}

// validateOrder allows execution under the governor or cancellation by the owner.
func validateOrder(c *scriptContext) error {
	gov, err := c.script.HashParam(0)
	if err != nil {
		return c.fail("%v", err)
	}
	action, err := codec.OrderActionFromData(c.redeemer)
	if err != nil {
		return c.fail("redeemer: %v", err)
	}
	switch action {
	case codec.OrderExecute:
		if !c.withdraws(gov) {
			return c.fail("governor %s not invoked", gov)
		}
		c.tracef("execute delegated to governor")
	case codec.OrderCancel:
		req, err := codec.UnmarshalMintRequest(c.inputs[c.index].Output.Datum)
		if err != nil {
			return c.fail("order datum: %v", err)
		}
		if !c.requires(req.Owner) {
			return c.fail("cancel not signed by owner %s", req.Owner)
		}
		c.tracef("cancelled by owner")
	}
	return nil
}

// validatePolicy lets handles be minted only alongside the governor.
func validatePolicy(c *scriptContext) error {
	gov, err := c.script.HashParam(0)
	if err != nil {
		return c.fail("%v", err)
	}
	if !c.withdraws(gov) {
		return c.fail("governor %s not invoked", gov)
	}
	c.tracef("delegated to governor")
	return nil
}

// validateOneShot mints the state token in the transaction that spends the seed.
func validateOneShot(c *scriptContext) error {
	txid, err := plutus.AsBytes(c.script.Params[0], types.HashSize)
	if err != nil {
		return c.fail("seed: %v", err)
	}
	idx, err := plutus.AsUint64(c.script.Params[1])
	if err != nil {
		return c.fail("seed: %v", err)
	}
	seed := types.Outpoint{TxID: types.Hash(txid), Index: uint32(idx)}
	if c.tx.InputIndex(seed) < 0 {
		return c.fail("seed %s not spent", seed)
	}
	minted := c.mintedUnder(c.script.Hash())
	want := types.Bundle{types.NewAsset(c.script.Hash(), scripts.StateTokenName): 1}
	if !minted.Equal(want) {
		return c.fail("must mint exactly one state token")
	}
	return nil
}

// validateGovernor checks a whole batch: the commitment moves from its old
// root to the root the proofs justify and exactly the proven handles are minted.
func validateGovernor(c *scriptContext) error {
	stateAsset, err := c.script.StateAsset()
	if err != nil {
		return c.fail("%v", err)
	}

	var stateIn *utxo.UTXO
	for _, in := range c.inputs {
		if types.BundleOf(in.Output.Assets)[stateAsset] > 0 {
			if stateIn != nil {
				return c.fail("more than one commitment input")
			}
			stateIn = in
		}
	}
	if stateIn == nil {
		return c.fail("commitment input not spent")
	}
	old, err := codec.UnmarshalCommitmentRecord(stateIn.Output.Datum)
	if err != nil {
		return c.fail("old commitment: %v", err)
	}

	var stateOut *tx.Output
	for i := range c.tx.Outputs {
		out := &c.tx.Outputs[i]
		if qty := types.BundleOf(out.Assets)[stateAsset]; qty > 0 {
			if stateOut != nil || qty != 1 {
				return c.fail("state token must continue in exactly one output")
			}
			stateOut = out
		}
	}
	if stateOut == nil {
		return c.fail("state token not continued")
	}
	if stateOut.Address != stateIn.Output.Address {
		return c.fail("commitment moved to %s", stateOut.Address)
	}
	next, err := codec.UnmarshalCommitmentRecord(stateOut.Datum)
	if err != nil {
		return c.fail("new commitment: %v", err)
	}
	if !next.Governance.Equal(old.Governance) {
		return c.fail("governance changed")
	}

	red, err := codec.GovernorRedeemerFromData(c.redeemer)
	if err != nil {
		return c.fail("redeemer: %v", err)
	}
	minter := red.MinterKey()
	if !old.Governance.IsMinter(minter) {
		return c.fail("minter %s not allowed", minter)
	}
	if !c.requires(minter) {
		return c.fail("minter %s did not sign", minter)
	}

	g := old.Governance
	switch r := red.(type) {
	case codec.MintBatch:
		return c.checkMintBatch(g, old.Root, next.Root, r)
	case codec.Administrative:
		if len(c.mintedUnder(g.PolicyID)) != 0 {
			return c.fail("administrative update mints handles")
		}
		if next.Root != r.NewRoot {
			return c.fail("new root %s, redeemer says %s", next.Root, r.NewRoot)
		}
		c.tracef("administrative root %s -> %s", old.Root, next.Root)
	case codec.UpdateOnly:
		if len(c.mintedUnder(g.PolicyID)) != 0 {
			return c.fail("index update mints handles")
		}
		root := old.Root
		for i, name := range r.Names {
			if root, err = applyProof(r.Proofs[i], root, name); err != nil {
				return c.fail("proof %d (%q): %v", i, name, err)
			}
		}
		if next.Root != root {
			return c.fail("new root %s, proofs give %s", next.Root, root)
		}
		c.tracef("index update of %d names, root %s -> %s", len(r.Names), old.Root, next.Root)
	}
	return nil
}

func (c *scriptContext) checkMintBatch(g codec.Governance, oldRoot, newRoot types.Hash, r codec.MintBatch) error {
	orderAddr := types.ScriptAddress(g.OrderScript)
	refAddr := types.ScriptAddress(g.PolicyID)
	sched := g.Schedule()

	var orders []*utxo.UTXO
	for _, in := range c.inputs {
		if in.Output.Address == orderAddr {
			orders = append(orders, in)
		}
	}
	if len(orders) != len(r.Proofs) {
		return c.fail("%d orders spent, %d proofs", len(orders), len(r.Proofs))
	}

	root := oldRoot
	want := make(types.Bundle)
	var total uint64
	for i, o := range orders {
		req, err := codec.UnmarshalMintRequest(o.Output.Datum)
		if err != nil {
			return c.fail("order %s: %v", o.Outpoint, err)
		}
		if err := handle.ValidateName(req.Name); err != nil {
			return c.fail("order %s: %v", o.Outpoint, err)
		}
		price := sched.Price(req.Name)
		if o.Output.Value < price {
			return c.fail("order %s pays %d, price %d", o.Outpoint, o.Output.Value, price)
		}
		if root, err = applyProof(r.Proofs[i], root, req.Name); err != nil {
			return c.fail("proof %d (%q): %v", i, req.Name, err)
		}

		ref, user := handle.ReferenceAsset(g.PolicyID, req.Name), handle.UserAsset(g.PolicyID, req.Name)
		want.Add(ref, 1)
		want.Add(user, 1)
		if !c.paysAsset(req.Destination, user) {
			return c.fail("user token %q not sent to %s", req.Name, req.Destination)
		}
		if !c.locksReference(refAddr, ref, req.Name) {
			return c.fail("reference token %q not locked with its datum", req.Name)
		}
		total += price
	}
	if newRoot != root {
		return c.fail("new root %s, proofs give %s", newRoot, root)
	}
	if minted := c.mintedUnder(g.PolicyID); !minted.Equal(want) {
		return c.fail("minted %d assets, proofs justify %d", len(minted), len(want))
	}

	treasury, _ := sched.Split(total)
	var paid uint64
	for _, out := range c.tx.Outputs {
		if out.Address == g.TreasuryAddress {
			paid += out.Value
		}
	}
	if paid < treasury {
		return c.fail("treasury paid %d, owed %d", paid, treasury)
	}
	c.tracef("minted %d handles, root %s -> %s, treasury %d", len(orders), oldRoot, newRoot, paid)
	return nil
}

func (c *scriptContext) paysAsset(addr types.Address, asset types.Asset) bool {
	for _, out := range c.tx.Outputs {
		if out.Address == addr && types.BundleOf(out.Assets)[asset] == 1 {
			return true
		}
	}
	return false
}

func (c *scriptContext) locksReference(addr types.Address, asset types.Asset, name []byte) bool {
	for _, out := range c.tx.Outputs {
		if out.Address != addr || types.BundleOf(out.Assets)[asset] != 1 {
			continue
		}
		d, err := codec.UnmarshalHandleDatum(out.Datum)
		if err == nil && string(d.Name) == string(name) {
			return true
		}
	}
	return false
}

// applyProof checks proof excludes name under root and returns the root
// with name inserted.
func applyProof(proof mpf.Proof, root types.Hash, name []byte) (types.Hash, error) {
	excl, err := proof.Excluding(name)
	if err != nil {
		return types.Hash{}, err
	}
	if excl != root {
		return types.Hash{}, fmt.Errorf("proof excludes to %s, expected %s", excl, root)
	}
	return proof.Including(name, handle.IndexValue)
}
