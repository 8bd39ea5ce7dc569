// Package scripts describes the deployed validators of a handle protocol
// instance and keeps track of where their reference copies live.
package scripts

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/plutus"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Kind selects the validator logic a script runs.
type Kind uint64

const (
	// KindState guards the commitment output.
	KindState Kind = iota
	// KindOrder guards order outputs.
	KindOrder
	// KindPolicy is the handle minting policy.
	KindPolicy
	// KindGovernor is the withdrawal validator that checks a batch.
	KindGovernor
	// KindOneShot mints the state token once, keyed by a seed outpoint.
	KindOneShot
)

func (k Kind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindOrder:
		return "order"
	case KindPolicy:
		return "policy"
	case KindGovernor:
		return "governor"
	case KindOneShot:
		return "one-shot"
	default:
		return fmt.Sprintf("kind(%d)", uint64(k))
	}
}

// StateTokenName is the asset name of the state token.
var StateTokenName = []byte("handle_state")

// ErrMalformedScript is returned when script bytes do not describe a known validator.
var ErrMalformedScript = errors.New("malformed script")

// Script is a parameterised validator. Its bytes are the plutus encoding
// of Constr(kind, params) and its hash identifies it on the ledger.
type Script struct {
	Kind   Kind
	Params []plutus.Data
}

// ToData returns the plutus form of the script.
func (s Script) ToData() plutus.Data {
	return plutus.NewConstr(uint64(s.Kind), s.Params...)
}

// Bytes returns the script as carried in a reference output.
func (s Script) Bytes() []byte {
	return plutus.MustEncode(s.ToData())
}

// Hash returns the script hash.
func (s Script) Hash() types.Hash28 {
	return crypto.ScriptHash(s.Bytes())
}

// Address returns the address locked by the script.
func (s Script) Address() types.Address {
	return types.ScriptAddress(s.Hash())
}

// Parse decodes script bytes.
func Parse(b []byte) (Script, error) {
	d, err := plutus.Decode(b)
	if err != nil {
		return Script{}, fmt.Errorf("%w: %v", ErrMalformedScript, err)
	}
	c, ok := d.(plutus.Constr)
	if !ok || c.Index > uint64(KindOneShot) {
		return Script{}, fmt.Errorf("%w: %s", ErrMalformedScript, d)
	}
	s := Script{Kind: Kind(c.Index), Params: c.Fields}
	if want := paramCount(s.Kind); len(s.Params) != want {
		return Script{}, fmt.Errorf("%w: %s takes %d params, got %d", ErrMalformedScript, s.Kind, want, len(s.Params))
	}
	return s, nil
}

func paramCount(k Kind) int {
	switch k {
	case KindGovernor, KindOneShot:
		return 2
	default:
		return 1
	}
}

// HashParam returns parameter i as a 28-byte hash.
func (s Script) HashParam(i int) (types.Hash28, error) {
	if i >= len(s.Params) {
		return types.Hash28{}, fmt.Errorf("%w: no param %d", ErrMalformedScript, i)
	}
	b, err := plutus.AsBytes(s.Params[i], types.Hash28Size)
	if err != nil {
		return types.Hash28{}, fmt.Errorf("%w: param %d: %v", ErrMalformedScript, i, err)
	}
	return types.Hash28(b), nil
}

// StateAsset returns the state token a governor script watches.
func (s Script) StateAsset() (types.Asset, error) {
	if s.Kind != KindGovernor {
		return types.Asset{}, fmt.Errorf("%w: %s has no state asset", ErrMalformedScript, s.Kind)
	}
	policy, err := s.HashParam(0)
	if err != nil {
		return types.Asset{}, err
	}
	name, err := plutus.AsBytes(s.Params[1], -1)
	if err != nil {
		return types.Asset{}, fmt.Errorf("%w: state token name: %v", ErrMalformedScript, err)
	}
	return types.NewAsset(policy, name), nil
}

// OneShot returns the state token policy keyed by seed.
func OneShot(seed types.Outpoint) Script {
	return Script{Kind: KindOneShot, Params: []plutus.Data{
		plutus.Bytes(seed.TxID.Bytes()),
		plutus.NewUint(uint64(seed.Index)),
	}}
}

// Governor returns the batch validator for the commitment holding stateAsset.
func Governor(stateAsset types.Asset) Script {
	return Script{Kind: KindGovernor, Params: []plutus.Data{
		plutus.Bytes(stateAsset.Policy.Bytes()),
		plutus.Bytes(stateAsset.NameBytes()),
	}}
}

// State returns the commitment validator delegating to governor.
func State(governor types.Hash28) Script {
	return Script{Kind: KindState, Params: []plutus.Data{plutus.Bytes(governor.Bytes())}}
}

// Order returns the order validator delegating to governor.
func Order(governor types.Hash28) Script {
	return Script{Kind: KindOrder, Params: []plutus.Data{plutus.Bytes(governor.Bytes())}}
}

// Policy returns the handle minting policy delegating to governor.
func Policy(governor types.Hash28) Script {
	return Script{Kind: KindPolicy, Params: []plutus.Data{plutus.Bytes(governor.Bytes())}}
}
