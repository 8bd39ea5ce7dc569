package codec

import (
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/mpf"
	"github.com/Klingon-tech/handlemint/pkg/plutus"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Governor redeemer constructor indices.
const (
	RedeemerMintBatch      = 0
	RedeemerAdministrative = 1
	RedeemerUpdateOnly     = 2
)

// GovernorRedeemer is the argument of the governor withdrawal.
type GovernorRedeemer interface {
	Record
	MinterKey() types.Hash28
}

// MintBatch inserts one name per proof and mints its tokens. Proofs are
// in the order the order outputs are spent.
type MintBatch struct {
	Proofs []mpf.Proof
	Minter types.Hash28
}

func (r MintBatch) ToData() plutus.Data {
	return plutus.NewConstr(RedeemerMintBatch, proofsData(r.Proofs), hash28Data(r.Minter))
}

func (r MintBatch) MinterKey() types.Hash28 { return r.Minter }

// Administrative replaces the root outright.
type Administrative struct {
	NewRoot types.Hash
	Minter  types.Hash28
}

func (r Administrative) ToData() plutus.Data {
	return plutus.NewConstr(RedeemerAdministrative, hashData(r.NewRoot), hash28Data(r.Minter))
}

func (r Administrative) MinterKey() types.Hash28 { return r.Minter }

// UpdateOnly inserts Names into the index without minting.
type UpdateOnly struct {
	Proofs []mpf.Proof
	Names  [][]byte
	Minter types.Hash28
}

func (r UpdateOnly) ToData() plutus.Data {
	names := make(plutus.List, len(r.Names))
	for i, n := range r.Names {
		names[i] = plutus.Bytes(n)
	}
	return plutus.NewConstr(RedeemerUpdateOnly, proofsData(r.Proofs), names, hash28Data(r.Minter))
}

func (r UpdateOnly) MinterKey() types.Hash28 { return r.Minter }

// GovernorRedeemerFromData decodes any governor redeemer.
func GovernorRedeemerFromData(d plutus.Data) (GovernorRedeemer, error) {
	c, ok := d.(plutus.Constr)
	if !ok {
		return nil, fmt.Errorf("redeemer is %T, not a constructor", d)
	}
	switch c.Index {
	case RedeemerMintBatch:
		f, err := plutus.AsConstr(d, RedeemerMintBatch, 2)
		if err != nil {
			return nil, err
		}
		proofs, err := proofsFromData(f[0])
		if err != nil {
			return nil, err
		}
		minter, err := asHash28(f[1])
		if err != nil {
			return nil, fmt.Errorf("minter: %w", err)
		}
		return MintBatch{Proofs: proofs, Minter: minter}, nil

	case RedeemerAdministrative:
		f, err := plutus.AsConstr(d, RedeemerAdministrative, 2)
		if err != nil {
			return nil, err
		}
		root, err := asHash(f[0])
		if err != nil {
			return nil, fmt.Errorf("new root: %w", err)
		}
		minter, err := asHash28(f[1])
		if err != nil {
			return nil, fmt.Errorf("minter: %w", err)
		}
		return Administrative{NewRoot: root, Minter: minter}, nil

	case RedeemerUpdateOnly:
		f, err := plutus.AsConstr(d, RedeemerUpdateOnly, 3)
		if err != nil {
			return nil, err
		}
		proofs, err := proofsFromData(f[0])
		if err != nil {
			return nil, err
		}
		l, err := plutus.AsList(f[1])
		if err != nil {
			return nil, fmt.Errorf("names: %w", err)
		}
		names := make([][]byte, len(l))
		for i, n := range l {
			if names[i], err = plutus.AsBytes(n, -1); err != nil {
				return nil, fmt.Errorf("name %d: %w", i, err)
			}
		}
		if len(names) != len(proofs) {
			return nil, fmt.Errorf("%d names for %d proofs", len(names), len(proofs))
		}
		minter, err := asHash28(f[2])
		if err != nil {
			return nil, fmt.Errorf("minter: %w", err)
		}
		return UpdateOnly{Proofs: proofs, Names: names, Minter: minter}, nil
	}
	return nil, fmt.Errorf("unknown governor redeemer %d", c.Index)
}

// UnmarshalGovernorRedeemer decodes an encoded governor redeemer.
func UnmarshalGovernorRedeemer(b []byte) (GovernorRedeemer, error) {
	return unmarshal("governor redeemer", b, GovernorRedeemerFromData)
}

// OrderAction is the redeemer of an order output.
type OrderAction uint64

// Order spend actions.
const (
	OrderExecute OrderAction = 0
	OrderCancel  OrderAction = 1
)

func (a OrderAction) ToData() plutus.Data {
	return plutus.NewConstr(uint64(a))
}

// OrderActionFromData decodes an order redeemer.
func OrderActionFromData(d plutus.Data) (OrderAction, error) {
	c, ok := d.(plutus.Constr)
	if !ok || len(c.Fields) != 0 || c.Index > uint64(OrderCancel) {
		return 0, fmt.Errorf("invalid order action %s", d)
	}
	return OrderAction(c.Index), nil
}
