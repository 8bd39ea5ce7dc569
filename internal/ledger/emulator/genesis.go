package emulator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/fees"
	"github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// ErrAlreadyDeployed is returned by Genesis on an emulator that already holds a deployment.
var ErrAlreadyDeployed = errors.New("protocol already deployed")

// Allocation funds an address at genesis.
type Allocation struct {
	Address types.Address `json:"address" toml:"address"`
	Value   uint64        `json:"value" toml:"value"`
}

// GenesisConfig describes the protocol instance to deploy.
type GenesisConfig struct {
	// Seed keys the state token policy. Zero derives it from Network.
	Seed     types.Outpoint
	Network  string
	Minters  []types.Hash28
	Treasury types.Address
	Fees     fees.Schedule
	Funds    []Allocation
}

// Genesis is the outcome of deploying the protocol.
type Genesis struct {
	Deployment *scripts.Deployment
	Record     codec.CommitmentRecord
	State      types.Outpoint
	Refs       map[scripts.Role]scripts.Ref
}

// Genesis deploys the protocol: the state output committing to the empty
// index, one reference output per script and the configured allocations,
// all created by a single synthetic transaction.
func (e *Emulator) Genesis(ctx context.Context, cfg GenesisConfig) (*Genesis, error) {
	if len(cfg.Minters) == 0 {
		return nil, errors.New("genesis: no minters")
	}
	if cfg.Treasury.IsZero() {
		return nil, errors.New("genesis: no treasury address")
	}
	if err := cfg.Fees.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.registry.Lookup(ctx, scripts.RoleGovernor); err == nil {
		return nil, ErrAlreadyDeployed
	}

	seed := cfg.Seed
	if seed.IsZero() {
		seed = scripts.NetworkSeed(cfg.Network)
	}
	d := scripts.NewDeployment(seed)
	record := codec.CommitmentRecord{
		Governance: codec.Governance{
			AllowedMinters:     append([]types.Hash28(nil), cfg.Minters...),
			TreasuryAddress:    cfg.Treasury,
			TreasuryFeePercent: cfg.Fees.TreasuryPercent,
			MinTreasuryFee:     cfg.Fees.MinTreasury,
			MinMinterFee:       cfg.Fees.MinMinter,
			Prices:             cfg.Fees.Prices,
			PolicyID:           d.Hash(scripts.RolePolicy),
			OrderScript:        d.Hash(scripts.RoleOrder),
			GovernorScript:     d.Hash(scripts.RoleGovernor),
		},
	}
	datum, err := codec.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	txid := crypto.Hash(append([]byte("handlemint genesis "), seed.Key()...))
	vault := types.ScriptAddress(d.Hash(scripts.RolePolicy))
	var created []*utxo.UTXO
	add := func(u *utxo.UTXO) types.Outpoint {
		u.Outpoint = types.Outpoint{TxID: txid, Index: uint32(len(created))}
		u.Slot = e.slot + 1
		created = append(created, u)
		return u.Outpoint
	}

	state := add(&utxo.UTXO{Output: tx.Output{
		Address: d.Scripts[scripts.RoleState].Address(),
		Value:   e.params.MinUTxO,
		Assets:  []types.AssetQuantity{{Asset: d.StateAsset, Quantity: 1}},
		Datum:   datum,
	}})

	refs := make(map[scripts.Role]scripts.Ref, len(scripts.Roles))
	for _, role := range scripts.Roles {
		s := d.Scripts[role]
		op := add(&utxo.UTXO{Output: tx.Output{Address: vault, Value: e.params.MinUTxO, Script: s.Bytes()}})
		refs[role] = scripts.Ref{Role: role, Hash: s.Hash(), Outpoint: op}
	}
	for _, a := range cfg.Funds {
		add(&utxo.UTXO{Output: tx.Output{Address: a.Address, Value: a.Value}})
	}

	if err := e.apply(nil, created); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	for _, role := range scripts.Roles {
		if err := e.registry.Put(refs[role]); err != nil {
			return nil, fmt.Errorf("genesis: %w", err)
		}
	}

	log.Ledger.Info().
		Str("state", state.String()).
		Str("state_asset", d.StateAsset.Unit()).
		Str("policy", record.Governance.PolicyID.String()).
		Int("minters", len(cfg.Minters)).
		Int("allocations", len(cfg.Funds)).
		Msg("Protocol deployed")

	return &Genesis{Deployment: d, Record: record, State: state, Refs: refs}, nil
}

// Fund creates a plain output of value at addr out of thin air.
func (e *Emulator) Fund(ctx context.Context, addr types.Address, value uint64) (types.Outpoint, error) {
	if err := ctx.Err(); err != nil {
		return types.Outpoint{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.create("faucet", &utxo.UTXO{Output: tx.Output{Address: addr, Value: value}})
}

// PlaceOrder creates an order output carrying req and lovelace at the
// order script address, as a requester's wallet would.
func (e *Emulator) PlaceOrder(ctx context.Context, req codec.MintRequest, lovelace uint64) (types.Outpoint, error) {
	if err := ctx.Err(); err != nil {
		return types.Outpoint{}, err
	}
	ref, err := e.registry.Lookup(ctx, scripts.RoleOrder)
	if err != nil {
		return types.Outpoint{}, fmt.Errorf("place order: %w", err)
	}
	datum, err := codec.Marshal(req)
	if err != nil {
		return types.Outpoint{}, fmt.Errorf("place order: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	op, err := e.create("order", &utxo.UTXO{Output: tx.Output{Address: ref.Address(), Value: lovelace, Datum: datum}})
	if err != nil {
		return types.Outpoint{}, err
	}
	log.Ledger.Info().
		Str("name", string(req.Name)).
		Str("outpoint", op.String()).
		Str("lovelace", fees.FormatLovelace(lovelace)).
		Msg("Order placed")
	return op, nil
}

// create applies a single-output synthetic transaction. Callers hold mu.
func (e *Emulator) create(kind string, u *utxo.UTXO) (types.Outpoint, error) {
	if u.Output.Value < e.params.MinUTxO {
		return types.Outpoint{}, fmt.Errorf("%s: %w: %d < %d", kind, ErrBelowMinUTxO, u.Output.Value, e.params.MinUTxO)
	}
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], e.slot)
	seed := append([]byte("handlemint "+kind+" "), nonce[:]...)
	seed = append(seed, u.Output.Address.Bytes()...)
	u.Outpoint = types.Outpoint{TxID: crypto.Hash(seed)}
	u.Slot = e.slot + 1
	if err := e.apply(nil, []*utxo.UTXO{u}); err != nil {
		return types.Outpoint{}, fmt.Errorf("%s: %w", kind, err)
	}
	return u.Outpoint, nil
}
