package config

import (
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/fees"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// =============================================================================
// Protocol Configuration (must match the deployment on the ledger)
// =============================================================================

// ProtocolConfig identifies the deployment a minter serves. Minters,
// Treasury, Fees and MinterFunds only matter when an emulator is deployed
// from it; against a real ledger they come from the commitment record.
type ProtocolConfig struct {
	Seed        string         `toml:"seed"`        // "txid:index"; empty derives one from the network
	StateAsset  string         `toml:"state_asset"` // unit; empty derives it from the seed
	Minters     []types.Hash28 `toml:"minters"`
	Treasury    types.Address  `toml:"treasury"`
	Fees        fees.Schedule  `toml:"fees"`
	MinterFunds uint64         `toml:"minter_funds"`
}

// DefaultProtocol returns the protocol settings of network.
func DefaultProtocol(network NetworkType) ProtocolConfig {
	p := ProtocolConfig{
		Fees: fees.Schedule{
			Prices:          [4]uint64{450_000_000, 175_000_000, 35_000_000, 10_000_000},
			TreasuryPercent: 25,
			MinTreasury:     1_000_000,
			MinMinter:       1_000_000,
		},
	}
	if network == Devnet {
		p.MinterFunds = 1_000_000_000
	}
	return p
}

// SeedOutpoint returns the deployment seed.
func (p ProtocolConfig) SeedOutpoint(network NetworkType) (types.Outpoint, error) {
	if p.Seed == "" {
		return scripts.NetworkSeed(string(network)), nil
	}
	op, err := types.ParseOutpoint(p.Seed)
	if err != nil {
		return types.Outpoint{}, fmt.Errorf("protocol.seed: %w", err)
	}
	return op, nil
}

// Asset returns the state token identifying the commitment output.
func (p ProtocolConfig) Asset(network NetworkType) (types.Asset, error) {
	if p.StateAsset != "" {
		a, err := types.ParseUnit(p.StateAsset)
		if err != nil {
			return types.Asset{}, fmt.Errorf("protocol.state_asset: %w", err)
		}
		return a, nil
	}
	seed, err := p.SeedOutpoint(network)
	if err != nil {
		return types.Asset{}, err
	}
	return scripts.NewDeployment(seed).StateAsset, nil
}
