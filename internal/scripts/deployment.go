package scripts

import (
	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Role names a deployed script by the part it plays.
type Role string

const (
	RoleState    Role = "state"
	RoleOrder    Role = "order"
	RolePolicy   Role = "policy"
	RoleGovernor Role = "governor"
)

// Roles lists every role a batch references, in deployment order.
var Roles = []Role{RoleState, RoleOrder, RolePolicy, RoleGovernor}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Deployment is the script set of one protocol instance. Every script is
// derived from the seed outpoint, so two deployments never share hashes.
type Deployment struct {
	Seed       types.Outpoint
	StateAsset types.Asset
	Scripts    map[Role]Script
}

// NetworkSeed is the seed of the default deployment on network.
func NetworkSeed(network string) types.Outpoint {
	return types.Outpoint{TxID: crypto.Hash([]byte("handlemint seed " + network))}
}

// NewDeployment derives the scripts of the instance seeded by seed.
func NewDeployment(seed types.Outpoint) *Deployment {
	stateAsset := types.NewAsset(OneShot(seed).Hash(), StateTokenName)
	governor := Governor(stateAsset)
	gh := governor.Hash()
	return &Deployment{
		Seed:       seed,
		StateAsset: stateAsset,
		Scripts: map[Role]Script{
			RoleState:    State(gh),
			RoleOrder:    Order(gh),
			RolePolicy:   Policy(gh),
			RoleGovernor: governor,
		},
	}
}

// Hash returns the hash of the script playing role.
func (d *Deployment) Hash(role Role) types.Hash28 {
	return d.Scripts[role].Hash()
}
