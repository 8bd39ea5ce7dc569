package codec

import (
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/fees"
	"github.com/Klingon-tech/handlemint/pkg/plutus"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Governance is the protocol configuration carried next to the root.
type Governance struct {
	AllowedMinters     []types.Hash28
	TreasuryAddress    types.Address
	TreasuryFeePercent uint64
	MinTreasuryFee     uint64
	MinMinterFee       uint64
	Prices             [4]uint64
	PolicyID           types.Hash28
	OrderScript        types.Hash28
	GovernorScript     types.Hash28
}

// Schedule returns the fee schedule part of g.
func (g Governance) Schedule() fees.Schedule {
	return fees.Schedule{
		Prices:          g.Prices,
		TreasuryPercent: g.TreasuryFeePercent,
		MinTreasury:     g.MinTreasuryFee,
		MinMinter:       g.MinMinterFee,
	}
}

// IsMinter reports whether key may sign batches.
func (g Governance) IsMinter(key types.Hash28) bool {
	for _, m := range g.AllowedMinters {
		if m == key {
			return true
		}
	}
	return false
}

func (g Governance) ToData() plutus.Data {
	minters := make(plutus.List, len(g.AllowedMinters))
	for i, m := range g.AllowedMinters {
		minters[i] = hash28Data(m)
	}
	return plutus.NewConstr(0,
		minters,
		plutus.Bytes(g.TreasuryAddress.Bytes()),
		plutus.NewUint(g.TreasuryFeePercent),
		plutus.NewUint(g.MinTreasuryFee),
		plutus.NewUint(g.MinMinterFee),
		uintsData(g.Prices[:]),
		hash28Data(g.PolicyID),
		hash28Data(g.OrderScript),
		hash28Data(g.GovernorScript),
	)
}

// GovernanceFromData decodes a governance record.
func GovernanceFromData(d plutus.Data) (Governance, error) {
	f, err := plutus.AsConstr(d, 0, 9)
	if err != nil {
		return Governance{}, err
	}
	var g Governance

	minters, err := plutus.AsList(f[0])
	if err != nil {
		return Governance{}, fmt.Errorf("minters: %w", err)
	}
	g.AllowedMinters = make([]types.Hash28, len(minters))
	for i, m := range minters {
		if g.AllowedMinters[i], err = asHash28(m); err != nil {
			return Governance{}, fmt.Errorf("minter %d: %w", i, err)
		}
	}
	if g.TreasuryAddress, err = asAddress(f[1]); err != nil {
		return Governance{}, fmt.Errorf("treasury address: %w", err)
	}
	if g.TreasuryFeePercent, err = plutus.AsUint64(f[2]); err != nil {
		return Governance{}, fmt.Errorf("treasury percent: %w", err)
	}
	if g.TreasuryFeePercent > 100 {
		return Governance{}, fmt.Errorf("treasury percent %d: %w", g.TreasuryFeePercent, fees.ErrInvalidPercent)
	}
	if g.MinTreasuryFee, err = plutus.AsUint64(f[3]); err != nil {
		return Governance{}, fmt.Errorf("min treasury fee: %w", err)
	}
	if g.MinMinterFee, err = plutus.AsUint64(f[4]); err != nil {
		return Governance{}, fmt.Errorf("min minter fee: %w", err)
	}
	if g.Prices, err = pricesFromData(f[5]); err != nil {
		return Governance{}, err
	}
	if g.PolicyID, err = asHash28(f[6]); err != nil {
		return Governance{}, fmt.Errorf("policy id: %w", err)
	}
	if g.OrderScript, err = asHash28(f[7]); err != nil {
		return Governance{}, fmt.Errorf("order script: %w", err)
	}
	if g.GovernorScript, err = asHash28(f[8]); err != nil {
		return Governance{}, fmt.Errorf("governor script: %w", err)
	}
	return g, nil
}

func pricesFromData(d plutus.Data) ([4]uint64, error) {
	var prices [4]uint64
	l, err := plutus.AsList(d)
	if err != nil {
		return prices, fmt.Errorf("prices: %w", err)
	}
	if len(l) != len(prices) {
		return prices, fmt.Errorf("prices: expected %d tiers, got %d", len(prices), len(l))
	}
	for i, p := range l {
		if prices[i], err = plutus.AsUint64(p); err != nil {
			return prices, fmt.Errorf("price %d: %w", i, err)
		}
	}
	return prices, nil
}

// Equal reports whether g and o encode identically.
func (g Governance) Equal(o Governance) bool {
	return plutus.Equal(g.ToData(), o.ToData())
}

// CommitmentRecord is the datum of the state output: the current root of
// the minted-name index and the governance it is minted under.
type CommitmentRecord struct {
	Root       types.Hash
	Governance Governance
}

func (r CommitmentRecord) ToData() plutus.Data {
	return plutus.NewConstr(0, hashData(r.Root), r.Governance.ToData())
}

// WithRoot returns a copy of r committing to root.
func (r CommitmentRecord) WithRoot(root types.Hash) CommitmentRecord {
	r.Governance.AllowedMinters = append([]types.Hash28(nil), r.Governance.AllowedMinters...)
	r.Root = root
	return r
}

// CommitmentRecordFromData decodes a commitment record.
func CommitmentRecordFromData(d plutus.Data) (CommitmentRecord, error) {
	f, err := plutus.AsConstr(d, 0, 2)
	if err != nil {
		return CommitmentRecord{}, err
	}
	root, err := asHash(f[0])
	if err != nil {
		return CommitmentRecord{}, fmt.Errorf("root: %w", err)
	}
	g, err := GovernanceFromData(f[1])
	if err != nil {
		return CommitmentRecord{}, fmt.Errorf("governance: %w", err)
	}
	return CommitmentRecord{Root: root, Governance: g}, nil
}

// UnmarshalCommitmentRecord decodes an encoded commitment record.
func UnmarshalCommitmentRecord(b []byte) (CommitmentRecord, error) {
	return unmarshal("commitment record", b, CommitmentRecordFromData)
}

// MintRequest is the datum of an order output.
type MintRequest struct {
	Owner       types.Hash28
	Name        []byte
	Destination types.Address
}

func (m MintRequest) ToData() plutus.Data {
	return plutus.NewConstr(0,
		hash28Data(m.Owner),
		plutus.Bytes(m.Name),
		plutus.Bytes(m.Destination.Bytes()),
	)
}

// MintRequestFromData decodes a mint request.
func MintRequestFromData(d plutus.Data) (MintRequest, error) {
	f, err := plutus.AsConstr(d, 0, 3)
	if err != nil {
		return MintRequest{}, err
	}
	owner, err := asHash28(f[0])
	if err != nil {
		return MintRequest{}, fmt.Errorf("owner: %w", err)
	}
	name, err := plutus.AsBytes(f[1], -1)
	if err != nil {
		return MintRequest{}, fmt.Errorf("name: %w", err)
	}
	dest, err := asAddress(f[2])
	if err != nil {
		return MintRequest{}, fmt.Errorf("destination: %w", err)
	}
	return MintRequest{Owner: owner, Name: name, Destination: dest}, nil
}

// UnmarshalMintRequest decodes an encoded mint request.
func UnmarshalMintRequest(b []byte) (MintRequest, error) {
	return unmarshal("mint request", b, MintRequestFromData)
}

// FeeSchedule is the standalone encoding of a fee schedule.
type FeeSchedule fees.Schedule

func (s FeeSchedule) ToData() plutus.Data {
	return plutus.NewConstr(0,
		uintsData(s.Prices[:]),
		plutus.NewUint(s.TreasuryPercent),
		plutus.NewUint(s.MinTreasury),
		plutus.NewUint(s.MinMinter),
	)
}

// FeeScheduleFromData decodes a fee schedule.
func FeeScheduleFromData(d plutus.Data) (FeeSchedule, error) {
	f, err := plutus.AsConstr(d, 0, 4)
	if err != nil {
		return FeeSchedule{}, err
	}
	var s FeeSchedule
	if s.Prices, err = pricesFromData(f[0]); err != nil {
		return FeeSchedule{}, err
	}
	if s.TreasuryPercent, err = plutus.AsUint64(f[1]); err != nil {
		return FeeSchedule{}, fmt.Errorf("treasury percent: %w", err)
	}
	if s.MinTreasury, err = plutus.AsUint64(f[2]); err != nil {
		return FeeSchedule{}, fmt.Errorf("min treasury: %w", err)
	}
	if s.MinMinter, err = plutus.AsUint64(f[3]); err != nil {
		return FeeSchedule{}, fmt.Errorf("min minter: %w", err)
	}
	return s, nil
}

// UnmarshalFeeSchedule decodes an encoded fee schedule.
func UnmarshalFeeSchedule(b []byte) (FeeSchedule, error) {
	return unmarshal("fee schedule", b, FeeScheduleFromData)
}
