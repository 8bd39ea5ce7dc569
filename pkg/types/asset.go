package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Asset identifies a native asset by minting policy and asset name.
// Name holds raw bytes; it is a string so Asset can be used as a map key.
type Asset struct {
	Policy Hash28
	Name   string
}

// NewAsset returns the asset with the given policy and raw name bytes.
func NewAsset(policy Hash28, name []byte) Asset {
	return Asset{Policy: policy, Name: string(name)}
}

// NameBytes returns the raw asset name.
func (a Asset) NameBytes() []byte {
	return []byte(a.Name)
}

// Unit returns hex(policy) followed by hex(name), the display form used
// by ledger explorers.
func (a Asset) Unit() string {
	return a.Policy.String() + hex.EncodeToString([]byte(a.Name))
}

// String returns the unit form.
func (a Asset) String() string {
	return a.Unit()
}

// Compare orders assets by policy, then by name bytes.
func (a Asset) Compare(o Asset) int {
	if c := a.Policy.Compare(o.Policy); c != 0 {
		return c
	}
	return strings.Compare(a.Name, o.Name)
}

// ParseUnit parses the unit form produced by Unit.
func ParseUnit(s string) (Asset, error) {
	if len(s) < 2*Hash28Size {
		return Asset{}, fmt.Errorf("asset unit %q too short", s)
	}
	policy, err := HexToHash28(s[:2*Hash28Size])
	if err != nil {
		return Asset{}, fmt.Errorf("asset unit policy: %w", err)
	}
	name, err := hex.DecodeString(s[2*Hash28Size:])
	if err != nil {
		return Asset{}, fmt.Errorf("asset unit name: %w", err)
	}
	return NewAsset(policy, name), nil
}

// AssetQuantity pairs an asset with a signed quantity. Negative quantities
// only appear in mint fields, where they denote burns.
type AssetQuantity struct {
	Asset    Asset
	Quantity int64
}

type assetQuantityJSON struct {
	Policy   Hash28 `json:"policy"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// MarshalJSON encodes the asset name as hex.
func (aq AssetQuantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(assetQuantityJSON{
		Policy:   aq.Asset.Policy,
		Name:     hex.EncodeToString([]byte(aq.Asset.Name)),
		Quantity: aq.Quantity,
	})
}

// UnmarshalJSON decodes an asset quantity with a hex-encoded name.
func (aq *AssetQuantity) UnmarshalJSON(data []byte) error {
	var j assetQuantityJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	name, err := hex.DecodeString(j.Name)
	if err != nil {
		return fmt.Errorf("asset name hex: %w", err)
	}
	aq.Asset = NewAsset(j.Policy, name)
	aq.Quantity = j.Quantity
	return nil
}

// Bundle is a multi-asset value keyed by asset.
type Bundle map[Asset]int64

// BundleOf collects quantities into a bundle, summing duplicates.
func BundleOf(items []AssetQuantity) Bundle {
	b := make(Bundle, len(items))
	for _, it := range items {
		b.Add(it.Asset, it.Quantity)
	}
	return b
}

// Add adds qty of asset, dropping entries that reach zero.
func (b Bundle) Add(asset Asset, qty int64) {
	v := b[asset] + qty
	if v == 0 {
		delete(b, asset)
		return
	}
	b[asset] = v
}

// Merge adds every entry of other into b.
func (b Bundle) Merge(other Bundle) {
	for a, q := range other {
		b.Add(a, q)
	}
}

// Subtract removes every entry of other from b.
func (b Bundle) Subtract(other Bundle) {
	for a, q := range other {
		b.Add(a, -q)
	}
}

// Equal reports whether both bundles hold the same non-zero quantities.
func (b Bundle) Equal(other Bundle) bool {
	if len(b) != len(other) {
		return false
	}
	for a, q := range b {
		if other[a] != q {
			return false
		}
	}
	return true
}

// HasNegative reports whether any quantity is negative.
func (b Bundle) HasNegative() bool {
	for _, q := range b {
		if q < 0 {
			return true
		}
	}
	return false
}

// Sorted returns the bundle as a list ordered by asset.
func (b Bundle) Sorted() []AssetQuantity {
	out := make([]AssetQuantity, 0, len(b))
	for a, q := range b {
		out = append(out, AssetQuantity{Asset: a, Quantity: q})
	}
	slices.SortFunc(out, func(x, y AssetQuantity) int {
		return x.Asset.Compare(y.Asset)
	})
	return out
}

// Policies returns the distinct policies in the bundle in ascending order.
func (b Bundle) Policies() []Hash28 {
	seen := make(map[Hash28]bool)
	var out []Hash28
	for a := range b {
		if !seen[a.Policy] {
			seen[a.Policy] = true
			out = append(out, a.Policy)
		}
	}
	slices.SortFunc(out, Hash28.Compare)
	return out
}
