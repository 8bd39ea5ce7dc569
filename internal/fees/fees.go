// Package fees prices handle names and splits the collected amount
// between the protocol treasury and the minter.
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// LovelacePerAda is the number of base units in one display unit.
const LovelacePerAda = 1_000_000

// Length tiers. A name of at most ShortLen characters pays Prices[0],
// at most MediumLen pays Prices[1], at most LongLen pays Prices[2] and
// anything longer pays Prices[3].
const (
	ShortLen  = 2
	MediumLen = 3
	LongLen   = 7
)

var (
	ErrInvalidPercent = errors.New("treasury percent must be within 0..100")
	ErrZeroPrice      = errors.New("price tier is zero")
	ErrPriceOrder     = errors.New("shorter names must not be cheaper than longer ones")
)

// Schedule is the fee configuration carried in the commitment record.
type Schedule struct {
	Prices          [4]uint64 `toml:"prices" json:"prices"`
	TreasuryPercent uint64    `toml:"treasury_percent" json:"treasuryPercent"`
	MinTreasury     uint64    `toml:"min_treasury" json:"minTreasury"`
	MinMinter       uint64    `toml:"min_minter" json:"minMinter"`
}

// Validate checks the schedule is usable.
func (s Schedule) Validate() error {
	if s.TreasuryPercent > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidPercent, s.TreasuryPercent)
	}
	for i, p := range s.Prices {
		if p == 0 {
			return fmt.Errorf("%w: tier %d", ErrZeroPrice, i)
		}
		if i > 0 && p > s.Prices[i-1] {
			return fmt.Errorf("%w: tier %d (%d) > tier %d (%d)", ErrPriceOrder, i, p, i-1, s.Prices[i-1])
		}
	}
	return nil
}

// Price returns the cost of minting name.
func (s Schedule) Price(name []byte) uint64 {
	switch n := len(name); {
	case n <= ShortLen:
		return s.Prices[0]
	case n <= MediumLen:
		return s.Prices[1]
	case n <= LongLen:
		return s.Prices[2]
	default:
		return s.Prices[3]
	}
}

// Split divides total into the treasury and minter shares. Each share is
// floor(total*share/100)+1, raised to its configured minimum.
func (s Schedule) Split(total uint64) (treasury, minter uint64) {
	pct := min(s.TreasuryPercent, 100)
	treasury = max(percentOf(total, pct)+1, s.MinTreasury)
	minter = max(percentOf(total, 100-pct)+1, s.MinMinter)
	return treasury, minter
}

// Total returns the summed price of names.
func (s Schedule) Total(names [][]byte) uint64 {
	var total uint64
	for _, n := range names {
		total += s.Price(n)
	}
	return total
}

// percentOf computes floor(v*pct/100) without overflowing.
func percentOf(v, pct uint64) uint64 {
	return (v/100)*pct + (v%100)*pct/100
}

// FormatLovelace renders an amount of base units with six decimals.
func FormatLovelace(amount uint64) string {
	return decimal.NewFromUint64(amount).Shift(-6).StringFixed(6) + " ADA"
}

// ParseLovelace parses a display amount like "1.5" into base units.
func ParseLovelace(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	units := d.Shift(6)
	if units.IsNegative() {
		return 0, fmt.Errorf("parse amount %q: negative", s)
	}
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("parse amount %q: more than 6 decimals", s)
	}
	if units.GreaterThan(decimal.NewFromUint64(^uint64(0))) {
		return 0, fmt.Errorf("parse amount %q: overflow", s)
	}
	return units.BigInt().Uint64(), nil
}
