package fees

import (
	"errors"
	"testing"
)

func testSchedule() Schedule {
	return Schedule{
		Prices:          [4]uint64{450_000_000, 175_000_000, 35_000_000, 10_000_000},
		TreasuryPercent: 10,
		MinTreasury:     1_000_000,
		MinMinter:       1_000_000,
	}
}

func TestPrice_Tiers(t *testing.T) {
	s := testSchedule()
	tests := []struct {
		name string
		want uint64
	}{
		{"a", s.Prices[0]},
		{"ab", s.Prices[0]},
		{"abc", s.Prices[1]},
		{"abcd", s.Prices[2]},
		{"abcdefg", s.Prices[2]},
		{"abcdefgh", s.Prices[3]},
		{"demi-2", s.Prices[2]},
		{"a-very-long-one", s.Prices[3]},
	}
	for _, tt := range tests {
		if got := s.Price([]byte(tt.name)); got != tt.want {
			t.Errorf("Price(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestSplit(t *testing.T) {
	s := testSchedule()
	tests := []struct {
		total        uint64
		wantTreasury uint64
		wantMinter   uint64
	}{
		{0, 1_000_000, 1_000_000},
		{35_000_000, 3_500_001, 31_500_001},
		{70_000_000, 7_000_001, 63_000_001},
		{5_000_000, 1_000_000, 4_500_001},
		{999, 1_000_000, 1_000_000},
	}
	for _, tt := range tests {
		tr, mi := s.Split(tt.total)
		if tr != tt.wantTreasury || mi != tt.wantMinter {
			t.Errorf("Split(%d) = (%d, %d), want (%d, %d)", tt.total, tr, mi, tt.wantTreasury, tt.wantMinter)
		}
	}
}

func TestSplit_Floors(t *testing.T) {
	s := testSchedule()
	for _, total := range []uint64{0, 1, 99, 1_000_000, 12_345_678, 1 << 40} {
		tr, mi := s.Split(total)
		if tr < s.MinTreasury {
			t.Errorf("Split(%d) treasury %d below floor", total, tr)
		}
		if mi < s.MinMinter {
			t.Errorf("Split(%d) minter %d below floor", total, mi)
		}
	}
}

func TestSplit_Monotonic(t *testing.T) {
	s := testSchedule()
	var prevT, prevM uint64
	for total := uint64(0); total <= 200_000_000; total += 1_234_567 {
		tr, mi := s.Split(total)
		if tr < prevT || mi < prevM {
			t.Fatalf("Split(%d) = (%d, %d) decreased from (%d, %d)", total, tr, mi, prevT, prevM)
		}
		prevT, prevM = tr, mi
	}
}

func TestSplit_NoOverflow(t *testing.T) {
	s := testSchedule()
	s.MinTreasury, s.MinMinter = 0, 0
	tr, mi := s.Split(^uint64(0))
	if tr == 0 || mi == 0 || tr > mi {
		t.Fatalf("Split(max) = (%d, %d)", tr, mi)
	}
}

func TestValidate(t *testing.T) {
	if err := testSchedule().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	s := testSchedule()
	s.TreasuryPercent = 101
	if err := s.Validate(); !errors.Is(err, ErrInvalidPercent) {
		t.Errorf("pct 101: err = %v, want ErrInvalidPercent", err)
	}

	s = testSchedule()
	s.Prices[2] = 0
	if err := s.Validate(); !errors.Is(err, ErrZeroPrice) {
		t.Errorf("zero tier: err = %v, want ErrZeroPrice", err)
	}

	s = testSchedule()
	s.Prices[3] = s.Prices[0] + 1
	if err := s.Validate(); !errors.Is(err, ErrPriceOrder) {
		t.Errorf("inverted tiers: err = %v, want ErrPriceOrder", err)
	}
}

func TestTotal(t *testing.T) {
	s := testSchedule()
	got := s.Total([][]byte{[]byte("demi-2"), []byte("demi-3")})
	if got != 2*s.Prices[2] {
		t.Fatalf("Total = %d, want %d", got, 2*s.Prices[2])
	}
}

func TestFormatLovelace(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0.000000 ADA"},
		{1, "0.000001 ADA"},
		{1_500_000, "1.500000 ADA"},
		{35_000_000, "35.000000 ADA"},
	}
	for _, tt := range tests {
		if got := FormatLovelace(tt.in); got != tt.want {
			t.Errorf("FormatLovelace(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseLovelace(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"1.5", 1_500_000, false},
		{"0.000001", 1, false},
		{"35", 35_000_000, false},
		{"-1", 0, true},
		{"0.0000001", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLovelace(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLovelace(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLovelace(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
