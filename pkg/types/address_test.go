package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAddress_Bech32Roundtrip(t *testing.T) {
	old := activeHRP
	defer func() { activeHRP = old }()

	for _, hrp := range []string{MainnetHRP, TestnetHRP} {
		SetAddressHRP(hrp)
		for _, a := range []Address{
			KeyAddress(Hash28{0x01, 27: 0xff}),
			ScriptAddress(Hash28{0x02}),
		} {
			s := a.String()
			if !strings.HasPrefix(s, hrp+"1") {
				t.Fatalf("String() = %s, want prefix %s1", s, hrp)
			}
			got, err := ParseAddress(s)
			if err != nil {
				t.Fatalf("ParseAddress(%s): %v", s, err)
			}
			if got != a {
				t.Errorf("roundtrip = %+v, want %+v", got, a)
			}
		}
	}
}

func TestAddress_Bytes(t *testing.T) {
	old := activeHRP
	defer func() { activeHRP = old }()
	SetAddressHRP(TestnetHRP)

	key := KeyAddress(Hash28{0xaa})
	b := key.Bytes()
	if len(b) != AddressSize || b[0] != 0x60 || b[1] != 0xaa {
		t.Fatalf("key address bytes = %x", b)
	}
	script := ScriptAddress(Hash28{0xbb})
	if b := script.Bytes(); b[0] != 0x70 {
		t.Fatalf("script address header = %02x, want 70", b[0])
	}

	SetAddressHRP(MainnetHRP)
	if b := key.Bytes(); b[0] != 0x61 {
		t.Fatalf("mainnet header = %02x, want 61", b[0])
	}
}

func TestAddressFromBytes_Invalid(t *testing.T) {
	if _, err := AddressFromBytes(make([]byte, 20)); err == nil {
		t.Error("short address should fail")
	}
	b := make([]byte, AddressSize)
	b[0] = 0x00
	if _, err := AddressFromBytes(b); err == nil {
		t.Error("unknown header should fail")
	}
}

func TestParseAddress_Hex(t *testing.T) {
	a := ScriptAddress(Hash28{0x10, 0x20})
	got, err := ParseAddress(a.Hex())
	if err != nil {
		t.Fatalf("ParseAddress(hex): %v", err)
	}
	if got != a {
		t.Errorf("ParseAddress(hex) = %+v, want %+v", got, a)
	}
	if _, err := ParseAddress(""); err == nil {
		t.Error("empty address should fail")
	}
	if _, err := ParseAddress("addr1notvalid"); err == nil {
		t.Error("bad bech32 should fail")
	}
}

func TestAddress_JSON(t *testing.T) {
	a := KeyAddress(Hash28{0x42})
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Address
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != a {
		t.Errorf("JSON roundtrip = %+v, want %+v", got, a)
	}
}

func TestParseAddress_Bech32Errors(t *testing.T) {
	old := activeHRP
	defer func() { activeHRP = old }()
	SetAddressHRP(TestnetHRP)
	s := KeyAddress(Hash28{0x07}).String()

	flipped := []byte(s)
	last := len(flipped) - 1
	if flipped[last] == 'q' {
		flipped[last] = 'p'
	} else {
		flipped[last] = 'q'
	}
	tests := []struct {
		name, in string
	}{
		{"checksum", string(flipped)},
		{"mixed case", strings.ToUpper(s[:5]) + s[5:]},
		{"invalid char", s[:len(s)-1] + "b"},
		{"foreign prefix", mustEncode(t, "addrx", KeyAddress(Hash28{0x07}).Bytes())},
		{"short payload", mustEncode(t, TestnetHRP, []byte{0x60, 0x01})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAddress(tt.in); err == nil {
				t.Fatalf("ParseAddress(%s) succeeded", tt.in)
			}
		})
	}
}

func mustEncode(t *testing.T, hrp string, payload []byte) string {
	t.Helper()
	s, err := encodeBech32(hrp, payload)
	if err != nil {
		t.Fatalf("encodeBech32: %v", err)
	}
	return s
}
