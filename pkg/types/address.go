package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// AddressSize is the length of a serialized address in bytes:
// one header byte followed by a 28-byte credential.
const AddressSize = 1 + Hash28Size

// Address HRP (human-readable part) constants for bech32 encoding.
const (
	MainnetHRP = "addr"
	TestnetHRP = "addr_test"
)

// Header nibbles for key- and script-locked addresses.
const (
	headerKey    = 0x60
	headerScript = 0x70
)

// activeHRP is the address HRP used by String() and MarshalJSON().
// Set once at startup via SetAddressHRP(). Default is testnet.
var activeHRP = TestnetHRP

// SetAddressHRP sets the active address HRP (call once at startup).
func SetAddressHRP(hrp string) {
	activeHRP = hrp
}

// GetAddressHRP returns the currently active address HRP.
func GetAddressHRP() string {
	return activeHRP
}

// networkID returns the header network bits for the active HRP.
func networkID() byte {
	if activeHRP == MainnetHRP {
		return 1
	}
	return 0
}

// Address is a payment address locked either by a verification key hash
// (P2PKH) or by a script hash (P2SH).
type Address struct {
	Type ScriptType
	Hash Hash28
}

// KeyAddress returns the address locked by the given key hash.
func KeyAddress(keyHash Hash28) Address {
	return Address{Type: ScriptTypeP2PKH, Hash: keyHash}
}

// ScriptAddress returns the address locked by the given script hash.
func ScriptAddress(scriptHash Hash28) Address {
	return Address{Type: ScriptTypeP2SH, Hash: scriptHash}
}

// IsZero returns true if the address is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

// IsScript reports whether the address is script-locked.
func (a Address) IsScript() bool {
	return a.Type == ScriptTypeP2SH
}

// Bytes returns the serialized address: header byte followed by the credential.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	header := byte(headerKey)
	if a.Type == ScriptTypeP2SH {
		header = headerScript
	}
	b[0] = header | networkID()
	copy(b[1:], a.Hash[:])
	return b
}

// String returns the bech32-encoded address (e.g. "addr_test1...").
func (a Address) String() string {
	s, err := encodeBech32(activeHRP, a.Bytes())
	if err != nil {
		// Fallback to hex if encoding fails (should never happen).
		return hex.EncodeToString(a.Bytes())
	}
	return s
}

// Hex returns the raw hex-encoded serialized address.
func (a Address) Hex() string {
	return hex.EncodeToString(a.Bytes())
}

// MarshalJSON encodes the address as a bech32 string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a bech32 or raw hex string into an address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalText encodes the address as bech32 for text configuration files.
func (a Address) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return nil, nil
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes a bech32 or hex address.
func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AddressFromBytes parses a serialized address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressSize {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(b))
	}
	var a Address
	switch b[0] & 0xf0 {
	case headerKey:
		a.Type = ScriptTypeP2PKH
	case headerScript:
		a.Type = ScriptTypeP2SH
	default:
		return Address{}, fmt.Errorf("unsupported address header 0x%02x", b[0])
	}
	copy(a.Hash[:], b[1:])
	return a, nil
}

// ParseAddress parses a bech32 ("addr1...", "addr_test1...") or raw
// 58-character hex address string.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}

	if strings.HasPrefix(s, MainnetHRP) {
		hrp, data, err := decodeBech32(s)
		if err != nil {
			return Address{}, fmt.Errorf("invalid bech32 address: %w", err)
		}
		if hrp != MainnetHRP && hrp != TestnetHRP {
			return Address{}, fmt.Errorf("unexpected address prefix %q", hrp)
		}
		return AddressFromBytes(data)
	}

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: %w", err)
	}
	return AddressFromBytes(decoded)
}
