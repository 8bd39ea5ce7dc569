// Package types defines the ledger primitives shared by the minting core:
// digests, credentials, addresses, outpoints and native assets.
package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash28Size is the length of a key, script or policy hash in bytes.
const Hash28Size = 28

// Hash represents a 256-bit hash value.
type Hash [HashSize]byte

// Hash28 is a 224-bit hash identifying a verification key, a script
// or a minting policy.
type Hash28 [Hash28Size]byte

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// Compare orders hashes bytewise.
func (h Hash) Compare(o Hash) int {
	return bytes.Compare(h[:], o[:])
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	return unmarshalHexJSON(data, h[:])
}

// HexToHash converts a hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	var h Hash
	if err := decodeHexInto(s, h[:]); err != nil {
		return Hash{}, err
	}
	return h, nil
}

// BytesToHash converts a 32-byte slice to a Hash.
func BytesToHash(b []byte) (Hash, error) {
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// IsZero returns true if the hash is all zeros.
func (h Hash28) IsZero() bool {
	return h == Hash28{}
}

// String returns the hex-encoded hash.
func (h Hash28) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash28) Bytes() []byte {
	b := make([]byte, Hash28Size)
	copy(b, h[:])
	return b
}

// Compare orders hashes bytewise.
func (h Hash28) Compare(o Hash28) int {
	return bytes.Compare(h[:], o[:])
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash28) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash28) UnmarshalJSON(data []byte) error {
	return unmarshalHexJSON(data, h[:])
}

// MarshalText encodes the hash as hex, so Hash28 can be used as a map key
// and in text configuration files.
func (h Hash28) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex hash.
func (h *Hash28) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*h = Hash28{}
		return nil
	}
	return decodeHexInto(string(text), h[:])
}

// HexToHash28 converts a 56-character hex string to a Hash28.
func HexToHash28(s string) (Hash28, error) {
	var h Hash28
	if err := decodeHexInto(s, h[:]); err != nil {
		return Hash28{}, err
	}
	return h, nil
}

// BytesToHash28 converts a 28-byte slice to a Hash28.
func BytesToHash28(b []byte) (Hash28, error) {
	if len(b) != Hash28Size {
		return Hash28{}, fmt.Errorf("hash must be %d bytes, got %d", Hash28Size, len(b))
	}
	var h Hash28
	copy(h[:], b)
	return h, nil
}

func decodeHexInto(s string, dst []byte) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != len(dst) {
		return fmt.Errorf("hash must be %d bytes, got %d", len(dst), len(b))
	}
	copy(dst, b)
	return nil
}

func unmarshalHexJSON(data []byte, dst []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		clear(dst)
		return nil
	}
	if err := decodeHexInto(s, dst); err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	return nil
}
