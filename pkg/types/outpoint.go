package types

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Outpoint references a specific output in a transaction.
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

// IsZero returns true if the outpoint has a zero TxID and zero index.
func (o Outpoint) IsZero() bool {
	return o.TxID.IsZero() && o.Index == 0
}

// String returns "txid:index" in hex.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}

// Compare orders outpoints by transaction id bytes, then by index.
// This is the order in which the ledger presents transaction inputs.
func (o Outpoint) Compare(other Outpoint) int {
	if c := o.TxID.Compare(other.TxID); c != 0 {
		return c
	}
	return cmp.Compare(o.Index, other.Index)
}

// Key returns a fixed-width binary form that sorts like Compare.
func (o Outpoint) Key() []byte {
	key := make([]byte, HashSize+4)
	copy(key, o.TxID[:])
	key[HashSize] = byte(o.Index >> 24)
	key[HashSize+1] = byte(o.Index >> 16)
	key[HashSize+2] = byte(o.Index >> 8)
	key[HashSize+3] = byte(o.Index)
	return key
}

// ParseOutpoint parses "txid:index".
func ParseOutpoint(s string) (Outpoint, error) {
	txid, idx, ok := strings.Cut(s, ":")
	if !ok {
		return Outpoint{}, fmt.Errorf("outpoint %q: missing ':'", s)
	}
	h, err := HexToHash(txid)
	if err != nil {
		return Outpoint{}, fmt.Errorf("outpoint %q: %w", s, err)
	}
	n, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("outpoint %q: invalid index: %w", s, err)
	}
	return Outpoint{TxID: h, Index: uint32(n)}, nil
}
