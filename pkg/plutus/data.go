// Package plutus implements the tagged sum-of-products data model used
// for on-ledger records and its canonical CBOR encoding.
//
// Constructors are CBOR tags (121..127 for alternatives 0-6, 1280..1400
// for 7-127, tag 102 with an explicit index otherwise), non-empty lists
// are indefinite-length arrays, byte strings longer than 64 bytes are
// split into 64-byte chunks. Decoding only accepts input that re-encodes
// to the same bytes.
package plutus

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Data is one of Constr, Int, Bytes, List or Map.
type Data interface {
	isData()
	String() string
}

// Constr is constructor alternative Index applied to Fields.
type Constr struct {
	Index  uint64
	Fields []Data
}

// Int is an arbitrary-precision integer.
type Int struct {
	Value *big.Int
}

// Bytes is a byte string.
type Bytes []byte

// List is an ordered sequence.
type List []Data

// Pair is one key/value entry of a Map.
type Pair struct {
	Key   Data
	Value Data
}

// Map is an association list. Encoding orders entries by encoded key.
type Map []Pair

func (Constr) isData() {}
func (Int) isData()    {}
func (Bytes) isData()  {}
func (List) isData()   {}
func (Map) isData()    {}

// NewConstr builds a constructor value.
func NewConstr(index uint64, fields ...Data) Constr {
	if fields == nil {
		fields = []Data{}
	}
	return Constr{Index: index, Fields: fields}
}

// NewInt wraps an int64.
func NewInt(v int64) Int {
	return Int{Value: big.NewInt(v)}
}

// NewUint wraps a uint64.
func NewUint(v uint64) Int {
	return Int{Value: new(big.Int).SetUint64(v)}
}

func (c Constr) String() string {
	parts := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("Constr %d [%s]", c.Index, strings.Join(parts, ", "))
}

func (i Int) String() string {
	if i.Value == nil {
		return "0"
	}
	return i.Value.String()
}

func (b Bytes) String() string {
	return "#" + hex.EncodeToString(b)
}

func (l List) String() string {
	parts := make([]string, len(l))
	for i, d := range l {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (m Map) String() string {
	parts := make([]string, len(m))
	for i, p := range m {
		parts[i] = p.Key.String() + ": " + p.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Equal reports whether a and b encode identically.
func Equal(a, b Data) bool {
	ea, err := Encode(a)
	if err != nil {
		return false
	}
	eb, err := Encode(b)
	if err != nil {
		return false
	}
	return string(ea) == string(eb)
}
