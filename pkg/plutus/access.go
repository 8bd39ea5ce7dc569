package plutus

import (
	"fmt"
	"math"
)

// Field extraction helpers used by record decoders. Each returns a
// *DecodeError describing the mismatch.

// AsConstr checks d is alternative index with exactly n fields.
func AsConstr(d Data, index uint64, n int) ([]Data, error) {
	c, ok := d.(Constr)
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected constr %d, got %T", index, d)}
	}
	if c.Index != index {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected constr %d, got constr %d", index, c.Index)}
	}
	if len(c.Fields) != n {
		return nil, &DecodeError{Reason: fmt.Sprintf("constr %d: expected %d fields, got %d", index, n, len(c.Fields))}
	}
	return c.Fields, nil
}

// AsBytes checks d is a byte string. size < 0 accepts any length.
func AsBytes(d Data, size int) ([]byte, error) {
	b, ok := d.(Bytes)
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected bytes, got %T", d)}
	}
	if size >= 0 && len(b) != size {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected %d bytes, got %d", size, len(b))}
	}
	return []byte(b), nil
}

// AsInt64 checks d is an integer that fits in an int64.
func AsInt64(d Data) (int64, error) {
	i, ok := d.(Int)
	if !ok || i.Value == nil {
		return 0, &DecodeError{Reason: fmt.Sprintf("expected int, got %T", d)}
	}
	if !i.Value.IsInt64() {
		return 0, &DecodeError{Reason: "integer out of range"}
	}
	return i.Value.Int64(), nil
}

// AsUint64 checks d is a non-negative integer that fits in a uint64.
func AsUint64(d Data) (uint64, error) {
	i, ok := d.(Int)
	if !ok || i.Value == nil {
		return 0, &DecodeError{Reason: fmt.Sprintf("expected int, got %T", d)}
	}
	if i.Value.Sign() < 0 || !i.Value.IsUint64() {
		return 0, &DecodeError{Reason: "integer out of range"}
	}
	return i.Value.Uint64(), nil
}

// AsInt checks d is an integer that fits in an int.
func AsInt(d Data) (int, error) {
	v, err := AsInt64(d)
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, &DecodeError{Reason: "integer out of range"}
	}
	return int(v), nil
}

// AsList checks d is a list.
func AsList(d Data) (List, error) {
	l, ok := d.(List)
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected list, got %T", d)}
	}
	return l, nil
}

// AsMap checks d is a map.
func AsMap(d Data) (Map, error) {
	m, ok := d.(Map)
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected map, got %T", d)}
	}
	return m, nil
}
