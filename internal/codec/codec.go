// Package codec maps the on-ledger records of the handle protocol to and
// from their plutus data encoding.
package codec

import (
	"fmt"

	"github.com/Klingon-tech/handlemint/pkg/plutus"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// DecodeError reports a record that could not be decoded.
type DecodeError struct {
	Record string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Record, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Record is anything with a plutus data form.
type Record interface {
	ToData() plutus.Data
}

// Marshal encodes r.
func Marshal(r Record) ([]byte, error) {
	return plutus.Encode(r.ToData())
}

// Unit is the empty constructor used as a trivial redeemer or datum.
var Unit = plutus.NewConstr(0)

// unmarshal decodes b and hands the data to from, wrapping any failure.
func unmarshal[T any](record string, b []byte, from func(plutus.Data) (T, error)) (T, error) {
	var zero T
	d, err := plutus.Decode(b)
	if err != nil {
		return zero, &DecodeError{Record: record, Err: err}
	}
	v, err := from(d)
	if err != nil {
		return zero, &DecodeError{Record: record, Err: err}
	}
	return v, nil
}

func hashData(h types.Hash) plutus.Data     { return plutus.Bytes(h.Bytes()) }
func hash28Data(h types.Hash28) plutus.Data { return plutus.Bytes(h.Bytes()) }

func asHash(d plutus.Data) (types.Hash, error) {
	b, err := plutus.AsBytes(d, types.HashSize)
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(b)
}

func asHash28(d plutus.Data) (types.Hash28, error) {
	b, err := plutus.AsBytes(d, types.Hash28Size)
	if err != nil {
		return types.Hash28{}, err
	}
	return types.BytesToHash28(b)
}

func asAddress(d plutus.Data) (types.Address, error) {
	b, err := plutus.AsBytes(d, -1)
	if err != nil {
		return types.Address{}, err
	}
	return types.AddressFromBytes(b)
}

func uintsData(vs []uint64) plutus.List {
	l := make(plutus.List, len(vs))
	for i, v := range vs {
		l[i] = plutus.NewUint(v)
	}
	return l
}
