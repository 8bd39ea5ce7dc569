package plutus

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// DecodeError reports bytes that are not a canonical encoding of Data.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plutus decode: %s: %v", e.Reason, e.Err)
	}
	return "plutus decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var decMode cbor.DecMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		MaxNestedLevels:  64,
		IndefLength:      cbor.IndefLengthAllowed,
		BigIntDec:        cbor.BigIntDecodePointer,
		MapKeyByteString: cbor.MapKeyByteStringAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("plutus: cbor dec mode: %v", err))
	}
}

// Decode parses a canonical encoding. Input that decodes but does not
// re-encode to the same bytes is rejected, as is trailing data.
func Decode(b []byte) (Data, error) {
	var raw any
	if err := decMode.Unmarshal(b, &raw); err != nil {
		return nil, &DecodeError{Reason: "malformed cbor", Err: err}
	}
	d, err := fromCBOR(raw)
	if err != nil {
		return nil, err
	}
	canonical, err := Encode(d)
	if err != nil {
		return nil, &DecodeError{Reason: "re-encode", Err: err}
	}
	if !bytes.Equal(canonical, b) {
		return nil, &DecodeError{Reason: "non-canonical encoding"}
	}
	return d, nil
}

func fromCBOR(v any) (Data, error) {
	switch x := v.(type) {
	case cbor.Tag:
		return constrFromTag(x)
	case []any:
		return listFromCBOR(x)
	case []byte:
		return Bytes(x), nil
	case cbor.ByteString:
		return Bytes(x), nil
	case uint64:
		return NewUint(x), nil
	case int64:
		return NewInt(x), nil
	case *big.Int:
		return Int{Value: x}, nil
	case big.Int:
		return Int{Value: &x}, nil
	case map[any]any:
		m := make(Map, 0, len(x))
		for k, val := range x {
			kd, err := fromCBOR(k)
			if err != nil {
				return nil, err
			}
			vd, err := fromCBOR(val)
			if err != nil {
				return nil, err
			}
			m = append(m, Pair{Key: kd, Value: vd})
		}
		return m, nil
	}
	return nil, &DecodeError{Reason: fmt.Sprintf("unsupported cbor item %T", v)}
}

func listFromCBOR(items []any) (List, error) {
	l := make(List, len(items))
	for i, it := range items {
		d, err := fromCBOR(it)
		if err != nil {
			return nil, err
		}
		l[i] = d
	}
	return l, nil
}

func constrFromTag(t cbor.Tag) (Data, error) {
	var index uint64
	var fields any
	switch {
	case t.Number >= tagCompactBase && t.Number < tagCompactBase+7:
		index, fields = t.Number-tagCompactBase, t.Content
	case t.Number >= tagExtendedBase && t.Number < tagExtendedBase+121:
		index, fields = t.Number-tagExtendedBase+7, t.Content
	case t.Number == tagGeneralConstr:
		pair, ok := t.Content.([]any)
		if !ok || len(pair) != 2 {
			return nil, &DecodeError{Reason: "tag 102 content is not [index, fields]"}
		}
		idx, ok := pair[0].(uint64)
		if !ok {
			return nil, &DecodeError{Reason: "tag 102 index is not an unsigned integer"}
		}
		index, fields = idx, pair[1]
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unexpected tag %d", t.Number)}
	}

	items, ok := fields.([]any)
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("constr %d fields are not a list", index)}
	}
	l, err := listFromCBOR(items)
	if err != nil {
		return nil, err
	}
	return Constr{Index: index, Fields: []Data(l)}, nil
}

// Diagnose renders b in CBOR diagnostic notation, for error dumps.
func Diagnose(b []byte) string {
	s, err := cbor.Diagnose(b)
	if err != nil {
		return fmt.Sprintf("<undiagnosable: %v>", err)
	}
	return s
}
