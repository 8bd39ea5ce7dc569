package plutus

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// chunkSize is the maximum length of a single byte-string chunk.
const chunkSize = 64

// Constructor tag ranges.
const (
	tagCompactBase   = 121  // alternatives 0..6
	tagExtendedBase  = 1280 // alternatives 7..127
	tagGeneralConstr = 102  // [index, fields]
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		BigIntConvert: cbor.BigIntConvertShortest,
		IndefLength:   cbor.IndefLengthAllowed,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("plutus: cbor enc mode: %v", err))
	}
}

// Encode returns the canonical CBOR encoding of d.
func Encode(d Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeTo(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustEncode is Encode for values built in code; it panics on error.
func MustEncode(d Data) []byte {
	b, err := Encode(d)
	if err != nil {
		panic(err)
	}
	return b
}

func encodeTo(buf *bytes.Buffer, d Data) error {
	enc := encMode.NewEncoder(buf)
	switch v := d.(type) {
	case Constr:
		return encodeConstr(buf, v)
	case Int:
		n := v.Value
		if n == nil {
			n = new(big.Int)
		}
		return enc.Encode(n)
	case Bytes:
		return encodeBytes(enc, v)
	case List:
		return encodeList(buf, v)
	case Map:
		return encodeMap(buf, v)
	case nil:
		return errors.New("plutus: nil data")
	}
	return fmt.Errorf("plutus: unsupported data %T", d)
}

func encodeConstr(buf *bytes.Buffer, c Constr) error {
	var fields bytes.Buffer
	if err := encodeList(&fields, List(c.Fields)); err != nil {
		return err
	}

	var tag cbor.RawTag
	switch {
	case c.Index < 7:
		tag = cbor.RawTag{Number: tagCompactBase + c.Index, Content: fields.Bytes()}
	case c.Index < 128:
		tag = cbor.RawTag{Number: tagExtendedBase + c.Index - 7, Content: fields.Bytes()}
	default:
		idx, err := encMode.Marshal(c.Index)
		if err != nil {
			return err
		}
		content := append([]byte{0x82}, idx...)
		content = append(content, fields.Bytes()...)
		tag = cbor.RawTag{Number: tagGeneralConstr, Content: content}
	}
	out, err := encMode.Marshal(tag)
	if err != nil {
		return fmt.Errorf("plutus: encode constr %d: %w", c.Index, err)
	}
	buf.Write(out)
	return nil
}

func encodeBytes(enc *cbor.Encoder, b Bytes) error {
	if len(b) <= chunkSize {
		return enc.Encode([]byte(b))
	}
	if err := enc.StartIndefiniteByteString(); err != nil {
		return err
	}
	for start := 0; start < len(b); start += chunkSize {
		end := min(start+chunkSize, len(b))
		if err := enc.Encode([]byte(b[start:end])); err != nil {
			return err
		}
	}
	return enc.EndIndefinite()
}

func encodeList(buf *bytes.Buffer, l List) error {
	enc := encMode.NewEncoder(buf)
	if len(l) == 0 {
		return enc.Encode([]cbor.RawMessage{})
	}
	if err := enc.StartIndefiniteArray(); err != nil {
		return err
	}
	for _, item := range l {
		raw, err := Encode(item)
		if err != nil {
			return err
		}
		if err := enc.Encode(cbor.RawMessage(raw)); err != nil {
			return err
		}
	}
	return enc.EndIndefinite()
}

func encodeMap(buf *bytes.Buffer, m Map) error {
	type entry struct{ key, value []byte }
	entries := make([]entry, len(m))
	for i, p := range m {
		k, err := Encode(p.Key)
		if err != nil {
			return err
		}
		v, err := Encode(p.Value)
		if err != nil {
			return err
		}
		entries[i] = entry{k, v}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})
	buf.Write(appendHead(nil, 5, uint64(len(entries))))
	for _, e := range entries {
		buf.Write(e.key)
		buf.Write(e.value)
	}
	return nil
}

// appendHead appends a definite-length CBOR head of the given major type.
func appendHead(dst []byte, major byte, n uint64) []byte {
	m := major << 5
	switch {
	case n < 24:
		return append(dst, m|byte(n))
	case n <= 0xff:
		return append(dst, m|24, byte(n))
	case n <= 0xffff:
		return append(dst, m|25, byte(n>>8), byte(n))
	case n <= 0xffffffff:
		return append(dst, m|26, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		return append(dst, m|27,
			byte(n>>56), byte(n>>48), byte(n>>40), byte(n>>32),
			byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}
