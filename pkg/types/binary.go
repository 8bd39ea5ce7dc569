package types

import (
	"encoding/binary"
	"fmt"
)

// Binary forms used by the transaction wire encoding. CBOR encoders pick
// these up through encoding.BinaryMarshaler and emit byte strings.

// MarshalBinary returns Bytes().
func (a Address) MarshalBinary() ([]byte, error) {
	return a.Bytes(), nil
}

// UnmarshalBinary parses the form produced by MarshalBinary.
func (a *Address) UnmarshalBinary(data []byte) error {
	parsed, err := AddressFromBytes(data)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalBinary returns Key().
func (o Outpoint) MarshalBinary() ([]byte, error) {
	return o.Key(), nil
}

// UnmarshalBinary parses the form produced by MarshalBinary.
func (o *Outpoint) UnmarshalBinary(data []byte) error {
	if len(data) != HashSize+4 {
		return fmt.Errorf("outpoint must be %d bytes, got %d", HashSize+4, len(data))
	}
	copy(o.TxID[:], data[:HashSize])
	o.Index = binary.BigEndian.Uint32(data[HashSize:])
	return nil
}

// MarshalBinary returns policy || name.
func (a Asset) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, Hash28Size+len(a.Name))
	out = append(out, a.Policy[:]...)
	return append(out, a.Name...), nil
}

// UnmarshalBinary parses the form produced by MarshalBinary.
func (a *Asset) UnmarshalBinary(data []byte) error {
	if len(data) < Hash28Size {
		return fmt.Errorf("asset must be at least %d bytes, got %d", Hash28Size, len(data))
	}
	copy(a.Policy[:], data[:Hash28Size])
	a.Name = string(data[Hash28Size:])
	return nil
}

// MarshalBinary returns quantity (8 bytes, big-endian) || policy || name.
func (aq AssetQuantity) MarshalBinary() ([]byte, error) {
	asset, _ := aq.Asset.MarshalBinary()
	out := binary.BigEndian.AppendUint64(make([]byte, 0, 8+len(asset)), uint64(aq.Quantity))
	return append(out, asset...), nil
}

// UnmarshalBinary parses the form produced by MarshalBinary.
func (aq *AssetQuantity) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("asset quantity too short: %d bytes", len(data))
	}
	aq.Quantity = int64(binary.BigEndian.Uint64(data[:8]))
	return aq.Asset.UnmarshalBinary(data[8:])
}
