package codec

import (
	"fmt"

	"github.com/Klingon-tech/handlemint/pkg/plutus"
)

// DatumVersion is the metadata standard version written to reference outputs.
const DatumVersion = 1

var (
	keyName = plutus.Bytes("name")
	keyOG   = plutus.Bytes("og")
)

// HandleDatum is the metadata datum locked with a handle's reference
// token: constr 0 [metadata map, version, extra].
type HandleDatum struct {
	Name    []byte
	OG      int64
	Version int64
	Extra   plutus.Data
}

// NewHandleDatum returns the datum minted with name.
func NewHandleDatum(name []byte) HandleDatum {
	return HandleDatum{Name: name, Version: DatumVersion, Extra: Unit}
}

func (h HandleDatum) ToData() plutus.Data {
	extra := h.Extra
	if extra == nil {
		extra = Unit
	}
	meta := plutus.Map{
		{Key: keyName, Value: plutus.Bytes(h.Name)},
		{Key: keyOG, Value: plutus.NewInt(h.OG)},
	}
	return plutus.NewConstr(0, meta, plutus.NewInt(h.Version), extra)
}

// HandleDatumFromData decodes a reference datum.
func HandleDatumFromData(d plutus.Data) (HandleDatum, error) {
	f, err := plutus.AsConstr(d, 0, 3)
	if err != nil {
		return HandleDatum{}, err
	}
	meta, err := plutus.AsMap(f[0])
	if err != nil {
		return HandleDatum{}, fmt.Errorf("metadata: %w", err)
	}
	if len(meta) != 2 {
		return HandleDatum{}, fmt.Errorf("metadata has %d entries, want name and og", len(meta))
	}
	if !plutus.Equal(meta[0].Key, keyName) || !plutus.Equal(meta[1].Key, keyOG) {
		return HandleDatum{}, fmt.Errorf("metadata keys must be name then og")
	}
	var h HandleDatum
	if h.Name, err = plutus.AsBytes(meta[0].Value, -1); err != nil {
		return HandleDatum{}, fmt.Errorf("name: %w", err)
	}
	if h.OG, err = plutus.AsInt64(meta[1].Value); err != nil {
		return HandleDatum{}, fmt.Errorf("og: %w", err)
	}
	if h.Version, err = plutus.AsInt64(f[1]); err != nil {
		return HandleDatum{}, fmt.Errorf("version: %w", err)
	}
	h.Extra = f[2]
	return h, nil
}

// UnmarshalHandleDatum decodes an encoded reference datum.
func UnmarshalHandleDatum(b []byte) (HandleDatum, error) {
	return unmarshal("handle datum", b, HandleDatumFromData)
}
