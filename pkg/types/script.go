package types

// ScriptType identifies the kind of credential that locks an output.
type ScriptType uint8

const (
	ScriptTypeP2PKH ScriptType = 0x01 // Pay to verification key hash
	ScriptTypeP2SH  ScriptType = 0x02 // Pay to script hash
)

// String returns a human-readable name for the script type.
func (st ScriptType) String() string {
	switch st {
	case ScriptTypeP2PKH:
		return "P2PKH"
	case ScriptTypeP2SH:
		return "P2SH"
	default:
		return "Unknown"
	}
}

// Valid reports whether st is a known script type.
func (st ScriptType) Valid() bool {
	return st == ScriptTypeP2PKH || st == ScriptTypeP2SH
}
