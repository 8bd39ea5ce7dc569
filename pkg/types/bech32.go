package types

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// encodeBech32 encodes payload bytes under hrp.
func encodeBech32(hrp string, payload []byte) (string, error) {
	groups, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("bech32: %w", err)
	}
	return bech32.Encode(hrp, groups)
}

// decodeBech32 is the inverse of encodeBech32. The 90-character BIP-173
// limit is not applied.
func decodeBech32(s string) (string, []byte, error) {
	hrp, groups, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return "", nil, fmt.Errorf("bech32: %w", err)
	}
	payload, err := bech32.ConvertBits(groups, 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("bech32: %w", err)
	}
	return hrp, payload, nil
}
