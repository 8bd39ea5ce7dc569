// Package handle defines the asset identities minted for a name.
//
// Every handle is a pair of tokens under the handle policy: a reference
// token (label 100) locked with the handle's metadata datum and a user
// token (label 222) delivered to the requester.
package handle

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/pkg/types"
)

// MaxNameLen is the longest accepted handle.
const MaxNameLen = 15

// Asset name label prefixes.
var (
	ReferenceLabel = []byte{0x00, 0x06, 0x43, 0xb0}
	UserLabel      = []byte{0x00, 0x0d, 0xe1, 0x40}
)

// IndexValue is the value bound to every minted name in the index.
var IndexValue = []byte{}

var (
	ErrEmptyName   = errors.New("handle name is empty")
	ErrNameTooLong = errors.New("handle name too long")
	ErrInvalidChar = errors.New("handle name contains an invalid character")
)

// ValidateName checks name is 1..MaxNameLen characters of a-z, 0-9, '-', '_' or '.'.
func ValidateName(name []byte) error {
	if len(name) == 0 {
		return ErrEmptyName
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: %d > %d", ErrNameTooLong, len(name), MaxNameLen)
	}
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return fmt.Errorf("%w: %q at %d", ErrInvalidChar, c, i)
		}
	}
	return nil
}

// ReferenceAsset returns the reference token of name under policy.
func ReferenceAsset(policy types.Hash28, name []byte) types.Asset {
	return types.NewAsset(policy, labelled(ReferenceLabel, name))
}

// UserAsset returns the user token of name under policy.
func UserAsset(policy types.Hash28, name []byte) types.Asset {
	return types.NewAsset(policy, labelled(UserLabel, name))
}

// Unit renders policy || label || name in hex.
func Unit(policy types.Hash28, label, name []byte) string {
	return policy.String() + hex.EncodeToString(label) + hex.EncodeToString(name)
}

// Pair returns both tokens of name, reference first.
func Pair(policy types.Hash28, name []byte) [2]types.Asset {
	return [2]types.Asset{ReferenceAsset(policy, name), UserAsset(policy, name)}
}

// NameOf strips a known label from an asset name. ok is false when the
// asset carries neither label.
func NameOf(asset types.Asset) (name []byte, ok bool) {
	b := asset.NameBytes()
	if len(b) < len(UserLabel) {
		return nil, false
	}
	prefix, rest := b[:len(UserLabel)], b[len(UserLabel):]
	if !bytes.Equal(prefix, ReferenceLabel) && !bytes.Equal(prefix, UserLabel) {
		return nil, false
	}
	return rest, true
}

func labelled(label, name []byte) []byte {
	out := make([]byte, 0, len(label)+len(name))
	out = append(out, label...)
	return append(out, name...)
}
