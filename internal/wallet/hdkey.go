package wallet

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
	"github.com/tyler-smith/go-bip32"
)

// BIP-44 path of minter keys: m/44'/1815'/account'/0/index.
const (
	PurposeBIP44    = bip32.FirstHardenedChild + 44
	CoinTypeHandles = bip32.FirstHardenedChild + 1815
	ChangeExternal  = 0
)

// ErrPublicOnly is returned when a signer is requested from a neutered key.
var ErrPublicOnly = errors.New("key has no private part")

// HDKey is a BIP-32 hierarchical deterministic key.
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates the master key of a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DerivePath derives along indices; hardened indices include bip32.FirstHardenedChild.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	cur := k.key
	for _, idx := range indices {
		child, err := cur.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
		cur = child
	}
	return &HDKey{key: cur}, nil
}

// DeriveMinter derives the minter key at m/44'/1815'/account'/0/index.
func (k *HDKey) DeriveMinter(account, index uint32) (*HDKey, error) {
	return k.DerivePath(PurposeBIP44, CoinTypeHandles, bip32.FirstHardenedChild+account, ChangeExternal, index)
}

// PrivateKeyBytes returns the 32-byte private key, or nil for a public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *HDKey) PublicKeyBytes() []byte {
	return k.key.PublicKey().Key
}

// KeyHash returns the 28-byte hash that names this key on the ledger.
func (k *HDKey) KeyHash() types.Hash28 {
	return crypto.KeyHash(k.PublicKeyBytes())
}

// Address returns the key-locked address of this key.
func (k *HDKey) Address() types.Address {
	return crypto.AddressFromPubKey(k.PublicKeyBytes())
}

// Signer returns the private key for signing transactions.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	priv := k.PrivateKeyBytes()
	if priv == nil {
		return nil, ErrPublicOnly
	}
	return crypto.PrivateKeyFromBytes(priv)
}

// IsPrivate reports whether the key holds a private part.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth, 0 for the master key.
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}

// Neuter returns a public-only copy.
func (k *HDKey) Neuter() *HDKey {
	return &HDKey{key: k.key.PublicKey()}
}
