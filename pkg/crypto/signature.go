package crypto

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// Signature verification failures.
var (
	ErrBadPublicKey = errors.New("malformed public key")
	ErrBadSignature = errors.New("malformed signature")
	ErrSigMismatch  = errors.New("signature does not match")
)

// Signer produces vkey witnesses. A minter signs every batch with one.
type Signer interface {
	// Sign produces a Schnorr signature over a 32-byte hash.
	Sign(hash []byte) ([]byte, error)
	// PublicKey returns the compressed 33-byte public key.
	PublicKey() []byte
	// KeyHash returns the credential the signature satisfies.
	KeyHash() types.Hash28
}

// PrivateKey is a secp256k1 key producing EC-Schnorr signatures.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

var _ Signer = (*PrivateKey)(nil)

// GenerateKey creates a random key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes loads a 32-byte secret scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// Sign produces a 64-byte Schnorr signature over a 32-byte hash.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := schnorr.Sign(pk.key, hash)
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

func (pk *PrivateKey) KeyHash() types.Hash28 {
	return KeyHash(pk.PublicKey())
}

// Address returns the enterprise address locked by the key.
func (pk *PrivateKey) Address() types.Address {
	return types.KeyAddress(pk.KeyHash())
}

// Serialize returns the 32-byte secret scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero overwrites the secret in memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// Verify checks a Schnorr signature over hash by a compressed public key.
func Verify(hash, signature, publicKey []byte) error {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPublicKey, err)
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !sig.Verify(hash, pubKey) {
		return ErrSigMismatch
	}
	return nil
}

// VerifySignature reports whether Verify succeeds.
func VerifySignature(hash, signature, publicKey []byte) bool {
	return Verify(hash, signature, publicKey) == nil
}
