// Package crypto provides the hash functions and signatures used by the
// ledger model: BLAKE3 for transaction ids, BLAKE2b for trie digests and
// credentials, Schnorr/secp256k1 for witnesses.
package crypto

import (
	"github.com/Klingon-tech/handlemint/pkg/types"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Script hash domain tag, prepended to script bytes before hashing.
const scriptTag = 0x03

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// Blake2b256 computes a BLAKE2b-256 digest of the concatenated inputs.
func Blake2b256(data ...[]byte) types.Hash {
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		h.Write(d)
	}
	var out types.Hash
	h.Sum(out[:0])
	return out
}

// Blake2b224 computes a BLAKE2b-224 digest of the concatenated inputs.
func Blake2b224(data ...[]byte) types.Hash28 {
	h, _ := blake2b.New(types.Hash28Size, nil)
	for _, d := range data {
		h.Write(d)
	}
	var out types.Hash28
	h.Sum(out[:0])
	return out
}

// KeyHash derives the credential of a compressed public key.
func KeyHash(pubKey []byte) types.Hash28 {
	return Blake2b224(pubKey)
}

// ScriptHash derives the credential of a serialized script.
func ScriptHash(script []byte) types.Hash28 {
	return Blake2b224([]byte{scriptTag}, script)
}

// AddressFromPubKey derives the key-locked address of a compressed public key.
func AddressFromPubKey(pubKey []byte) types.Address {
	return types.KeyAddress(KeyHash(pubKey))
}
