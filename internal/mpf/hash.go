package mpf

import (
	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// NullHash is the digest of an empty trie and of an empty branch slot.
var NullHash types.Hash

// Radix is the branching factor of every branch node.
const Radix = 16

// combine hashes the concatenation of two byte strings.
func combine(left, right []byte) types.Hash {
	return crypto.Blake2b256(left, right)
}

// nibble returns the 4-bit digit of path at index.
func nibble(path []byte, index int) byte {
	b := path[index/2]
	if index%2 == 0 {
		return b >> 4
	}
	return b & 0x0f
}

// nibbles returns the digits of path in [start, end), one per byte.
func nibbles(path []byte, start, end int) []byte {
	if end <= start {
		return []byte{}
	}
	out := make([]byte, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, nibble(path, i))
	}
	return out
}

// suffix encodes the remainder of path from cursor for hashing a leaf.
// Even cursors are marked with 0xff followed by the remaining bytes; odd
// cursors with 0x00, the half-byte digit, then the remaining bytes.
func suffix(path []byte, cursor int) []byte {
	if cursor%2 == 0 {
		rest := path[cursor/2:]
		out := make([]byte, 0, 1+len(rest))
		out = append(out, 0xff)
		return append(out, rest...)
	}
	rest := path[(cursor+1)/2:]
	out := make([]byte, 0, 2+len(rest))
	out = append(out, 0x00, nibble(path, cursor))
	return append(out, rest...)
}

// leafHash is the digest of a leaf sitting at cursor.
func leafHash(path, value types.Hash, cursor int) types.Hash {
	return combine(suffix(path[:], cursor), value[:])
}

// branchHash is the digest of a branch with the given prefix digits and
// merkle root of its children.
func branchHash(prefix []byte, root types.Hash) types.Hash {
	return combine(prefix, root[:])
}

// merkleLevels folds the 16 slot digests into a binary tree and returns
// every level, leaves first. Level 4 holds the single root.
func merkleLevels(slots [Radix]types.Hash) [5][]types.Hash {
	var levels [5][]types.Hash
	levels[0] = slots[:]
	for l := 1; l < 5; l++ {
		prev := levels[l-1]
		cur := make([]types.Hash, len(prev)/2)
		for i := range cur {
			cur[i] = combine(prev[2*i][:], prev[2*i+1][:])
		}
		levels[l] = cur
	}
	return levels
}

// merkleRoot returns the binary merkle root over 16 slot digests.
func merkleRoot(slots [Radix]types.Hash) types.Hash {
	return merkleLevels(slots)[4][0]
}

// merkleNeighbors returns the four sibling digests needed to rebuild the
// root from slot, ordered from the top of the tree down.
func merkleNeighbors(slots [Radix]types.Hash, slot int) [4]types.Hash {
	levels := merkleLevels(slots)
	return [4]types.Hash{
		levels[3][(slot>>3)^1],
		levels[2][(slot>>2)^1],
		levels[1][(slot>>1)^1],
		levels[0][slot^1],
	}
}

// merkleFromNeighbors rebuilds the 16-way root from the digest at slot and
// its top-down neighbors.
func merkleFromNeighbors(slot int, h types.Hash, neighbors [4]types.Hash) types.Hash {
	for level := 0; level < 4; level++ {
		sibling := neighbors[3-level]
		if (slot>>level)&1 == 0 {
			h = combine(h[:], sibling[:])
		} else {
			h = combine(sibling[:], h[:])
		}
	}
	return h
}

// sparseMerkle returns the 16-way root when only two slots are occupied.
func sparseMerkle(me int, meHash types.Hash, other int, otherHash types.Hash) types.Hash {
	var slots [Radix]types.Hash
	slots[me] = meHash
	slots[other] = otherHash
	return merkleRoot(slots)
}
