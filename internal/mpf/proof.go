package mpf

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Proof verification errors.
var (
	ErrInvalidProof  = errors.New("invalid proof")
	ErrRootMismatch  = errors.New("proof does not match root")
	ErrProofTooDeep  = errors.New("proof exceeds key length")
	ErrNeighborClash = errors.New("neighbor shares the key's branch digit")
)

// maxCursor is the number of digits in a key path.
const maxCursor = 2 * types.HashSize

// Step is one level of a proof, from the root towards the key.
type Step interface {
	skip() int
}

// BranchStep proves a level whose branch holds more than one neighbor.
// Neighbors are the sibling digests of the key's slot in the 16-way
// merkle tree, top-down: the 8-slot half, then 4, 2 and 1.
type BranchStep struct {
	Skip      int
	Neighbors [4]types.Hash
}

// ForkStep proves a level whose only neighbor is a branch.
type ForkStep struct {
	Skip     int
	Neighbor Neighbor
}

// LeafStep proves a level whose only neighbor is a leaf.
// Key is the neighbor's path and Value its value digest.
type LeafStep struct {
	Skip  int
	Key   types.Hash
	Value types.Hash
}

// Neighbor describes a sibling branch: its slot digit, its prefix digits
// and the merkle root of its children.
type Neighbor struct {
	Nibble byte
	Prefix []byte
	Root   types.Hash
}

func (s BranchStep) skip() int { return s.Skip }
func (s ForkStep) skip() int   { return s.Skip }
func (s LeafStep) skip() int   { return s.Skip }

// Proof is the ordered list of steps from the root to a key.
type Proof []Step

// Including returns the root of a trie that contains key bound to value,
// as witnessed by the proof.
func (p Proof) Including(key, value []byte) (types.Hash, error) {
	path := Path(key)
	return p.including(path, ValueDigest(value), 0)
}

func (p Proof) including(path, value types.Hash, cursor int) (types.Hash, error) {
	if len(p) == 0 {
		return leafHash(path, value, cursor), nil
	}
	next, err := nextCursor(p[0], cursor)
	if err != nil {
		return types.Hash{}, err
	}
	root, err := p[1:].including(path, value, next)
	if err != nil {
		return types.Hash{}, err
	}
	return doStep(p[0], path, cursor, next, root)
}

// Excluding returns the root of a trie that does not contain key, as
// witnessed by a proof produced for key.
func (p Proof) Excluding(key []byte) (types.Hash, error) {
	return p.excluding(Path(key), 0)
}

func (p Proof) excluding(path types.Hash, cursor int) (types.Hash, error) {
	if len(p) == 0 {
		return NullHash, nil
	}
	next, err := nextCursor(p[0], cursor)
	if err != nil {
		return types.Hash{}, err
	}

	if len(p) == 1 {
		// Removing the key collapses the last level onto its only neighbor.
		switch s := p[0].(type) {
		case ForkStep:
			prefix := nibbles(path[:], cursor, next-1)
			prefix = append(prefix, s.Neighbor.Nibble)
			prefix = append(prefix, s.Neighbor.Prefix...)
			return combine(prefix, s.Neighbor.Root[:]), nil
		case LeafStep:
			return leafHash(s.Key, s.Value, cursor), nil
		}
	}

	root, err := p[1:].excluding(path, next)
	if err != nil {
		return types.Hash{}, err
	}
	return doStep(p[0], path, cursor, next, root)
}

func nextCursor(s Step, cursor int) (int, error) {
	if s == nil || s.skip() < 0 {
		return 0, fmt.Errorf("%w: malformed step", ErrInvalidProof)
	}
	next := cursor + 1 + s.skip()
	if next > maxCursor {
		return 0, ErrProofTooDeep
	}
	return next, nil
}

// doStep folds the digest of the key's subtree at next into the digest
// of the level that starts at cursor.
func doStep(s Step, path types.Hash, cursor, next int, root types.Hash) (types.Hash, error) {
	slot := int(nibble(path[:], next-1))
	prefix := nibbles(path[:], cursor, next-1)

	switch v := s.(type) {
	case BranchStep:
		return branchHash(prefix, merkleFromNeighbors(slot, root, v.Neighbors)), nil
	case ForkStep:
		if int(v.Neighbor.Nibble) >= Radix {
			return types.Hash{}, fmt.Errorf("%w: neighbor digit %d", ErrInvalidProof, v.Neighbor.Nibble)
		}
		return doFork(prefix, slot, root, v.Neighbor)
	case LeafStep:
		n := Neighbor{
			Nibble: nibble(v.Key[:], next-1),
			Prefix: suffix(v.Key[:], next),
			Root:   v.Value,
		}
		return doFork(prefix, slot, root, n)
	}
	return types.Hash{}, fmt.Errorf("%w: unknown step %T", ErrInvalidProof, s)
}

func doFork(prefix []byte, slot int, root types.Hash, n Neighbor) (types.Hash, error) {
	if int(n.Nibble) == slot {
		return types.Hash{}, ErrNeighborClash
	}
	neighbor := combine(n.Prefix, n.Root[:])
	return branchHash(prefix, sparseMerkle(slot, root, int(n.Nibble), neighbor)), nil
}

// VerifyMembership checks that key bound to value is in the trie with root.
func (p Proof) VerifyMembership(root types.Hash, key, value []byte) error {
	got, err := p.Including(key, value)
	if err != nil {
		return err
	}
	if got != root {
		return fmt.Errorf("%w: computed %s, expected %s", ErrRootMismatch, got, root)
	}
	return nil
}

// VerifyInsert checks that inserting key bound to value moves the trie
// from oldRoot to newRoot.
func (p Proof) VerifyInsert(oldRoot, newRoot types.Hash, key, value []byte) error {
	before, err := p.Excluding(key)
	if err != nil {
		return err
	}
	if before != oldRoot {
		return fmt.Errorf("%w: key not absent under %s", ErrRootMismatch, oldRoot)
	}
	return p.VerifyMembership(newRoot, key, value)
}
