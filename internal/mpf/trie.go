// Package mpf implements a radix-16 Merkle Patricia Forestry: an
// authenticated set of byte-string keys whose 32-byte root commits to
// every key/value pair, with compact membership and insertion proofs.
//
// Keys are placed by the BLAKE2b-256 digest of the key, values are
// committed by the BLAKE2b-256 digest of the value. Tries are persistent:
// Insert and Delete return a new trie and leave the receiver untouched.
package mpf

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Trie errors.
var (
	ErrKeyExists   = errors.New("key already present")
	ErrKeyNotFound = errors.New("key not found")
)

// node is a leaf or a branch. Digests are computed once at construction.
type node interface {
	digest() types.Hash
}

type leaf struct {
	key   []byte
	path  types.Hash
	value types.Hash
	hash  types.Hash
}

func (l *leaf) digest() types.Hash { return l.hash }

type branch struct {
	prefix   []byte // digits shared by every key below this branch
	children [Radix]node
	root     types.Hash // merkle root of the children
	hash     types.Hash
}

func (b *branch) digest() types.Hash { return b.hash }

func newLeaf(key []byte, path, value types.Hash, cursor int) *leaf {
	return &leaf{
		key:   key,
		path:  path,
		value: value,
		hash:  leafHash(path, value, cursor),
	}
}

// relocate returns l rehashed for a new cursor.
func (l *leaf) relocate(cursor int) *leaf {
	return newLeaf(l.key, l.path, l.value, cursor)
}

func newBranch(prefix []byte, children [Radix]node) *branch {
	var slots [Radix]types.Hash
	for i, c := range children {
		if c != nil {
			slots[i] = c.digest()
		}
	}
	b := &branch{prefix: prefix, children: children, root: merkleRoot(slots)}
	b.hash = branchHash(prefix, b.root)
	return b
}

// withPrefix returns b with a new prefix and the same children. Child
// cursors are unchanged by construction, so only the branch digest moves.
func (b *branch) withPrefix(prefix []byte) *branch {
	return &branch{
		prefix:   prefix,
		children: b.children,
		root:     b.root,
		hash:     branchHash(prefix, b.root),
	}
}

func (b *branch) count() int {
	n := 0
	for _, c := range b.children {
		if c != nil {
			n++
		}
	}
	return n
}

// Trie is an immutable Merkle Patricia Forestry.
type Trie struct {
	root node
	size int
}

// New returns an empty trie.
func New() *Trie {
	return &Trie{}
}

// Path returns the trie location of key.
func Path(key []byte) types.Hash {
	return crypto.Blake2b256(key)
}

// ValueDigest returns the committed form of value.
func ValueDigest(value []byte) types.Hash {
	return crypto.Blake2b256(value)
}

// Root returns the trie digest. The empty trie has the null hash.
func (t *Trie) Root() types.Hash {
	if t.root == nil {
		return NullHash
	}
	return t.root.digest()
}

// Len returns the number of keys.
func (t *Trie) Len() int {
	return t.size
}

// IsEmpty reports whether the trie holds no keys.
func (t *Trie) IsEmpty() bool {
	return t.root == nil
}

// Has reports whether key is present.
func (t *Trie) Has(key []byte) bool {
	_, ok := t.lookup(Path(key))
	return ok
}

// Get returns the value digest stored under key.
func (t *Trie) Get(key []byte) (types.Hash, bool) {
	l, ok := t.lookup(Path(key))
	if !ok {
		return types.Hash{}, false
	}
	return l.value, true
}

func (t *Trie) lookup(path types.Hash) (*leaf, bool) {
	n, cursor := t.root, 0
	for n != nil {
		switch v := n.(type) {
		case *leaf:
			if v.path == path {
				return v, true
			}
			return nil, false
		case *branch:
			if !bytes.Equal(v.prefix, nibbles(path[:], cursor, cursor+len(v.prefix))) {
				return nil, false
			}
			cursor += len(v.prefix)
			n = v.children[nibble(path[:], cursor)]
			cursor++
		}
	}
	return nil, false
}

// Insert returns a trie with key bound to value.
// Returns ErrKeyExists if key is already present.
func (t *Trie) Insert(key, value []byte) (*Trie, error) {
	path := Path(key)
	k := slices.Clone(key)
	root, err := insert(t.root, 0, k, path, ValueDigest(value))
	if err != nil {
		return nil, fmt.Errorf("insert %q: %w", key, err)
	}
	return &Trie{root: root, size: t.size + 1}, nil
}

func insert(n node, cursor int, key []byte, path, value types.Hash) (node, error) {
	switch v := n.(type) {
	case nil:
		return newLeaf(key, path, value, cursor), nil

	case *leaf:
		if v.path == path {
			return nil, ErrKeyExists
		}
		// Split at the first digit where the two paths diverge.
		i := cursor
		for nibble(v.path[:], i) == nibble(path[:], i) {
			i++
		}
		var children [Radix]node
		children[nibble(v.path[:], i)] = v.relocate(i + 1)
		children[nibble(path[:], i)] = newLeaf(key, path, value, i+1)
		return newBranch(nibbles(path[:], cursor, i), children), nil

	case *branch:
		for j, d := range v.prefix {
			if nibble(path[:], cursor+j) == d {
				continue
			}
			// The new key leaves the shared prefix at digit j.
			var children [Radix]node
			children[d] = v.withPrefix(slices.Clone(v.prefix[j+1:]))
			children[nibble(path[:], cursor+j)] = newLeaf(key, path, value, cursor+j+1)
			return newBranch(slices.Clone(v.prefix[:j]), children), nil
		}
		at := cursor + len(v.prefix)
		slot := nibble(path[:], at)
		child, err := insert(v.children[slot], at+1, key, path, value)
		if err != nil {
			return nil, err
		}
		children := v.children
		children[slot] = child
		return newBranch(v.prefix, children), nil
	}
	return nil, fmt.Errorf("unexpected node type %T", n)
}

// Delete returns a trie without key.
// Returns ErrKeyNotFound if key is absent.
func (t *Trie) Delete(key []byte) (*Trie, error) {
	root, err := remove(t.root, 0, Path(key))
	if err != nil {
		return nil, fmt.Errorf("delete %q: %w", key, err)
	}
	return &Trie{root: root, size: t.size - 1}, nil
}

func remove(n node, cursor int, path types.Hash) (node, error) {
	switch v := n.(type) {
	case nil:
		return nil, ErrKeyNotFound

	case *leaf:
		if v.path != path {
			return nil, ErrKeyNotFound
		}
		return nil, nil

	case *branch:
		if !bytes.Equal(v.prefix, nibbles(path[:], cursor, cursor+len(v.prefix))) {
			return nil, ErrKeyNotFound
		}
		at := cursor + len(v.prefix)
		slot := nibble(path[:], at)
		child, err := remove(v.children[slot], at+1, path)
		if err != nil {
			return nil, err
		}
		children := v.children
		children[slot] = child

		b := &branch{children: children}
		if b.count() >= 2 {
			return newBranch(v.prefix, children), nil
		}
		// A single survivor is hoisted into this position.
		for s, c := range children {
			switch only := c.(type) {
			case *leaf:
				return only.relocate(cursor), nil
			case *branch:
				prefix := make([]byte, 0, len(v.prefix)+1+len(only.prefix))
				prefix = append(prefix, v.prefix...)
				prefix = append(prefix, byte(s))
				prefix = append(prefix, only.prefix...)
				return only.withPrefix(prefix), nil
			}
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected node type %T", n)
}

// Keys returns every key in ascending path order.
func (t *Trie) Keys() [][]byte {
	var out [][]byte
	walk(t.root, func(l *leaf) {
		out = append(out, slices.Clone(l.key))
	})
	return out
}

func walk(n node, fn func(*leaf)) {
	switch v := n.(type) {
	case *leaf:
		fn(v)
	case *branch:
		for _, c := range v.children {
			walk(c, fn)
		}
	}
}

// Prove returns the proof for key. When key is present the proof shows
// membership under Root. When key is absent the proof is the one key
// would have once inserted: excluding it reproduces Root, including it
// yields the root after insertion.
func (t *Trie) Prove(key []byte) (Proof, error) {
	target := t
	if !t.Has(key) {
		var err error
		target, err = t.Insert(key, nil)
		if err != nil {
			return nil, err
		}
	}
	steps, err := prove(target.root, 0, Path(key))
	if err != nil {
		return nil, fmt.Errorf("prove %q: %w", key, err)
	}
	return steps, nil
}

func prove(n node, cursor int, path types.Hash) (Proof, error) {
	switch v := n.(type) {
	case *leaf:
		if v.path != path {
			return nil, ErrKeyNotFound
		}
		return Proof{}, nil

	case *branch:
		skip := len(v.prefix)
		at := cursor + skip
		slot := int(nibble(path[:], at))

		var step Step
		if v.count() == 2 {
			for s, c := range v.children {
				if s == slot || c == nil {
					continue
				}
				switch sib := c.(type) {
				case *leaf:
					step = LeafStep{Skip: skip, Key: sib.path, Value: sib.value}
				case *branch:
					step = ForkStep{Skip: skip, Neighbor: Neighbor{
						Nibble: byte(s),
						Prefix: slices.Clone(sib.prefix),
						Root:   sib.root,
					}}
				}
			}
		} else {
			var slots [Radix]types.Hash
			for i, c := range v.children {
				if c != nil {
					slots[i] = c.digest()
				}
			}
			step = BranchStep{Skip: skip, Neighbors: merkleNeighbors(slots, slot)}
		}

		rest, err := prove(v.children[slot], at+1, path)
		if err != nil {
			return nil, err
		}
		return append(Proof{step}, rest...), nil
	}
	return nil, ErrKeyNotFound
}
