package index

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/mpf"
	"github.com/Klingon-tech/handlemint/internal/storage"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Session stages insertions against a snapshot of the index. Nothing is
// visible to the index or written to storage until Commit.
type Session struct {
	idx    *Index
	base   *mpf.Trie
	trie   *mpf.Trie
	names  [][]byte
	values [][]byte
	closed bool
}

// Begin starts a session on the current state of the index.
func (idx *Index) Begin() *Session {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return &Session{idx: idx, base: idx.trie, trie: idx.trie}
}

// BaseRoot returns the root the session started from.
func (s *Session) BaseRoot() types.Hash {
	return s.base.Root()
}

// Root returns the staged root.
func (s *Session) Root() types.Hash {
	return s.trie.Root()
}

// Has reports whether name is present in the staged state.
func (s *Session) Has(name []byte) bool {
	return s.trie.Has(name)
}

// Insert stages name bound to value. Returns an error wrapping
// ErrDuplicateKey when name is already present, leaving the session as it was.
func (s *Session) Insert(name, value []byte) error {
	if s.closed {
		return ErrSessionClosed
	}
	next, err := insertName(s.trie, name, value)
	if err != nil {
		return err
	}
	s.trie = next
	s.names = append(s.names, slices.Clone(name))
	s.values = append(s.values, slices.Clone(value))
	return nil
}

// Prove returns the proof for name under the staged root.
func (s *Session) Prove(name []byte) (mpf.Proof, error) {
	return s.trie.Prove(name)
}

// Staged returns the names inserted in this session, in insertion order.
func (s *Session) Staged() [][]byte {
	out := make([][]byte, len(s.names))
	for i, n := range s.names {
		out[i] = slices.Clone(n)
	}
	return out
}

// Commit flushes the staged names, the new root and the batch journal in
// one storage batch, then publishes the staged state to the index.
func (s *Session) Commit() error {
	if s.closed {
		return ErrSessionClosed
	}
	idx := s.idx
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.trie.Root() != s.base.Root() {
		return fmt.Errorf("%w: index at %s, session began at %s", ErrStaleSession, idx.trie.Root(), s.base.Root())
	}

	journal := &Journal{PrevRoot: s.base.Root(), Root: s.trie.Root()}
	b := storage.NewBatch(idx.db)
	for i, name := range s.names {
		if err := putLeaf(b, name, s.values[i]); err != nil {
			return storageErr("commit", err)
		}
		journal.Names = append(journal.Names, hex.EncodeToString(name))
	}
	raw, err := json.Marshal(journal)
	if err != nil {
		return storageErr("commit", err)
	}
	if err := b.Put(journalKey, raw); err != nil {
		return storageErr("commit", err)
	}
	if err := idx.flush(b, s.trie, "commit"); err != nil {
		return err
	}
	idx.journal = journal
	s.closed = true

	log.Index.Info().
		Int("names", len(s.names)).
		Str("prev_root", journal.PrevRoot.String()).
		Str("root", journal.Root.String()).
		Msg("Committed batch")
	return nil
}

// Discard abandons the session.
func (s *Session) Discard() {
	s.closed = true
}
