// Package index persists the authenticated set of minted names.
//
// The set lives in memory as an mpf.Trie and on disk as one record per
// name plus the recorded root. Mutations for a mint batch are staged in a
// Session and flushed atomically together with a journal of the batch.
package index

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/mpf"
	"github.com/Klingon-tech/handlemint/internal/storage"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// AuthenticatedIndex is a keyed set with a 32-byte root digest and
// membership proofs.
type AuthenticatedIndex interface {
	Insert(name, value []byte) error
	Delete(name []byte) error
	Prove(name []byte) (mpf.Proof, error)
	Root() types.Hash
	Has(name []byte) bool
}

// Index is the persistent AuthenticatedIndex. It is single-writer: every
// mutation holds the write lock until the storage write completes.
type Index struct {
	mu      sync.RWMutex
	db      storage.DB
	owned   bool // close db on Close
	trie    *mpf.Trie
	journal *Journal
}

var _ AuthenticatedIndex = (*Index)(nil)

// Open opens (or creates) the index stored at path.
func Open(backend, path string) (*Index, error) {
	db, err := storage.Open(backend, path)
	if err != nil {
		return nil, storageErr("open", err)
	}
	idx, err := Load(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	idx.owned = true
	return idx, nil
}

// Load rebuilds the index from db and checks it against the recorded root.
// A fresh database yields an empty index.
func Load(db storage.DB) (*Index, error) {
	trie := mpf.New()
	err := db.ForEach(leafPrefix, func(key, value []byte) error {
		var rec leafRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("leaf %x: %w", key[len(leafPrefix):], err)
		}
		if path := mpf.Path(rec.Name); string(key[len(leafPrefix):]) != string(path[:]) {
			return fmt.Errorf("leaf %x: stored under wrong path", key[len(leafPrefix):])
		}
		next, err := trie.Insert(rec.Name, rec.Value)
		if err != nil {
			return err
		}
		trie = next
		return nil
	})
	if err != nil {
		return nil, storageErr("load leaves", err)
	}

	recorded, ok, err := readRoot(db)
	if err != nil {
		return nil, storageErr("load root", err)
	}
	if ok && recorded != trie.Root() {
		return nil, storageErr("load root", fmt.Errorf("rebuilt root %s, recorded %s", trie.Root(), recorded))
	}
	if !ok && !trie.IsEmpty() {
		return nil, storageErr("load root", errors.New("leaves present but no recorded root"))
	}

	journal, err := readJournal(db)
	if err != nil {
		return nil, storageErr("load journal", err)
	}

	log.Index.Info().
		Int("names", trie.Len()).
		Str("root", trie.Root().String()).
		Msg("Index loaded")

	return &Index{db: db, trie: trie, journal: journal}, nil
}

// Close releases the underlying database if the index opened it.
func (idx *Index) Close() error {
	if idx.owned {
		return idx.db.Close()
	}
	return nil
}

// Root returns the current root digest.
func (idx *Index) Root() types.Hash {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trie.Root()
}

// Len returns the number of indexed names.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trie.Len()
}

// Has reports whether name is indexed.
func (idx *Index) Has(name []byte) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trie.Has(name)
}

// Names returns every indexed name.
func (idx *Index) Names() [][]byte {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trie.Keys()
}

// Journal returns the last committed batch, or nil.
func (idx *Index) Journal() *Journal {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.journal == nil {
		return nil
	}
	j := *idx.journal
	return &j
}

// Insert indexes name bound to value and flushes it to storage.
// Returns an error wrapping ErrDuplicateKey when name is already present;
// the index is unchanged in that case.
func (idx *Index) Insert(name, value []byte) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	next, err := insertName(idx.trie, name, value)
	if err != nil {
		return err
	}
	b := storage.NewBatch(idx.db)
	if err := putLeaf(b, name, value); err != nil {
		return storageErr("insert", err)
	}
	return idx.flushOutsideBatch(b, next, "insert")
}

// Delete removes name from the index. This is an administrative path
// used to roll back names whose ledger update never landed.
func (idx *Index) Delete(name []byte) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	next, err := idx.trie.Delete(name)
	if err != nil {
		if errors.Is(err, mpf.ErrKeyNotFound) {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return err
	}
	b := storage.NewBatch(idx.db)
	if err := b.Delete(leafKey(mpf.Path(name))); err != nil {
		return storageErr("delete", err)
	}
	return idx.flushOutsideBatch(b, next, "delete")
}

// Prove returns the proof for name under the current root. For an absent
// name the proof is the one it would have after insertion.
func (idx *Index) Prove(name []byte) (mpf.Proof, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trie.Prove(name)
}

// Revert undoes the last committed batch. The index must still be at the
// batch's resulting root; afterwards it is back at the batch's previous root.
func (idx *Index) Revert() ([][]byte, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	j := idx.journal
	if j == nil {
		return nil, ErrNoJournal
	}
	if idx.trie.Root() != j.Root {
		return nil, fmt.Errorf("index root %s does not match journaled root %s", idx.trie.Root(), j.Root)
	}

	trie := idx.trie
	b := storage.NewBatch(idx.db)
	names := make([][]byte, 0, len(j.Names))
	for _, h := range j.Names {
		name, err := hex.DecodeString(h)
		if err != nil {
			return nil, storageErr("revert", fmt.Errorf("journal name %q: %w", h, err))
		}
		next, err := trie.Delete(name)
		if err != nil {
			return nil, fmt.Errorf("revert %q: %w", name, err)
		}
		trie = next
		if err := b.Delete(leafKey(mpf.Path(name))); err != nil {
			return nil, storageErr("revert", err)
		}
		names = append(names, name)
	}
	if trie.Root() != j.PrevRoot {
		return nil, fmt.Errorf("revert produced root %s, journal expects %s", trie.Root(), j.PrevRoot)
	}
	if err := b.Delete(journalKey); err != nil {
		return nil, storageErr("revert", err)
	}
	if err := idx.flush(b, trie, "revert"); err != nil {
		return nil, err
	}
	idx.journal = nil

	log.Index.Warn().
		Int("names", len(names)).
		Str("root", trie.Root().String()).
		Msg("Reverted last batch")
	return names, nil
}

// flushOutsideBatch flushes a single-name change. The journaled batch no
// longer describes the latest change, so it is dropped with it.
func (idx *Index) flushOutsideBatch(b storage.Batch, next *mpf.Trie, op string) error {
	if idx.journal != nil {
		if err := b.Delete(journalKey); err != nil {
			return storageErr(op, err)
		}
	}
	if err := idx.flush(b, next, op); err != nil {
		return err
	}
	idx.journal = nil
	return nil
}

// flush writes the root for next into b, commits, and swaps the in-memory
// trie. Callers hold the write lock.
func (idx *Index) flush(b storage.Batch, next *mpf.Trie, op string) error {
	root := next.Root()
	var err error
	if next.IsEmpty() {
		err = b.Delete(rootKey)
	} else {
		err = b.Put(rootKey, root[:])
	}
	if err != nil {
		return storageErr(op, err)
	}
	if err := b.Commit(); err != nil {
		return storageErr(op, err)
	}
	idx.trie = next
	return nil
}

func insertName(trie *mpf.Trie, name, value []byte) (*mpf.Trie, error) {
	next, err := trie.Insert(name, value)
	if err != nil {
		if errors.Is(err, mpf.ErrKeyExists) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, name)
		}
		return nil, err
	}
	return next, nil
}

func putLeaf(b storage.Batch, name, value []byte) error {
	raw, err := json.Marshal(leafRecord{Name: name, Value: value})
	if err != nil {
		return err
	}
	return b.Put(leafKey(mpf.Path(name)), raw)
}
