package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleDB implements DB using Pebble.
type PebbleDB struct {
	db *pebble.DB
}

// NewPebble creates a new Pebble database at the given path.
func NewPebble(path string) (*PebbleDB, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	return &PebbleDB{db: db}, nil
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()
	return clone(val), nil
}

// Put stores a key-value pair.
func (p *PebbleDB) Put(key, value []byte) error {
	if err := p.db.Set(key, value, &pebble.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("pebble put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (p *PebbleDB) Delete(key []byte) error {
	if err := p.db.Delete(key, &pebble.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (p *PebbleDB) Has(key []byte) (bool, error) {
	_, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pebble has: %w", err)
	}
	closer.Close()
	return true, nil
}

// ForEach iterates over all keys with the given prefix.
func (p *PebbleDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	opts := &pebble.IterOptions{LowerBound: prefix}
	if upper := prefixUpperBound(prefix); upper != nil {
		opts.UpperBound = upper
	}
	iter, err := p.db.NewIter(opts)
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(clone(iter.Key()), clone(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

// NewBatch returns a Pebble write batch.
func (p *PebbleDB) NewBatch() Batch {
	return &pebbleBatch{b: p.db.NewBatch()}
}

// Close closes the database.
func (p *PebbleDB) Close() error {
	return p.db.Close()
}

type pebbleBatch struct {
	b *pebble.Batch
}

func (pb *pebbleBatch) Put(key, value []byte) error {
	return pb.b.Set(key, value, nil)
}

func (pb *pebbleBatch) Delete(key []byte) error {
	return pb.b.Delete(key, nil)
}

func (pb *pebbleBatch) Commit() error {
	if err := pb.b.Commit(&pebble.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("pebble batch commit: %w", err)
	}
	return pb.b.Close()
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, or nil when no such key exists.
func prefixUpperBound(prefix []byte) []byte {
	end := clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
