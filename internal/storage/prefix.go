package storage

import "bytes"

// PrefixDB is a namespace inside another DB: every key is stored under a
// fixed prefix, and iteration never leaves it. Close does not close the
// underlying DB.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB returns the namespace prefix of inner.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: clone(prefix)}
}

func (p *PrefixDB) key(k []byte) []byte {
	return append(clone(p.prefix), k...)
}

func (p *PrefixDB) Get(key []byte) ([]byte, error) { return p.inner.Get(p.key(key)) }
func (p *PrefixDB) Put(key, value []byte) error { return p.inner.Put(p.key(key), value) }
func (p *PrefixDB) Delete(key []byte) error { return p.inner.Delete(p.key(key)) }
func (p *PrefixDB) Has(key []byte) (bool, error) { return p.inner.Has(p.key(key)) }
func (p *PrefixDB) Close() error { return nil }

// ForEach iterates the namespace; fn sees keys without the namespace prefix.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return p.inner.ForEach(p.key(prefix), func(key, value []byte) error {
		return fn(bytes.TrimPrefix(key, p.prefix), value)
	})
}

// NewBatch returns a batch of the underlying DB that writes inside the namespace.
func (p *PrefixDB) NewBatch() Batch {
	return prefixBatch{inner: NewBatch(p.inner), p: p}
}

type prefixBatch struct {
	inner Batch
	p     *PrefixDB
}

func (b prefixBatch) Put(key, value []byte) error { return b.inner.Put(b.p.key(key), value) }
func (b prefixBatch) Delete(key []byte) error { return b.inner.Delete(b.p.key(key)) }
func (b prefixBatch) Commit() error { return b.inner.Commit() }
