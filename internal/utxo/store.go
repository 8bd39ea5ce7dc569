package utxo

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/storage"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// ErrNotFound is returned for outpoints that are not in the set.
var ErrNotFound = errors.New("utxo not found")

// Key prefixes for the UTXO store.
var (
	prefixUTXO  = []byte("u/") // u/<txid><index> -> UTXO JSON
	prefixAddr  = []byte("a/") // a/<address><txid><index> -> empty (index)
	prefixAsset = []byte("t/") // t/<policy><namelen><name><txid><index> -> empty (index)
)

const outpointSize = types.HashSize + 4

// Store implements Set backed by a storage.DB.
type Store struct {
	db storage.DB
}

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// utxoKey builds a storage key for an outpoint: "u/" + txid(32) + index(4).
func utxoKey(op types.Outpoint) []byte {
	return append(append([]byte{}, prefixUTXO...), op.Key()...)
}

// addrPrefix builds the address index prefix: "a/" + addr(29).
func addrPrefix(addr types.Address) []byte {
	return append(append([]byte{}, prefixAddr...), addr.Bytes()...)
}

// addrKey builds an address index key: "a/" + addr(29) + txid(32) + index(4).
func addrKey(addr types.Address, op types.Outpoint) []byte {
	return append(addrPrefix(addr), op.Key()...)
}

// assetPrefix builds the asset index prefix: "t/" + policy(28) + len(1) + name.
func assetPrefix(a types.Asset) []byte {
	key := append(append([]byte{}, prefixAsset...), a.Policy[:]...)
	key = append(key, byte(len(a.Name)))
	return append(key, a.Name...)
}

func assetKey(a types.Asset, op types.Outpoint) []byte {
	return append(assetPrefix(a), op.Key()...)
}

// outpointSuffix decodes the trailing outpoint of an index key.
func outpointSuffix(key []byte) (types.Outpoint, bool) {
	if len(key) < outpointSize {
		return types.Outpoint{}, false
	}
	tail := key[len(key)-outpointSize:]
	var op types.Outpoint
	copy(op.TxID[:], tail[:types.HashSize])
	op.Index = binary.BigEndian.Uint32(tail[types.HashSize:])
	return op, true
}

// Get retrieves a UTXO by its outpoint.
func (s *Store) Get(outpoint types.Outpoint) (*UTXO, error) {
	data, err := s.db.Get(utxoKey(outpoint))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, outpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	var u UTXO
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return &u, nil
}

// Put stores a UTXO and updates the address and asset indexes.
func (s *Store) Put(u *UTXO) error {
	b := storage.NewBatch(s.db)
	if err := putBatch(b, u); err != nil {
		return err
	}
	return b.Commit()
}

func putBatch(b storage.Batch, u *UTXO) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}
	if err := b.Put(utxoKey(u.Outpoint), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	if err := b.Put(addrKey(u.Output.Address, u.Outpoint), []byte{}); err != nil {
		return fmt.Errorf("utxo index put: %w", err)
	}
	for _, a := range u.Output.Assets {
		if err := b.Put(assetKey(a.Asset, u.Outpoint), []byte{}); err != nil {
			return fmt.Errorf("asset index put: %w", err)
		}
	}
	return nil
}

// Delete removes a UTXO and its index entries.
func (s *Store) Delete(outpoint types.Outpoint) error {
	b := storage.NewBatch(s.db)
	if err := s.deleteBatch(b, outpoint); err != nil {
		return err
	}
	return b.Commit()
}

func (s *Store) deleteBatch(b storage.Batch, outpoint types.Outpoint) error {
	// Read first to clean up secondary indexes.
	u, err := s.Get(outpoint)
	if err == nil {
		b.Delete(addrKey(u.Output.Address, u.Outpoint))
		for _, a := range u.Output.Assets {
			b.Delete(assetKey(a.Asset, u.Outpoint))
		}
	}
	if err := b.Delete(utxoKey(outpoint)); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	return nil
}

// Apply removes spent and stores created in one atomic batch.
func (s *Store) Apply(spent []types.Outpoint, created []*UTXO) error {
	b := storage.NewBatch(s.db)
	for _, op := range spent {
		if err := s.deleteBatch(b, op); err != nil {
			return err
		}
	}
	for _, u := range created {
		if err := putBatch(b, u); err != nil {
			return err
		}
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("utxo apply: %w", err)
	}
	return nil
}

// Has checks if a UTXO exists for the given outpoint.
func (s *Store) Has(outpoint types.Outpoint) (bool, error) {
	return s.db.Has(utxoKey(outpoint))
}

// GetUTXO returns the output at outpoint, for transaction validation.
func (s *Store) GetUTXO(outpoint types.Outpoint) (*tx.Output, error) {
	u, err := s.Get(outpoint)
	if err != nil {
		return nil, err
	}
	return &u.Output, nil
}

// HasUTXO reports whether outpoint is unspent. Storage errors count as absent.
func (s *Store) HasUTXO(outpoint types.Outpoint) bool {
	ok, err := s.Has(outpoint)
	return err == nil && ok
}

// ForEach iterates over all UTXOs in the store.
func (s *Store) ForEach(fn func(*UTXO) error) error {
	return s.db.ForEach(prefixUTXO, func(key, value []byte) error {
		var u UTXO
		if err := json.Unmarshal(value, &u); err != nil {
			return fmt.Errorf("utxo unmarshal: %w", err)
		}
		return fn(&u)
	})
}

// ClearAll removes all UTXOs and their secondary indexes.
func (s *Store) ClearAll() error {
	var keys [][]byte
	for _, prefix := range [][]byte{prefixUTXO, prefixAddr, prefixAsset} {
		if err := s.db.ForEach(prefix, func(key, _ []byte) error {
			k := make([]byte, len(key))
			copy(k, key)
			keys = append(keys, k)
			return nil
		}); err != nil {
			return fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}
	b := storage.NewBatch(s.db)
	for _, key := range keys {
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("delete utxo key: %w", err)
		}
	}
	return b.Commit()
}

// GetByAddress returns all UTXOs belonging to the given address, in
// outpoint order.
func (s *Store) GetByAddress(addr types.Address) ([]*UTXO, error) {
	utxos, err := s.scanIndex(addrPrefix(addr))
	if err != nil {
		return nil, fmt.Errorf("scan address index: %w", err)
	}
	return utxos, nil
}

// GetByAsset returns all UTXOs holding asset, in outpoint order.
func (s *Store) GetByAsset(asset types.Asset) ([]*UTXO, error) {
	utxos, err := s.scanIndex(assetPrefix(asset))
	if err != nil {
		return nil, fmt.Errorf("scan asset index: %w", err)
	}
	return utxos, nil
}

func (s *Store) scanIndex(prefix []byte) ([]*UTXO, error) {
	var utxos []*UTXO
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		if len(key) != len(prefix)+outpointSize {
			return nil // Longer asset name sharing the prefix, or malformed.
		}
		op, _ := outpointSuffix(key)
		u, err := s.Get(op)
		if err != nil {
			return nil // UTXO may have been spent, skip.
		}
		utxos = append(utxos, u)
		return nil
	})
	return utxos, err
}
