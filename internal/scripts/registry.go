package scripts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/storage"
	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrUnknownRole is returned when looking up a role that is not recorded.
	ErrUnknownRole = errors.New("unknown script role")
	// ErrHashMismatch is returned when a reference's script bytes do not hash to its recorded hash.
	ErrHashMismatch = errors.New("script hash mismatch")
)

// Ref locates the reference copy of a deployed script.
type Ref struct {
	Role     Role           `json:"role"`
	Hash     types.Hash28   `json:"hash"`
	Outpoint types.Outpoint `json:"outpoint"`
}

// Address returns the address locked by the referenced script.
func (r Ref) Address() types.Address {
	return types.ScriptAddress(r.Hash)
}

// Registry resolves deployed scripts by role.
type Registry interface {
	Lookup(ctx context.Context, role Role) (Ref, error)
}

// Store is a Registry persisted in a storage.DB under the "s/" prefix.
type Store struct {
	db storage.DB
}

var refPrefix = []byte("s/")

// NewStore creates a registry backed by db.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

func refKey(role Role) []byte {
	return append(append([]byte{}, refPrefix...), role...)
}

// Put records ref, replacing any earlier reference for the same role.
func (s *Store) Put(ref Ref) error {
	if !ref.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, ref.Role)
	}
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal script ref: %w", err)
	}
	return s.db.Put(refKey(ref.Role), data)
}

// Lookup returns the reference recorded for role.
func (s *Store) Lookup(_ context.Context, role Role) (Ref, error) {
	data, err := s.db.Get(refKey(role))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Ref{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
		return Ref{}, fmt.Errorf("get script ref %q: %w", role, err)
	}
	var ref Ref
	if err := json.Unmarshal(data, &ref); err != nil {
		return Ref{}, fmt.Errorf("unmarshal script ref %q: %w", role, err)
	}
	return ref, nil
}

// All returns every recorded reference.
func (s *Store) All() ([]Ref, error) {
	var refs []Ref
	err := s.db.ForEach(refPrefix, func(_, value []byte) error {
		var ref Ref
		if err := json.Unmarshal(value, &ref); err != nil {
			return err
		}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan script refs: %w", err)
	}
	return refs, nil
}

// CachedRegistry memoizes lookups of another Registry. Failed lookups are
// not cached.
type CachedRegistry struct {
	inner Registry
	cache *lru.Cache[Role, Ref]
}

// NewCachedRegistry wraps inner with an LRU cache holding up to size refs.
func NewCachedRegistry(inner Registry, size int) (*CachedRegistry, error) {
	cache, err := lru.New[Role, Ref](size)
	if err != nil {
		return nil, fmt.Errorf("script cache: %w", err)
	}
	return &CachedRegistry{inner: inner, cache: cache}, nil
}

// Lookup returns the cached reference for role, fetching it on a miss.
func (c *CachedRegistry) Lookup(ctx context.Context, role Role) (Ref, error) {
	if ref, ok := c.cache.Get(role); ok {
		return ref, nil
	}
	ref, err := c.inner.Lookup(ctx, role)
	if err != nil {
		return Ref{}, err
	}
	c.cache.Add(role, ref)
	log.Ledger.Debug().
		Str("role", string(role)).
		Str("hash", ref.Hash.String()).
		Str("outpoint", ref.Outpoint.String()).
		Msg("Cached script reference")
	return ref, nil
}

// Purge drops every cached reference.
func (c *CachedRegistry) Purge() {
	c.cache.Purge()
}

// LookupAll resolves every role in Roles.
func LookupAll(ctx context.Context, r Registry) (map[Role]Ref, error) {
	refs := make(map[Role]Ref, len(Roles))
	for _, role := range Roles {
		ref, err := r.Lookup(ctx, role)
		if err != nil {
			return nil, err
		}
		refs[role] = ref
	}
	return refs, nil
}

// CheckRef verifies that script bytes found at a reference hash to its recorded hash.
func CheckRef(ref Ref, script []byte) error {
	if _, err := Parse(script); err != nil {
		return err
	}
	if h := crypto.ScriptHash(script); h != ref.Hash {
		return fmt.Errorf("%w: %s ref %s, script %s", ErrHashMismatch, ref.Role, ref.Hash, h)
	}
	return nil
}
