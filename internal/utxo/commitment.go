package utxo

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/mpf"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Commitment computes an authenticated digest of the whole UTXO set: the
// root of a trie keyed by outpoint whose values are the encoded outputs.
// Returns a zero hash for an empty set.
func Commitment(store *Store) (types.Hash, error) {
	trie := mpf.New()
	err := store.ForEach(func(u *UTXO) error {
		value, err := json.Marshal(&u.Output)
		if err != nil {
			return err
		}
		next, err := trie.Insert(u.Outpoint.Key(), value)
		if err != nil {
			return err
		}
		trie = next
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
	}
	return trie.Root(), nil
}
