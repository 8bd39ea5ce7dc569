package index

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/storage"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Key prefixes for the persisted index.
var (
	leafPrefix = []byte("l/") // l/<path> -> leafRecord
	rootKey    = []byte("r")  // recorded root digest
	journalKey = []byte("j")  // last committed batch
)

// leafRecord is the persisted form of one indexed name.
type leafRecord struct {
	Name  []byte `json:"-"`
	Value []byte `json:"-"`
}

type leafRecordJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MarshalJSON encodes the record with hex-encoded fields.
func (r leafRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(leafRecordJSON{
		Name:  hex.EncodeToString(r.Name),
		Value: hex.EncodeToString(r.Value),
	})
}

// UnmarshalJSON decodes a record with hex-encoded fields.
func (r *leafRecord) UnmarshalJSON(data []byte) error {
	var j leafRecordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	name, err := hex.DecodeString(j.Name)
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}
	value, err := hex.DecodeString(j.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	r.Name, r.Value = name, value
	return nil
}

// Journal records the last committed batch so an operator can roll the
// index back when the matching ledger update never landed.
type Journal struct {
	PrevRoot types.Hash `json:"prev_root"`
	Root     types.Hash `json:"root"`
	Names    []string   `json:"names"` // hex-encoded
}

func leafKey(path types.Hash) []byte {
	key := make([]byte, 0, len(leafPrefix)+types.HashSize)
	key = append(key, leafPrefix...)
	return append(key, path[:]...)
}

func readRoot(db storage.DB) (types.Hash, bool, error) {
	raw, err := db.Get(rootKey)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Hash{}, false, nil
	}
	if err != nil {
		return types.Hash{}, false, err
	}
	h, err := types.BytesToHash(raw)
	if err != nil {
		return types.Hash{}, false, err
	}
	return h, true, nil
}

func readJournal(db storage.DB) (*Journal, error) {
	raw, err := db.Get(journalKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var j Journal
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}
	return &j, nil
}
