package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

const keystoreVersion = 1

// Keystore errors.
var (
	ErrKeyExists   = errors.New("key already exists")
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyMismatch = errors.New("derived key does not match keystore record")
)

// KeyInfo is the public metadata of a stored minter key.
type KeyInfo struct {
	Name      string        `json:"name"`
	Account   uint32        `json:"account"`
	Index     uint32        `json:"index"`
	KeyHash   types.Hash28  `json:"key_hash"`
	Address   types.Address `json:"address"`
	CreatedAt time.Time     `json:"created_at"`
}

// keyFile is the on-disk JSON form of a minter key.
type keyFile struct {
	Version       int     `json:"version"`
	EncryptedSeed []byte  `json:"encrypted_seed"`
	Info          KeyInfo `json:"info"`
}

// Keystore keeps passphrase-encrypted minter seeds in a directory, one
// file per key.
type Keystore struct {
	dir string
}

// NewKeystore opens the keystore at dir, creating it if needed.
func NewKeystore(dir string) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{dir: dir}, nil
}

func (ks *Keystore) path(name string) string {
	return filepath.Join(ks.dir, name+".key")
}

// Create encrypts seed under password and records the minter key derived
// at (account, index).
func (ks *Keystore) Create(name string, seed, password []byte, params EncryptionParams, account, index uint32) (*KeyInfo, error) {
	path := ks.path(name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrKeyExists, name)
	}
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	key, err := master.DeriveMinter(account, index)
	if err != nil {
		return nil, err
	}
	sealed, err := Encrypt(seed, password, params)
	if err != nil {
		return nil, fmt.Errorf("encrypt seed: %w", err)
	}
	kf := keyFile{
		Version:       keystoreVersion,
		EncryptedSeed: sealed,
		Info: KeyInfo{
			Name:      name,
			Account:   account,
			Index:     index,
			KeyHash:   key.KeyHash(),
			Address:   key.Address(),
			CreatedAt: time.Now().UTC(),
		},
	}
	if err := writeKeyFile(path, &kf); err != nil {
		return nil, err
	}
	return &kf.Info, nil
}

// Info returns the metadata of key name without decrypting it.
func (ks *Keystore) Info(name string) (*KeyInfo, error) {
	kf, err := readKeyFile(ks.path(name))
	if err != nil {
		return nil, err
	}
	return &kf.Info, nil
}

// Seed decrypts and returns the seed of key name.
func (ks *Keystore) Seed(name string, password []byte) ([]byte, error) {
	kf, err := readKeyFile(ks.path(name))
	if err != nil {
		return nil, err
	}
	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("unlock %q: %w", name, err)
	}
	return seed, nil
}

// Signer unlocks key name and returns its signing key.
func (ks *Keystore) Signer(name string, password []byte) (*crypto.PrivateKey, error) {
	kf, err := readKeyFile(ks.path(name))
	if err != nil {
		return nil, err
	}
	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("unlock %q: %w", name, err)
	}
	defer wipe(seed)
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	key, err := master.DeriveMinter(kf.Info.Account, kf.Info.Index)
	if err != nil {
		return nil, err
	}
	if key.KeyHash() != kf.Info.KeyHash {
		return nil, fmt.Errorf("%w: %q", ErrKeyMismatch, name)
	}
	return key.Signer()
}

// List returns the names of all stored keys.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".key"); ok && !e.IsDir() {
			names = append(names, name)
		}
	}
	return names, nil
}

// Delete removes key name.
func (ks *Keystore) Delete(name string) error {
	if err := os.Remove(ks.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %q", ErrKeyNotFound, name)
		}
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

func writeKeyFile(path string, kf *keyFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	return nil
}

func readKeyFile(path string) (*keyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("read key: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	if kf.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported key version: %d", kf.Version)
	}
	return &kf, nil
}
