package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// UnlockMinter decrypts the configured minter key.
func (n *Node) UnlockMinter(password []byte) (*crypto.PrivateKey, error) {
	ks, err := n.Keystore()
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	key, err := ks.Signer(n.cfg.Minter.Key, password)
	if err != nil {
		return nil, fmt.Errorf("unlock minter %q: %w", n.cfg.Minter.Key, err)
	}
	n.logger.Info().
		Str("key", n.cfg.Minter.Key).
		Str("address", key.Address().String()).
		Msg("Minter key unlocked")
	return key, nil
}
