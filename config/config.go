// Package config handles handlemint configuration.
//
// Configuration is split into two categories:
//   - Protocol: the deployment a minter serves; must match the ledger
//   - Node settings: runtime configuration, can vary per process
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Klingon-tech/handlemint/pkg/types"
)

// NetworkType identifies the ledger network.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Preview NetworkType = "preview"
	Devnet  NetworkType = "devnet"
)

// AddressHRP returns the bech32 prefix addresses use on the network.
func (n NetworkType) AddressHRP() string {
	if n == Mainnet {
		return types.MainnetHRP
	}
	return types.TestnetHRP
}

// Ledger backends.
const (
	LedgerEmulator = "emulator" // Local emulator stored under LedgerDir.
	LedgerRPC      = "rpc"      // Remote JSON-RPC ledger.
)

// Submission routes for assembled batches.
const (
	SubmitLedger = "ledger" // Submit through the ledger backend.
	SubmitP2P    = "p2p"    // Gossip to relaying peers.
)

// =============================================================================
// Node Configuration (runtime, per-process settings)
// =============================================================================

// Config holds the full runtime configuration.
type Config struct {
	Network NetworkType `toml:"network"`
	DataDir string      `toml:"datadir"`

	Storage  StorageConfig  `toml:"storage"`
	Ledger   LedgerConfig   `toml:"ledger"`
	RPC      RPCConfig      `toml:"rpc"`
	P2P      P2PConfig      `toml:"p2p"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Minter   MinterConfig   `toml:"minter"`
	Batch    BatchConfig    `toml:"batch"`
	Protocol ProtocolConfig `toml:"protocol"`
	Log      LogConfig      `toml:"log"`
}

// StorageConfig selects the key-value backend for the index and the emulator.
type StorageConfig struct {
	Backend string `toml:"backend"` // "badger" or "pebble"
}

// LedgerConfig selects where ledger state comes from.
type LedgerConfig struct {
	Backend string   `toml:"backend"` // LedgerEmulator or LedgerRPC
	URL     string   `toml:"url"`     // JSON-RPC endpoint for LedgerRPC
	Timeout Duration `toml:"timeout"`
}

// RPCConfig holds RPC server settings. The server only runs in front of
// the emulator backend.
type RPCConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	Port        int      `toml:"port"`
	AllowedIPs  []string `toml:"allowed"`
	CORSOrigins []string `toml:"cors"` // Allowed CORS origins ("*" = all).
	Faucet      bool     `toml:"faucet"`
}

// P2PConfig holds peer-to-peer relay settings.
type P2PConfig struct {
	Enabled    bool     `toml:"enabled"`
	ListenAddr string   `toml:"listen"`
	Port       int      `toml:"port"`
	Seeds      []string `toml:"seeds"`
	MaxPeers   int      `toml:"maxpeers"`
	NoDiscover bool     `toml:"nodiscover"`
	DHTServer  bool     `toml:"dhtserver"` // Run DHT in server mode (for seeds)
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// MinterConfig names the keystore entry that signs batches.
type MinterConfig struct {
	Key string `toml:"key"`
}

// BatchConfig holds orchestrator settings.
type BatchConfig struct {
	Interval  Duration `toml:"interval"`
	Collision string   `toml:"collision"` // "exclude" or "abort"
	MaxOrders int      `toml:"max_orders"`
	Submit    string   `toml:"submit"` // SubmitLedger or SubmitP2P
	DryRun    bool     `toml:"dry_run"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	JSON       bool   `toml:"json"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Duration is a time.Duration written as "30s" in config files.
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.handlemint
//	macOS:   ~/Library/Application Support/Handlemint
//	Windows: %APPDATA%\Handlemint
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handlemint"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Handlemint")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Handlemint")
		}
		return filepath.Join(home, "AppData", "Roaming", "Handlemint")
	default:
		return filepath.Join(home, ".handlemint")
	}
}

// NetworkDir returns the network-specific data directory.
func (c *Config) NetworkDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// IndexDir returns the authenticated index database directory.
func (c *Config) IndexDir() string {
	return filepath.Join(c.NetworkDir(), "index")
}

// LedgerDir returns the emulator ledger database directory.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.NetworkDir(), "ledger")
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDir(), "keystore")
}

// P2PDir returns the directory holding the node identity and peer bans.
func (c *Config) P2PDir() string {
	return filepath.Join(c.NetworkDir(), "p2p")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "handlemint.toml")
}

// EnsureDataDirs creates every directory the node writes to.
func (c *Config) EnsureDataDirs() error {
	for _, dir := range []string{c.NetworkDir(), c.KeystoreDir(), c.LogsDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}
