package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Only flags the user actually set
// are applied on top of the file configuration.
type Flags struct {
	fs *pflag.FlagSet

	// Core
	Network string
	DataDir string
	Config  string

	// Ledger
	Ledger    string
	LedgerURL string
	Storage   string

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string
	Faucet     bool

	// P2P
	P2P        bool
	P2PPort    int
	Seeds      string
	NoDiscover bool
	DHTServer  bool

	// Metrics
	MetricsAddr string

	// Minter and batch
	MinterKey string
	Interval  time.Duration
	Collision string
	MaxOrders int
	Submit    string
	DryRun    bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool
}

// Register adds every flag to fs.
func (f *Flags) Register(fs *pflag.FlagSet) {
	f.fs = fs

	fs.StringVar(&f.Network, "network", "mainnet", "Network: mainnet, preview or devnet")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory (default: platform specific)")
	fs.StringVar(&f.Config, "config", "", "Config file (default: <datadir>/handlemint.toml)")

	fs.StringVar(&f.Ledger, "ledger", "", "Ledger backend: emulator or rpc")
	fs.StringVar(&f.LedgerURL, "ledger-url", "", "JSON-RPC ledger endpoint")
	fs.StringVar(&f.Storage, "storage", "", "Storage backend: badger or pebble")

	fs.BoolVar(&f.RPC, "rpc", false, "Serve the emulator over JSON-RPC")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Comma-separated IPs/CIDRs allowed to call RPC")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Comma-separated allowed CORS origins")
	fs.BoolVar(&f.Faucet, "faucet", false, "Enable dev_fund and dev_placeOrder")

	fs.BoolVar(&f.P2P, "p2p", false, "Enable transaction gossip")
	fs.IntVar(&f.P2PPort, "p2p-port", 0, "P2P listen port")
	fs.StringVar(&f.Seeds, "seeds", "", "Comma-separated seed multiaddrs")
	fs.BoolVar(&f.NoDiscover, "nodiscover", false, "Disable DHT and mDNS discovery")
	fs.BoolVar(&f.DHTServer, "dht-server", false, "Run the DHT in server mode")

	fs.StringVar(&f.MetricsAddr, "metrics", "", "Serve Prometheus metrics on this address")

	fs.StringVar(&f.MinterKey, "key", "", "Keystore entry signing batches")
	fs.DurationVar(&f.Interval, "interval", 0, "Time between batches")
	fs.StringVar(&f.Collision, "collision", "", "Collision policy: exclude or abort")
	fs.IntVar(&f.MaxOrders, "max-orders", 0, "Orders taken per batch (0 = no cap)")
	fs.StringVar(&f.Submit, "submit", "", "Submit batches via ledger or p2p")
	fs.BoolVar(&f.DryRun, "dry-run", false, "Assemble without committing or submitting")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.LogFile, "log-file", "", "Also log to this file (rotated)")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Log JSON to the console")
}

func (f *Flags) changed(name string) bool {
	if f.fs == nil {
		return false
	}
	fl := f.fs.Lookup(name)
	return fl != nil && fl.Changed
}

// Apply copies the flags that were set onto cfg.
func (f *Flags) Apply(cfg *Config) {
	if f.changed("ledger") {
		cfg.Ledger.Backend = f.Ledger
	}
	if f.changed("ledger-url") {
		cfg.Ledger.URL = f.LedgerURL
	}
	if f.changed("storage") {
		cfg.Storage.Backend = f.Storage
	}

	if f.changed("rpc") {
		cfg.RPC.Enabled = f.RPC
	} else if f.changed("ledger") && f.Ledger == LedgerRPC {
		// A client of a remote ledger has nothing to serve.
		cfg.RPC.Enabled = false
	}
	if f.changed("rpc-addr") {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.changed("rpc-port") {
		cfg.RPC.Port = f.RPCPort
	}
	if f.changed("rpc-allowed") {
		cfg.RPC.AllowedIPs = splitList(f.RPCAllowed)
	}
	if f.changed("rpc-cors") {
		cfg.RPC.CORSOrigins = splitList(f.RPCCORS)
	}
	if f.changed("faucet") {
		cfg.RPC.Faucet = f.Faucet
	}

	if f.changed("p2p") {
		cfg.P2P.Enabled = f.P2P
	}
	if f.changed("p2p-port") {
		cfg.P2P.Port = f.P2PPort
	}
	if f.changed("seeds") {
		cfg.P2P.Seeds = splitList(f.Seeds)
	}
	if f.changed("nodiscover") {
		cfg.P2P.NoDiscover = f.NoDiscover
	}
	if f.changed("dht-server") {
		cfg.P2P.DHTServer = f.DHTServer
	}

	if f.changed("metrics") {
		cfg.Metrics.Enabled = f.MetricsAddr != ""
		cfg.Metrics.Addr = f.MetricsAddr
	}

	if f.changed("key") {
		cfg.Minter.Key = f.MinterKey
	}
	if f.changed("interval") {
		cfg.Batch.Interval = Duration{f.Interval}
	}
	if f.changed("collision") {
		cfg.Batch.Collision = f.Collision
	}
	if f.changed("max-orders") {
		cfg.Batch.MaxOrders = f.MaxOrders
	}
	if f.changed("submit") {
		cfg.Batch.Submit = f.Submit
	}
	if f.changed("dry-run") {
		cfg.Batch.DryRun = f.DryRun
	}

	if f.changed("log-level") {
		cfg.Log.Level = f.LogLevel
	}
	if f.changed("log-file") {
		cfg.Log.File = f.LogFile
	}
	if f.changed("log-json") {
		cfg.Log.JSON = f.LogJSON
	}
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
