package config

import (
	"time"
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Storage: StorageConfig{Backend: "badger"},
		Ledger: LedgerConfig{
			Backend: LedgerRPC,
			URL:     "http://127.0.0.1:8645",
			Timeout: Duration{30 * time.Second},
		},
		RPC: RPCConfig{
			Enabled:    false,
			Addr:       "127.0.0.1",
			Port:       8645,
			AllowedIPs: []string{"127.0.0.1"},
		},
		P2P: P2PConfig{
			Enabled:    false,
			ListenAddr: "0.0.0.0",
			Port:       30403,
			MaxPeers:   50,
			// Seeds are multiaddr strings, e.g.
			//   "/ip4/203.0.113.1/tcp/30403/p2p/12D3KooW..."
			Seeds: []string{},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Minter: MinterConfig{Key: "minter"},
		Batch: BatchConfig{
			Interval:  Duration{time.Minute},
			Collision: "exclude",
			MaxOrders: 40,
			Submit:    SubmitLedger,
		},
		Protocol: DefaultProtocol(Mainnet),
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// DefaultPreview returns the default configuration for the preview network.
func DefaultPreview() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Preview
	cfg.Ledger.URL = "http://127.0.0.1:8745"
	cfg.RPC.Port = 8745
	cfg.P2P.Port = 30404
	cfg.Protocol = DefaultProtocol(Preview)
	return cfg
}

// DefaultDevnet returns a configuration running against a local emulator
// with its RPC server and faucet enabled.
func DefaultDevnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Devnet
	cfg.Ledger.Backend = LedgerEmulator
	cfg.Ledger.URL = "http://127.0.0.1:8845"
	cfg.RPC.Enabled = true
	cfg.RPC.Port = 8845
	cfg.RPC.Faucet = true
	cfg.P2P.Port = 30405
	cfg.P2P.NoDiscover = true
	cfg.Batch.Interval = Duration{10 * time.Second}
	cfg.Protocol = DefaultProtocol(Devnet)
	cfg.Log.Level = "debug"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Preview:
		return DefaultPreview()
	case Devnet:
		return DefaultDevnet()
	default:
		return DefaultMainnet()
	}
}
