package config

import (
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/storage"
)

// Validate checks the configuration for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet, Preview, Devnet:
	default:
		return fmt.Errorf("network must be %q, %q or %q", Mainnet, Preview, Devnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir is empty")
	}

	switch cfg.Storage.Backend {
	case storage.BackendBadger, storage.BackendPebble, storage.BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be %q or %q", storage.BackendBadger, storage.BackendPebble)
	}

	switch cfg.Ledger.Backend {
	case LedgerEmulator:
		if cfg.Network == Mainnet {
			return fmt.Errorf("ledger.backend=%s is not available on mainnet", LedgerEmulator)
		}
	case LedgerRPC:
		if cfg.Ledger.URL == "" {
			return fmt.Errorf("ledger.backend=%s requires ledger.url", LedgerRPC)
		}
		if cfg.RPC.Enabled {
			return fmt.Errorf("rpc.enabled requires ledger.backend=%s", LedgerEmulator)
		}
	default:
		return fmt.Errorf("ledger.backend must be %q or %q", LedgerEmulator, LedgerRPC)
	}

	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.P2P.Port < 0 || cfg.P2P.Port > 65535 {
		return fmt.Errorf("p2p.port must be in range [0, 65535]")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return fmt.Errorf("metrics.enabled requires metrics.addr")
	}

	switch cfg.Batch.Collision {
	case "exclude", "abort":
	default:
		return fmt.Errorf("batch.collision must be exclude or abort")
	}
	switch cfg.Batch.Submit {
	case SubmitLedger:
	case SubmitP2P:
		if !cfg.P2P.Enabled {
			return fmt.Errorf("batch.submit=%s requires p2p.enabled", SubmitP2P)
		}
	default:
		return fmt.Errorf("batch.submit must be %q or %q", SubmitLedger, SubmitP2P)
	}
	if cfg.Batch.MaxOrders < 0 {
		return fmt.Errorf("batch.max_orders must not be negative")
	}
	if cfg.Batch.Interval.Duration <= 0 {
		return fmt.Errorf("batch.interval must be positive")
	}

	if _, err := cfg.Protocol.Asset(cfg.Network); err != nil {
		return err
	}
	if err := cfg.Protocol.Fees.Validate(); err != nil {
		return fmt.Errorf("protocol.fees: %w", err)
	}
	return nil
}
