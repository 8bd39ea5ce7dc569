// Package node wires a handlemint process together from its configuration:
// ledger backend, authenticated index, script registry, gossip relay,
// RPC server and metrics. It can be embedded in any binary.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Klingon-tech/handlemint/config"
	"github.com/Klingon-tech/handlemint/internal/assembler"
	"github.com/Klingon-tech/handlemint/internal/batch"
	"github.com/Klingon-tech/handlemint/internal/index"
	"github.com/Klingon-tech/handlemint/internal/ledger"
	"github.com/Klingon-tech/handlemint/internal/ledger/emulator"
	klog "github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/metrics"
	"github.com/Klingon-tech/handlemint/internal/p2p"
	"github.com/Klingon-tech/handlemint/internal/rpc"
	"github.com/Klingon-tech/handlemint/internal/rpcclient"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/internal/storage"
	"github.com/Klingon-tech/handlemint/internal/wallet"
	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/types"
	"github.com/rs/zerolog"
)

// registryCacheSize holds every script role with room to spare.
const registryCacheSize = 16

// Node is an initialized handlemint process.
type Node struct {
	cfg        *config.Config
	logger     zerolog.Logger
	stateAsset types.Asset

	// Ledger
	ledgerDB storage.DB // emulator backend only
	emu      *emulator.Emulator
	ledger   ledger.Ledger
	registry *scripts.CachedRegistry

	// Index, opened on first use so a relay process never locks it.
	idxMu sync.Mutex
	idx   *index.Index

	// Networking
	p2pNode   *p2p.Node
	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Node. It opens the ledger backend and prepares P2P and
// RPC, but starts nothing. Call Start for the network services.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Paths and address HRP ────────────────────────────────────
	cfg.DataDir = expandHome(cfg.DataDir)
	types.SetAddressHRP(cfg.Network.AddressHRP())

	// ── 2. Logger ───────────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(cfg.LogsDir(), "handlemint.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, klog.FileOptions{
		Path:       logFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return newNode(cfg, klog.WithComponent("node"))
}

// newNode builds the node on an already initialized logger.
func newNode(cfg *config.Config, logger zerolog.Logger) (*Node, error) {
	stateAsset, err := cfg.Protocol.Asset(cfg.Network)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:        cfg,
		logger:     logger,
		stateAsset: stateAsset,
		ctx:        ctx,
		cancel:     cancel,
	}

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("ledger", cfg.Ledger.Backend).
		Str("state_asset", stateAsset.Unit()).
		Msg("Starting handlemint")

	// ── 3. Ledger backend ───────────────────────────────────────────
	var registry scripts.Registry
	switch cfg.Ledger.Backend {
	case config.LedgerEmulator:
		db, err := storage.Open(cfg.Storage.Backend, cfg.LedgerDir())
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open ledger at %s: %w", cfg.LedgerDir(), err)
		}
		emu, err := emulator.New(db, emulator.DefaultParams)
		if err != nil {
			db.Close()
			cancel()
			return nil, fmt.Errorf("open emulator: %w", err)
		}
		n.ledgerDB, n.emu, n.ledger, registry = db, emu, emu, emu
		logger.Info().Str("path", cfg.LedgerDir()).Msg("Emulator ledger opened")
	case config.LedgerRPC:
		client := rpcclient.NewWithTimeout(cfg.Ledger.URL, cfg.Ledger.Timeout.Duration)
		n.ledger, registry = client, client
		logger.Info().Str("url", cfg.Ledger.URL).Msg("Using remote ledger")
	default:
		cancel()
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
	n.registry, err = scripts.NewCachedRegistry(registry, registryCacheSize)
	if err != nil {
		n.closeLedger()
		cancel()
		return nil, fmt.Errorf("script registry: %w", err)
	}

	// ── 4. P2P ──────────────────────────────────────────────────────
	if cfg.P2P.Enabled {
		pcfg := p2p.Config{
			ListenAddr: cfg.P2P.ListenAddr,
			Port:       cfg.P2P.Port,
			Seeds:      cfg.P2P.Seeds,
			MaxPeers:   cfg.P2P.MaxPeers,
			NoDiscover: cfg.P2P.NoDiscover,
			DHTServer:  cfg.P2P.DHTServer,
			NetworkID:  string(cfg.Network),
			Deployment: stateAsset.Unit(),
		}
		// Only the process owning the ledger keeps a stable identity and
		// persisted bans; a remote minter gossips from an ephemeral one.
		if n.emu != nil {
			pcfg.DataDir = cfg.P2PDir()
			pcfg.DB = storage.NewPrefixDB(n.ledgerDB, []byte("p/"))
		}
		n.p2pNode = p2p.New(pcfg)
		if n.emu != nil {
			n.p2pNode.RelayTo(n.emu)
			n.p2pNode.SetSlotFn(n.slot)
		}
	} else {
		logger.Debug().Msg("P2P disabled by config")
	}

	// ── 5. RPC server ───────────────────────────────────────────────
	if cfg.RPC.Enabled {
		if n.emu == nil {
			n.closeLedger()
			cancel()
			return nil, fmt.Errorf("rpc server requires the emulator ledger")
		}
		addr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		n.rpcServer = rpc.New(addr, n.emu, cfg.RPC)
		if cfg.RPC.Faucet {
			n.rpcServer.SetFaucet(n.emu)
		}
		if n.p2pNode != nil {
			n.rpcServer.SetRelay(n.p2pNode)
		}
	}
	return n, nil
}

// Start launches P2P, RPC and metrics.
func (n *Node) Start() error {
	if n.p2pNode != nil {
		if err := n.p2pNode.Start(); err != nil {
			return fmt.Errorf("start P2P: %w", err)
		}
		n.logger.Info().
			Str("id", n.p2pNode.ID().String()).
			Int("port", n.cfg.P2P.Port).
			Bool("discovery", !n.cfg.P2P.NoDiscover).
			Msg("P2P node started")
	}
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			if n.p2pNode != nil {
				n.p2pNode.Stop()
			}
			return fmt.Errorf("start RPC: %w", err)
		}
	}
	if n.cfg.Metrics.Enabled {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := metrics.Serve(n.ctx, n.cfg.Metrics.Addr); err != nil {
				n.logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}
	return nil
}

// Stop shuts everything down and closes storage.
func (n *Node) Stop() {
	n.cancel()
	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("RPC shutdown")
		}
	}
	if n.p2pNode != nil {
		if err := n.p2pNode.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("P2P shutdown")
		}
	}
	n.wg.Wait()

	n.idxMu.Lock()
	if n.idx != nil {
		if err := n.idx.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Index close")
		}
		n.idx = nil
	}
	n.idxMu.Unlock()
	n.closeLedger()
	n.logger.Info().Msg("Stopped")
}

func (n *Node) closeLedger() {
	if n.ledgerDB != nil {
		if err := n.ledgerDB.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Ledger close")
		}
		n.ledgerDB = nil
	}
}

// slot reports the emulator slot for P2P handshakes.
func (n *Node) slot() uint64 {
	p, err := n.emu.Params(n.ctx)
	if err != nil {
		return 0
	}
	return p.Slot
}

// Config returns the node configuration.
func (n *Node) Config() *config.Config { return n.cfg }

// StateAsset returns the token marking the commitment output.
func (n *Node) StateAsset() types.Asset { return n.stateAsset }

// Ledger returns the ledger backend.
func (n *Node) Ledger() ledger.Ledger { return n.ledger }

// Registry returns the cached script registry.
func (n *Node) Registry() scripts.Registry { return n.registry }

// Emulator returns the local emulator, or nil for a remote ledger.
func (n *Node) Emulator() *emulator.Emulator { return n.emu }

// P2P returns the gossip node, or nil when disabled.
func (n *Node) P2P() *p2p.Node { return n.p2pNode }

// RPCAddr returns the RPC listen address once started, or "".
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Index opens the authenticated index on first use.
func (n *Node) Index() (*index.Index, error) {
	n.idxMu.Lock()
	defer n.idxMu.Unlock()
	if n.idx != nil {
		return n.idx, nil
	}
	idx, err := index.Open(n.cfg.Storage.Backend, n.cfg.IndexDir())
	if err != nil {
		return nil, fmt.Errorf("open index at %s: %w", n.cfg.IndexDir(), err)
	}
	n.idx = idx
	metrics.IndexSize(idx.Len())
	n.logger.Info().
		Str("path", n.cfg.IndexDir()).
		Int("names", idx.Len()).
		Str("root", idx.Root().String()).
		Msg("Index opened")
	return idx, nil
}

// Keystore opens the minter keystore.
func (n *Node) Keystore() (*wallet.Keystore, error) {
	return wallet.NewKeystore(n.cfg.KeystoreDir())
}

// Deploy runs the emulator genesis for the configured protocol. Minters
// default to the given keys, the treasury to the first minter, and each
// minter receives Protocol.MinterFunds.
func (n *Node) Deploy(ctx context.Context, minters ...types.Hash28) (*emulator.Genesis, error) {
	if n.emu == nil {
		return nil, fmt.Errorf("deploy requires the emulator ledger")
	}
	p := n.cfg.Protocol
	seed, err := p.SeedOutpoint(n.cfg.Network)
	if err != nil {
		return nil, err
	}
	gcfg := emulator.GenesisConfig{
		Seed:     seed,
		Network:  string(n.cfg.Network),
		Minters:  p.Minters,
		Treasury: p.Treasury,
		Fees:     p.Fees,
	}
	if len(gcfg.Minters) == 0 {
		gcfg.Minters = minters
	}
	if gcfg.Treasury.IsZero() && len(gcfg.Minters) > 0 {
		gcfg.Treasury = types.KeyAddress(gcfg.Minters[0])
	}
	if p.MinterFunds > 0 {
		for _, m := range gcfg.Minters {
			gcfg.Funds = append(gcfg.Funds, emulator.Allocation{Address: types.KeyAddress(m), Value: p.MinterFunds})
		}
	}
	g, err := n.emu.Genesis(ctx, gcfg)
	if err != nil {
		return nil, err
	}
	if g.Deployment.StateAsset != n.stateAsset {
		return nil, fmt.Errorf("deployed state asset %s differs from configured %s",
			g.Deployment.StateAsset.Unit(), n.stateAsset.Unit())
	}
	n.registry.Purge()
	return g, nil
}

// submitter returns where assembled batches go.
func (n *Node) submitter() (ledger.Submitter, error) {
	if n.cfg.Batch.Submit != config.SubmitP2P {
		return n.ledger, nil
	}
	if n.p2pNode == nil {
		return nil, fmt.Errorf("batch.submit=%s but p2p is disabled", config.SubmitP2P)
	}
	return p2p.NewBroadcaster(n.p2pNode), nil
}

// Orchestrator builds a batch orchestrator signing with signer.
func (n *Node) Orchestrator(signer *crypto.PrivateKey) (*batch.Orchestrator, error) {
	idx, err := n.Index()
	if err != nil {
		return nil, err
	}
	policy, err := batch.ParseCollisionPolicy(n.cfg.Batch.Collision)
	if err != nil {
		return nil, err
	}
	sub, err := n.submitter()
	if err != nil {
		return nil, err
	}
	asm := assembler.New(n.ledger, n.ledger, signer.KeyHash())
	return batch.New(batch.Config{
		StateAsset: n.stateAsset,
		Collision:  policy,
		MaxOrders:  n.cfg.Batch.MaxOrders,
		DryRun:     n.cfg.Batch.DryRun,
	}, idx, n.ledger, sub, n.registry, asm, signer), nil
}

// Loop runs a batch every Batch.Interval until ctx is done. Empty and
// failed batches are logged and retried; a root mismatch stops the loop
// because only an operator can resolve it.
func (n *Node) Loop(ctx context.Context, signer *crypto.PrivateKey) error {
	orch, err := n.Orchestrator(signer)
	if err != nil {
		return err
	}
	interval := n.cfg.Batch.Interval.Duration
	n.logger.Info().Dur("interval", interval).Str("submit", n.cfg.Batch.Submit).Msg("Batch loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := n.runOnce(ctx, orch); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			n.logger.Info().Msg("Batch loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (n *Node) runOnce(ctx context.Context, orch *batch.Orchestrator) error {
	s, err := orch.Run(ctx)
	var mismatch *batch.PreconditionMismatchError
	switch {
	case err == nil:
		n.logger.Info().
			Int("minted", len(s.Accepted)).
			Int("rejected", len(s.Rejected)).
			Str("tx", s.TxHash.String()).
			Msg("Batch submitted")
	case errors.Is(err, batch.ErrNothingToMint):
		n.logger.Debug().Err(err).Msg("Nothing to mint")
	case errors.As(err, &mismatch):
		return err
	case ctx.Err() != nil:
	default:
		n.logger.Error().Err(err).Str("phase", s.Phase.String()).Msg("Batch failed, retrying next interval")
	}
	return nil
}
