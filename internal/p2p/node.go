// Package p2p relays signed transactions between handlemint nodes over
// libp2p GossipSub, with DHT and mDNS discovery and peer banning.
package p2p

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	klog "github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/storage"
	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"
	"github.com/rs/zerolog"
)

const (
	// dhtDiscoveryInterval is how often DHT FindPeers runs.
	dhtDiscoveryInterval = 30 * time.Second

	// peerConnectTimeout bounds a single dial.
	peerConnectTimeout = 5 * time.Second

	// seedRetryInterval is how often seeds are redialled while no peer is connected.
	seedRetryInterval = 10 * time.Second
)

// Config holds P2P node configuration.
type Config struct {
	ListenAddr string
	Port       int
	Seeds      []string
	MaxPeers   int
	NoDiscover bool
	DHTServer  bool       // Run DHT in server mode (for seeds).
	NetworkID  string     // Isolates discovery and handshakes per network.
	Deployment string     // State token unit; peers on another deployment are banned.
	DataDir    string     // Directory for the persistent node identity ("" = ephemeral).
	DB         storage.DB // Ban persistence (nil = in memory only).
}

// Node is a libp2p host joined to the transaction topic.
type Node struct {
	host   host.Host
	pubsub *pubsub.PubSub
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	topicTx   *pubsub.Topic
	subTx     *pubsub.Subscription
	txHandler func(peer.ID, []byte)

	mu    sync.RWMutex
	peers map[peer.ID]*Peer

	BanManager *BanManager
	dht        *dht.IpfsDHT // nil if NoDiscover
	slotFn     func() uint64
}

// New creates a new P2P node with the given config.
func New(cfg Config) *Node {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
		logger: klog.WithComponent("p2p"),
		peers:  make(map[peer.ID]*Peer),
	}
	var store *BanStore
	if cfg.DB != nil {
		store = NewBanStore(cfg.DB)
	}
	n.BanManager = NewBanManager(store, n)
	return n
}

// rendezvous returns the DHT/mDNS discovery namespace for this node.
func (n *Node) rendezvous() string {
	if n.config.NetworkID != "" {
		return "handlemint/" + n.config.NetworkID
	}
	return "handlemint"
}

// Start initializes the libp2p host, pubsub, and begins listening.
func (n *Node) Start() error {
	n.BanManager.LoadBans()

	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/%s/tcp/%d", n.config.ListenAddr, n.config.Port)),
		libp2p.ConnectionGater(&banGater{banMgr: n.BanManager}),
	}
	if n.config.DataDir != "" {
		privKey, err := loadOrCreateIdentity(n.config.DataDir)
		if err != nil {
			return fmt.Errorf("load p2p identity: %w", err)
		}
		opts = append(opts, libp2p.Identity(privKey))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return fmt.Errorf("create libp2p host: %w", err)
	}
	n.host = h
	h.Network().Notify(&connNotifier{node: n})

	// The DHT comes first so GossipSub can use it as a peer source.
	if !n.config.NoDiscover {
		if err := n.initDHT(); err != nil {
			h.Close()
			return fmt.Errorf("init dht: %w", err)
		}
	}

	ps, err := pubsub.NewGossipSub(n.ctx, h, pubsub.WithMaxMessageSize(maxMessageSize))
	if err != nil {
		n.closeDHT()
		h.Close()
		return fmt.Errorf("create pubsub: %w", err)
	}
	n.pubsub = ps

	if n.topicTx, err = ps.Join(TopicTransactions); err != nil {
		n.closeDHT()
		h.Close()
		return fmt.Errorf("join tx topic: %w", err)
	}
	if n.subTx, err = n.topicTx.Subscribe(); err != nil {
		n.closeDHT()
		h.Close()
		return fmt.Errorf("subscribe tx: %w", err)
	}

	n.registerHandshakeHandler()
	go n.readLoop()

	n.logger.Info().
		Str("id", h.ID().String()).
		Strs("addrs", n.Addrs()).
		Int("seeds", len(n.config.Seeds)).
		Msg("P2P node started")
	n.connectSeeds()
	go n.seedLoop()

	if !n.config.NoDiscover {
		// mDNS failure is non-fatal.
		_ = mdns.NewMdnsService(h, n.rendezvous(), &discoveryNotifee{node: n}).Start()
		go n.runDHTDiscovery()
	}
	go n.BanManager.RunPruneLoop(n.ctx.Done())
	return nil
}

// Stop shuts down the P2P node.
func (n *Node) Stop() error {
	n.cancel()
	if n.subTx != nil {
		n.subTx.Cancel()
	}
	if n.topicTx != nil {
		n.topicTx.Close()
	}
	n.closeDHT()
	if n.host != nil {
		return n.host.Close()
	}
	return nil
}

// SetSlotFn sets the function reporting the local ledger slot in handshakes.
func (n *Node) SetSlotFn(fn func() uint64) {
	n.slotFn = fn
}

// SetTxHandler registers a callback for incoming transactions.
// The callback receives the sender peer ID and the raw message bytes.
func (n *Node) SetTxHandler(fn func(from peer.ID, data []byte)) {
	n.txHandler = fn
}

// ID returns the peer ID of this node.
func (n *Node) ID() peer.ID {
	if n.host == nil {
		return ""
	}
	return n.host.ID()
}

// Addrs returns the full multiaddrs of this node.
func (n *Node) Addrs() []string {
	if n.host == nil {
		return nil
	}
	var addrs []string
	for _, a := range n.host.Addrs() {
		addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", a, n.host.ID()))
	}
	return addrs
}

// Connect dials a peer by its full multiaddr.
func (n *Node) Connect(ctx context.Context, addr string) error {
	return n.dial(ctx, addr, "manual")
}

func (n *Node) dial(ctx context.Context, addr, source string) error {
	if n.host == nil {
		return fmt.Errorf("node not started")
	}
	info, err := peer.AddrInfoFromString(addr)
	if err != nil {
		return fmt.Errorf("parse peer address: %w", err)
	}
	if err := n.host.Connect(ctx, *info); err != nil {
		return err
	}
	n.addPeer(info.ID, source)
	return nil
}

// DisconnectPeer closes all connections to a peer and forgets it.
func (n *Node) DisconnectPeer(id peer.ID) error {
	if n.host == nil {
		return fmt.Errorf("node not started")
	}
	n.removePeer(id)
	return n.host.Network().ClosePeer(id)
}

func (n *Node) readLoop() {
	for {
		msg, err := n.subTx.Next(n.ctx)
		if err != nil {
			return // Context cancelled.
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		n.handleTxMessage(msg)
	}
}

func (n *Node) handleTxMessage(msg *pubsub.Message) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error().Interface("panic", r).Str("peer", shortID(msg.ReceivedFrom)).Msg("Tx handler panicked")
		}
	}()
	n.addPeer(msg.ReceivedFrom, "gossip")
	if n.txHandler != nil {
		n.txHandler(msg.ReceivedFrom, msg.Data)
	}
}

// connectSeeds dials every seed once.
func (n *Node) connectSeeds() {
	for _, addr := range n.config.Seeds {
		ctx, cancel := context.WithTimeout(n.ctx, 2*peerConnectTimeout)
		err := n.dial(ctx, addr, "seed")
		cancel()
		if err != nil {
			n.logger.Warn().Str("seed", addr).Err(err).Msg("Seed connect failed")
			continue
		}
		n.logger.Info().Str("seed", addr).Msg("Seed connected")
	}
}

func (n *Node) seedLoop() {
	if len(n.config.Seeds) == 0 {
		return
	}
	ticker := time.NewTicker(seedRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if n.PeerCount() == 0 {
				n.connectSeeds()
			}
		}
	}
}

// --- DHT ---

func (n *Node) initDHT() error {
	mode := dht.ModeClient
	if n.config.DHTServer {
		mode = dht.ModeServer
	}
	kadDHT, err := dht.New(n.ctx, n.host, dht.Mode(mode))
	if err != nil {
		return fmt.Errorf("create kad-dht: %w", err)
	}
	n.dht = kadDHT
	return kadDHT.Bootstrap(n.ctx)
}

func (n *Node) closeDHT() {
	if n.dht != nil {
		n.dht.Close()
		n.dht = nil
	}
}

func (n *Node) runDHTDiscovery() {
	if n.dht == nil {
		return
	}
	routingDiscovery := drouting.NewRoutingDiscovery(n.dht)
	dutil.Advertise(n.ctx, routingDiscovery, n.rendezvous())

	ticker := time.NewTicker(dhtDiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.findDHTPeers(routingDiscovery)
		}
	}
}

func (n *Node) findDHTPeers(routingDiscovery *drouting.RoutingDiscovery) {
	ctx, cancel := context.WithTimeout(n.ctx, 20*time.Second)
	defer cancel()

	peerCh, err := routingDiscovery.FindPeers(ctx, n.rendezvous())
	if err != nil {
		return
	}
	for p := range peerCh {
		if p.ID == n.host.ID() || len(p.Addrs) == 0 {
			continue
		}
		if n.config.MaxPeers > 0 && n.PeerCount() >= n.config.MaxPeers {
			return
		}
		connectCtx, connectCancel := context.WithTimeout(n.ctx, peerConnectTimeout)
		if err := n.host.Connect(connectCtx, p); err == nil {
			n.addPeer(p.ID, "dht")
		}
		connectCancel()
	}
}

// loadOrCreateIdentity loads the node's Ed25519 key from dataDir, creating
// it on first use so the peer ID survives restarts.
func loadOrCreateIdentity(dataDir string) (libp2pcrypto.PrivKey, error) {
	keyPath := filepath.Join(dataDir, "node.key")

	data, err := os.ReadFile(keyPath)
	if err == nil {
		keyBytes, err := hex.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("decode node key: %w", err)
		}
		return libp2pcrypto.UnmarshalEd25519PrivateKey(keyBytes)
	}

	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	raw, err := priv.Raw()
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(raw)), 0600); err != nil {
		return nil, fmt.Errorf("save node key: %w", err)
	}
	return priv, nil
}

func shortID(id peer.ID) string {
	s := id.String()
	if len(s) > 16 {
		return s[:16]
	}
	return s
}
