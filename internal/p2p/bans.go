package p2p

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	klog "github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/storage"
	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Ban thresholds and durations.
const (
	BanThreshold = 100 // Score at which a peer gets banned.
	BanDuration  = 24 * time.Hour
)

// Penalty values for different offenses.
const (
	PenaltyMalformedTx   = 50  // Gossip that does not decode as a transaction.
	PenaltyRejectedTx    = 10  // Decodes, but the ledger refuses it.
	PenaltyHandshakeFail = 100 // Instant ban (network or deployment mismatch).
)

// BanRecord is a persisted ban entry.
type BanRecord struct {
	ID        string `json:"id"`
	Reason    string `json:"reason"`
	Score     int    `json:"score"`
	BannedAt  int64  `json:"banned_at"`
	ExpiresAt int64  `json:"expires_at"` // 0 = permanent
}

// IsExpired returns true if the ban has a non-zero expiry that has passed.
func (r *BanRecord) IsExpired() bool {
	return r.ExpiresAt > 0 && time.Now().Unix() >= r.ExpiresAt
}

// BanManager tracks peer offense scores and manages bans.
type BanManager struct {
	mu     sync.RWMutex
	scores map[peer.ID]int
	bans   map[peer.ID]*BanRecord
	store  *BanStore // nil = in memory only
	node   *Node     // nil in unit tests
}

// NewBanManager creates a new BanManager. Either argument may be nil.
func NewBanManager(store *BanStore, node *Node) *BanManager {
	return &BanManager{
		scores: make(map[peer.ID]int),
		bans:   make(map[peer.ID]*BanRecord),
		store:  store,
		node:   node,
	}
}

// LoadBans restores unexpired persisted bans.
func (bm *BanManager) LoadBans() {
	if bm.store == nil {
		return
	}
	bm.store.PruneExpired()

	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.store.ForEach(func(rec *BanRecord) error {
		id, err := peer.Decode(rec.ID)
		if err == nil && !rec.IsExpired() {
			bm.bans[id] = rec
		}
		return nil
	})
}

// RecordOffense adds a penalty to a peer, banning and disconnecting it
// once its score reaches BanThreshold.
func (bm *BanManager) RecordOffense(id peer.ID, penalty int, reason string) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if rec, ok := bm.bans[id]; ok && !rec.IsExpired() {
		return
	}
	bm.scores[id] += penalty
	if bm.scores[id] < BanThreshold {
		return
	}

	now := time.Now()
	rec := &BanRecord{
		ID:        id.String(),
		Reason:    reason,
		Score:     bm.scores[id],
		BannedAt:  now.Unix(),
		ExpiresAt: now.Add(BanDuration).Unix(),
	}
	bm.bans[id] = rec
	delete(bm.scores, id)
	if bm.store != nil {
		if err := bm.store.Put(rec); err != nil {
			klog.P2P.Warn().Err(err).Msg("Persist ban failed")
		}
	}
	klog.P2P.Warn().Str("peer", shortID(id)).Str("reason", reason).Int("score", rec.Score).Msg("Peer banned")

	if bm.node != nil && bm.node.host != nil {
		go bm.node.DisconnectPeer(id)
	}
}

// Score returns a peer's current offense score.
func (bm *BanManager) Score(id peer.ID) int {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	return bm.scores[id]
}

// IsBanned returns true if the peer is currently banned.
func (bm *BanManager) IsBanned(id peer.ID) bool {
	bm.mu.RLock()
	rec, ok := bm.bans[id]
	bm.mu.RUnlock()
	if !ok {
		return false
	}
	if rec.IsExpired() {
		bm.Unban(id)
		return false
	}
	return true
}

// Unban removes a ban and clears the peer's score.
func (bm *BanManager) Unban(id peer.ID) {
	bm.mu.Lock()
	delete(bm.bans, id)
	delete(bm.scores, id)
	bm.mu.Unlock()
	if bm.store != nil {
		bm.store.Delete(id)
	}
}

// BanList returns a snapshot of all active bans.
func (bm *BanManager) BanList() []BanRecord {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	var list []BanRecord
	for _, rec := range bm.bans {
		if !rec.IsExpired() {
			list = append(list, *rec)
		}
	}
	return list
}

// RunPruneLoop drops expired bans every ten minutes until done is closed.
func (bm *BanManager) RunPruneLoop(done <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			bm.pruneExpired()
		}
	}
}

func (bm *BanManager) pruneExpired() {
	bm.mu.Lock()
	for id, rec := range bm.bans {
		if rec.IsExpired() {
			delete(bm.bans, id)
		}
	}
	bm.mu.Unlock()
	if bm.store != nil {
		bm.store.PruneExpired()
	}
}

// BanStore persists ban records in a storage.DB under the "ban/" prefix.
type BanStore struct {
	db storage.DB
}

var banPrefix = []byte("ban/")

// NewBanStore creates a BanStore backed by db.
func NewBanStore(db storage.DB) *BanStore {
	return &BanStore{db: db}
}

func banKey(id string) []byte {
	return append(append([]byte{}, banPrefix...), id...)
}

// Get retrieves a ban record by peer ID.
func (bs *BanStore) Get(id peer.ID) (*BanRecord, error) {
	data, err := bs.db.Get(banKey(id.String()))
	if err != nil {
		return nil, err
	}
	var rec BanRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal ban record: %w", err)
	}
	return &rec, nil
}

// Put persists a ban record.
func (bs *BanStore) Put(rec *BanRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal ban record: %w", err)
	}
	return bs.db.Put(banKey(rec.ID), data)
}

// Delete removes a ban record.
func (bs *BanStore) Delete(id peer.ID) error {
	return bs.db.Delete(banKey(id.String()))
}

// ForEach calls fn for every decodable ban record.
func (bs *BanStore) ForEach(fn func(*BanRecord) error) error {
	return bs.db.ForEach(banPrefix, func(_, value []byte) error {
		var rec BanRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil
		}
		return fn(&rec)
	})
}

// PruneExpired removes expired and undecodable records and returns how many went.
func (bs *BanStore) PruneExpired() (int, error) {
	now := time.Now().Unix()
	var stale [][]byte
	err := bs.db.ForEach(banPrefix, func(key, value []byte) error {
		var rec BanRecord
		if json.Unmarshal(value, &rec) != nil || (rec.ExpiresAt > 0 && now >= rec.ExpiresAt) {
			stale = append(stale, append([]byte{}, key...))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("iterate bans: %w", err)
	}
	for _, k := range stale {
		if err := bs.db.Delete(k); err != nil {
			return 0, fmt.Errorf("delete expired ban: %w", err)
		}
	}
	return len(stale), nil
}

// banGater rejects banned peers at the transport level.
type banGater struct {
	banMgr *BanManager
}

func (g *banGater) InterceptPeerDial(p peer.ID) bool {
	return !g.banMgr.IsBanned(p)
}

func (g *banGater) InterceptAddrDial(peer.ID, ma.Multiaddr) bool {
	return true
}

// InterceptAccept cannot filter: the remote identity is not known yet.
func (g *banGater) InterceptAccept(network.ConnMultiaddrs) bool {
	return true
}

func (g *banGater) InterceptSecured(_ network.Direction, p peer.ID, _ network.ConnMultiaddrs) bool {
	return !g.banMgr.IsBanned(p)
}

func (g *banGater) InterceptUpgraded(network.Conn) (bool, control.DisconnectReason) {
	return true, 0
}
