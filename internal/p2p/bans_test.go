package p2p

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/Klingon-tech/handlemint/internal/storage"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
)

// newPeerID returns a decodable peer ID derived from a fresh key.
func newPeerID(t *testing.T) peer.ID {
	t.Helper()
	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519Key: %v", err)
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		t.Fatalf("IDFromPrivateKey: %v", err)
	}
	return id
}

func TestBanManager_ScoreAccumulation(t *testing.T) {
	bm := NewBanManager(nil, nil)
	id := peer.ID("test-peer")

	bm.RecordOffense(id, PenaltyRejectedTx, "rejected 1")
	bm.RecordOffense(id, PenaltyRejectedTx, "rejected 2")
	if bm.IsBanned(id) {
		t.Error("peer should not be banned below threshold")
	}
	if got := bm.Score(id); got != 2*PenaltyRejectedTx {
		t.Errorf("score = %d, want %d", got, 2*PenaltyRejectedTx)
	}
}

func TestBanManager_ThresholdBan(t *testing.T) {
	bm := NewBanManager(nil, nil)
	id := peer.ID("test-peer")

	bm.RecordOffense(id, PenaltyMalformedTx, "malformed 1")
	bm.RecordOffense(id, PenaltyMalformedTx, "malformed 2")
	if !bm.IsBanned(id) {
		t.Fatal("peer should be banned at threshold")
	}
	if got := bm.Score(id); got != 0 {
		t.Errorf("score should reset once banned, got %d", got)
	}
	list := bm.BanList()
	if len(list) != 1 || list[0].Reason != "malformed 2" {
		t.Errorf("BanList = %+v", list)
	}
}

func TestBanManager_Unban(t *testing.T) {
	bm := NewBanManager(nil, nil)
	id := peer.ID("test-peer")

	bm.RecordOffense(id, PenaltyHandshakeFail, "network mismatch")
	bm.Unban(id)
	if bm.IsBanned(id) {
		t.Error("peer should not be banned after Unban")
	}
}

func TestBanManager_Expiry(t *testing.T) {
	bm := NewBanManager(nil, nil)
	id := peer.ID("test-peer")

	bm.RecordOffense(id, PenaltyHandshakeFail, "network mismatch")
	bm.mu.Lock()
	bm.bans[id].ExpiresAt = time.Now().Add(-time.Second).Unix()
	bm.mu.Unlock()

	if bm.IsBanned(id) {
		t.Error("expired ban should not count")
	}
	if len(bm.BanList()) != 0 {
		t.Error("expired ban should not be listed")
	}
}

func TestBanManager_Persistence(t *testing.T) {
	db := storage.NewMemory()
	id := newPeerID(t)

	bm := NewBanManager(NewBanStore(db), nil)
	bm.RecordOffense(id, PenaltyHandshakeFail, "deployment mismatch")

	restored := NewBanManager(NewBanStore(db), nil)
	restored.LoadBans()
	if !restored.IsBanned(id) {
		t.Fatal("ban should survive a restart")
	}

	restored.Unban(id)
	again := NewBanManager(NewBanStore(db), nil)
	again.LoadBans()
	if again.IsBanned(id) {
		t.Error("unbanned peer should stay unbanned after restart")
	}
}

func TestBanStore_PruneExpired(t *testing.T) {
	bs := NewBanStore(storage.NewMemory())
	now := time.Now().Unix()

	live := &BanRecord{ID: peer.ID("live").String(), ExpiresAt: now + 3600}
	dead := &BanRecord{ID: peer.ID("dead").String(), ExpiresAt: now - 1}
	for _, rec := range []*BanRecord{live, dead} {
		if err := bs.Put(rec); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	n, err := bs.PruneExpired()
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	if _, err := bs.Get(peer.ID("live")); err != nil {
		t.Errorf("live ban pruned: %v", err)
	}
	if _, err := bs.Get(peer.ID("dead")); err == nil {
		t.Error("expired ban still stored")
	}
}

func TestBanGater(t *testing.T) {
	bm := NewBanManager(nil, nil)
	g := &banGater{banMgr: bm}
	bad, good := peer.ID("bad"), peer.ID("good")
	bm.RecordOffense(bad, PenaltyHandshakeFail, "network mismatch")

	if g.InterceptPeerDial(bad) {
		t.Error("dial to banned peer allowed")
	}
	if !g.InterceptPeerDial(good) {
		t.Error("dial to clean peer refused")
	}
	if g.InterceptSecured(network.DirInbound, bad, nil) {
		t.Error("secured conn from banned peer allowed")
	}
	if !g.InterceptSecured(network.DirInbound, good, nil) {
		t.Error("secured conn from clean peer refused")
	}
}
