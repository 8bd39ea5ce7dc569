package wallet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/tyler-smith/go-bip32"
)

func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := SeedFromMnemonic(testMnemonic, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	return seed
}

func testMaster(t *testing.T) *HDKey {
	t.Helper()
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}
	return master
}

func TestNewMasterKey(t *testing.T) {
	master := testMaster(t)
	if !master.IsPrivate() || master.Depth() != 0 {
		t.Fatalf("master: private=%v depth=%d", master.IsPrivate(), master.Depth())
	}
	if n := len(master.PrivateKeyBytes()); n != 32 {
		t.Errorf("private key length = %d, want 32", n)
	}
	if n := len(master.PublicKeyBytes()); n != 33 {
		t.Errorf("public key length = %d, want 33", n)
	}

	for _, n := range []int{0, 32, 65} {
		if _, err := NewMasterKey(make([]byte, n)); err == nil {
			t.Errorf("NewMasterKey(%d bytes) should fail", n)
		}
	}
}

func TestDeriveMinter(t *testing.T) {
	master := testMaster(t)
	k1, err := master.DeriveMinter(0, 0)
	if err != nil {
		t.Fatalf("DeriveMinter() error: %v", err)
	}
	if k1.Depth() != 5 {
		t.Errorf("depth = %d, want 5", k1.Depth())
	}

	again, err := master.DerivePath(PurposeBIP44, CoinTypeHandles, bip32.FirstHardenedChild, ChangeExternal, 0)
	if err != nil {
		t.Fatalf("DerivePath() error: %v", err)
	}
	if !bytes.Equal(k1.PublicKeyBytes(), again.PublicKeyBytes()) {
		t.Error("DeriveMinter and DerivePath disagree")
	}

	k2, err := master.DeriveMinter(0, 1)
	if err != nil {
		t.Fatalf("DeriveMinter() error: %v", err)
	}
	if k1.KeyHash() == k2.KeyHash() {
		t.Error("different indices produced the same key")
	}
	if k1.Address() != crypto.AddressFromPubKey(k1.PublicKeyBytes()) {
		t.Error("address does not match public key")
	}
}

func TestHDKey_Signer(t *testing.T) {
	k, err := testMaster(t).DeriveMinter(0, 0)
	if err != nil {
		t.Fatalf("DeriveMinter() error: %v", err)
	}
	signer, err := k.Signer()
	if err != nil {
		t.Fatalf("Signer() error: %v", err)
	}
	if signer.KeyHash() != k.KeyHash() {
		t.Fatal("signer key hash differs from HD key hash")
	}
	msg := crypto.Hash([]byte("batch"))
	sig, err := signer.Sign(msg[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !crypto.VerifySignature(msg[:], sig, k.PublicKeyBytes()) {
		t.Error("signature does not verify")
	}

	pub := k.Neuter()
	if pub.IsPrivate() || pub.PrivateKeyBytes() != nil {
		t.Fatal("neutered key still private")
	}
	if _, err := pub.Signer(); !errors.Is(err, ErrPublicOnly) {
		t.Errorf("Signer() on public key error = %v", err)
	}
	if pub.KeyHash() != k.KeyHash() {
		t.Error("neutered key hash differs")
	}
}
