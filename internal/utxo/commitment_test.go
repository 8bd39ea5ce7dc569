package utxo

import (
	"testing"

	"github.com/Klingon-tech/handlemint/internal/storage"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

func TestCommitment_Empty(t *testing.T) {
	root, err := Commitment(NewStore(storage.NewMemory()))
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	if !root.IsZero() {
		t.Error("empty store commitment should be zero hash")
	}
}

func TestCommitment_SingleUTXO(t *testing.T) {
	store := NewStore(storage.NewMemory())
	store.Put(makeUTXO("tx1", 0, 1000))

	root, err := Commitment(store)
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	if root.IsZero() {
		t.Error("single UTXO commitment should not be zero")
	}
}

func TestCommitment_OrderIndependent(t *testing.T) {
	a := NewStore(storage.NewMemory())
	a.Put(makeUTXO("tx1", 0, 1000))
	a.Put(makeUTXO("tx2", 1, 2000))

	b := NewStore(storage.NewMemory())
	b.Put(makeUTXO("tx2", 1, 2000))
	b.Put(makeUTXO("tx1", 0, 1000))

	root1, _ := Commitment(a)
	root2, _ := Commitment(b)
	if root1 != root2 {
		t.Error("commitment should not depend on insertion order")
	}
}

func TestCommitment_ChangesOnModification(t *testing.T) {
	store := NewStore(storage.NewMemory())
	store.Put(makeUTXO("tx1", 0, 1000))
	root1, _ := Commitment(store)

	store.Put(makeUTXO("tx2", 0, 500))
	root2, _ := Commitment(store)
	if root1 == root2 {
		t.Error("commitment should change when a UTXO is added")
	}

	store.Delete(makeOutpoint("tx2", 0))
	root3, _ := Commitment(store)
	if root3 != root1 {
		t.Error("commitment should return to the earlier value after delete")
	}

	store.Put(makeUTXO("tx1", 0, 1001))
	if root4, _ := Commitment(store); root4 == root1 {
		t.Error("commitment should change when a value changes")
	}
}

func TestCommitment_IgnoresIndexes(t *testing.T) {
	store := NewStore(storage.NewMemory())
	u := makeUTXO("tx1", 0, 1000)
	u.Output.Assets = []types.AssetQuantity{{Asset: testAsset("a"), Quantity: 1}}
	store.Put(u)
	if _, err := Commitment(store); err != nil {
		t.Fatalf("Commitment with indexed assets: %v", err)
	}
}
