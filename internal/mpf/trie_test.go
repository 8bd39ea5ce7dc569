package mpf

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/Klingon-tech/handlemint/pkg/crypto"
)

func mustInsert(t *testing.T, tr *Trie, key string) *Trie {
	t.Helper()
	next, err := tr.Insert([]byte(key), nil)
	if err != nil {
		t.Fatalf("Insert(%q): %v", key, err)
	}
	return next
}

func TestEmptyRoot(t *testing.T) {
	tr := New()
	if root := tr.Root(); !root.IsZero() {
		t.Fatalf("empty root = %s, want 32 zero bytes", root)
	}
	if !tr.IsEmpty() || tr.Len() != 0 {
		t.Fatal("new trie should be empty")
	}
}

func TestSingleLeafRoot(t *testing.T) {
	tr := mustInsert(t, New(), "abc")

	path := crypto.Blake2b256([]byte("abc"))
	value := crypto.Blake2b256(nil)
	want := crypto.Blake2b256([]byte{0xff}, path[:], value[:])
	if tr.Root() != want {
		t.Fatalf("root = %s, want %s", tr.Root(), want)
	}
	if got := tr.Root().String(); got != "d74f9de5d3ecdd95a87bcce517ae642287c98ab060d9972b29ec9aa6743dcf32" {
		t.Fatalf("root = %s", got)
	}
}

func TestKnownRoot_ThreeKeys(t *testing.T) {
	tr := New()
	for _, k := range []string{"abc", "demi-2", "demi-3"} {
		tr = mustInsert(t, tr, k)
	}
	want := "69930a7ed0d4846ab15be31805b738c1aae39b2a470a44dc9d7e8e1276e9b64e"
	if got := tr.Root().String(); got != want {
		t.Fatalf("root = %s, want %s", got, want)
	}
}

func TestInsert_Duplicate(t *testing.T) {
	tr := mustInsert(t, New(), "abc")
	root := tr.Root()

	_, err := tr.Insert([]byte("abc"), nil)
	if !errors.Is(err, ErrKeyExists) {
		t.Fatalf("second Insert err = %v, want ErrKeyExists", err)
	}
	if tr.Root() != root {
		t.Fatal("failed insert changed the root")
	}
}

func TestInsert_Persistent(t *testing.T) {
	a := mustInsert(t, New(), "a")
	b := mustInsert(t, a, "b")
	if a.Len() != 1 || b.Len() != 2 {
		t.Fatalf("lens = %d, %d", a.Len(), b.Len())
	}
	if a.Has([]byte("b")) {
		t.Fatal("insert mutated the receiver")
	}
	if a.Root() == b.Root() {
		t.Fatal("roots should differ")
	}
}

func TestRoot_OrderIndependent(t *testing.T) {
	keys := make([]string, 60)
	for i := range keys {
		keys[i] = fmt.Sprintf("handle-%d", i)
	}

	base := New()
	for _, k := range keys {
		base = mustInsert(t, base, k)
	}

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 5; round++ {
		rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
		tr := New()
		for _, k := range keys {
			tr = mustInsert(t, tr, k)
		}
		if tr.Root() != base.Root() {
			t.Fatalf("round %d: root depends on insertion order", round)
		}
	}
}

func TestDelete_RestoresRoot(t *testing.T) {
	keys := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta"}
	tr := New()
	roots := []string{tr.Root().String()}
	for _, k := range keys {
		tr = mustInsert(t, tr, k)
		roots = append(roots, tr.Root().String())
	}
	for i := len(keys) - 1; i >= 0; i-- {
		var err error
		tr, err = tr.Delete([]byte(keys[i]))
		if err != nil {
			t.Fatalf("Delete(%q): %v", keys[i], err)
		}
		if got := tr.Root().String(); got != roots[i] {
			t.Fatalf("after deleting %q root = %s, want %s", keys[i], got, roots[i])
		}
	}
	if !tr.IsEmpty() {
		t.Fatal("trie should be empty after deleting everything")
	}
}

func TestDelete_Missing(t *testing.T) {
	tr := mustInsert(t, New(), "abc")
	if _, err := tr.Delete([]byte("abd")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Delete missing err = %v, want ErrKeyNotFound", err)
	}
	if _, err := New().Delete([]byte("x")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Delete on empty err = %v, want ErrKeyNotFound", err)
	}
}

func TestGetAndKeys(t *testing.T) {
	tr, err := New().Insert([]byte("k"), []byte("v"))
	if err != nil {
		t.Fatal(err)
	}
	tr = mustInsert(t, tr, "other")

	v, ok := tr.Get([]byte("k"))
	if !ok || v != ValueDigest([]byte("v")) {
		t.Fatalf("Get = %s, %v", v, ok)
	}
	if _, ok := tr.Get([]byte("missing")); ok {
		t.Fatal("Get(missing) reported present")
	}
	if keys := tr.Keys(); len(keys) != 2 {
		t.Fatalf("Keys() = %q", keys)
	}
}
