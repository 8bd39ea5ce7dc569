package index

import (
	"errors"
	"testing"
)

func TestSession_CommitPublishes(t *testing.T) {
	idx, db := newTestIndex(t)
	before := idx.Root()

	s := idx.Begin()
	for _, n := range []string{"demi-2", "demi-3"} {
		if err := s.Insert([]byte(n), nil); err != nil {
			t.Fatalf("session Insert: %v", err)
		}
	}
	if idx.Root() != before || idx.Has([]byte("demi-2")) {
		t.Fatal("staged insert visible before Commit")
	}
	staged := s.Root()

	if err := s.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if idx.Root() != staged {
		t.Fatalf("root after commit = %s, want %s", idx.Root(), staged)
	}

	reloaded, err := Load(db)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Root() != staged {
		t.Fatal("commit not flushed to storage")
	}
	j := reloaded.Journal()
	if j == nil || j.PrevRoot != before || j.Root != staged || len(j.Names) != 2 {
		t.Fatalf("journal = %+v", j)
	}

	if err := s.Insert([]byte("late"), nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Insert after Commit err = %v, want ErrSessionClosed", err)
	}
}

func TestSession_DuplicateLeavesSessionUnchanged(t *testing.T) {
	idx, _ := newTestIndex(t)
	idx.Insert([]byte("abc"), nil)

	s := idx.Begin()
	root := s.Root()
	if err := s.Insert([]byte("abc"), nil); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Insert err = %v, want ErrDuplicateKey", err)
	}
	if s.Root() != root || len(s.Staged()) != 0 {
		t.Fatal("failed insert changed the session")
	}

	s.Insert([]byte("new"), nil)
	if err := s.Insert([]byte("new"), nil); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("in-session duplicate err = %v, want ErrDuplicateKey", err)
	}
}

func TestSession_DiscardLeavesIndex(t *testing.T) {
	idx, _ := newTestIndex(t)
	s := idx.Begin()
	s.Insert([]byte("ghost"), nil)
	s.Discard()

	if idx.Has([]byte("ghost")) || !idx.Root().IsZero() {
		t.Fatal("discarded session leaked into index")
	}
	if err := s.Commit(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Commit after Discard err = %v, want ErrSessionClosed", err)
	}
}

func TestSession_Stale(t *testing.T) {
	idx, _ := newTestIndex(t)
	s := idx.Begin()
	s.Insert([]byte("a"), nil)

	idx.Insert([]byte("b"), nil)
	if err := s.Commit(); !errors.Is(err, ErrStaleSession) {
		t.Fatalf("Commit err = %v, want ErrStaleSession", err)
	}
}

func TestSession_ProveUnderStagedRoot(t *testing.T) {
	idx, _ := newTestIndex(t)
	idx.Insert([]byte("existing"), nil)

	s := idx.Begin()
	prev := s.Root()
	s.Insert([]byte("abc"), nil)
	proof, err := s.Prove([]byte("abc"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if err := proof.VerifyInsert(prev, s.Root(), []byte("abc"), nil); err != nil {
		t.Fatalf("VerifyInsert: %v", err)
	}
}

func TestIndex_Revert(t *testing.T) {
	idx, _ := newTestIndex(t)
	idx.Insert([]byte("base"), nil)
	before := idx.Root()

	s := idx.Begin()
	s.Insert([]byte("x"), nil)
	s.Insert([]byte("y"), nil)
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	names, err := idx.Revert()
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("reverted %d names, want 2", len(names))
	}
	if idx.Root() != before {
		t.Fatalf("root after revert = %s, want %s", idx.Root(), before)
	}
	if _, err := idx.Revert(); !errors.Is(err, ErrNoJournal) {
		t.Fatalf("second Revert err = %v, want ErrNoJournal", err)
	}
}

func TestIndex_SingleChangesDropJournal(t *testing.T) {
	tests := []struct {
		name   string
		change func(idx *Index) error
	}{
		{"insert", func(idx *Index) error { return idx.Insert([]byte("later"), nil) }},
		{"delete", func(idx *Index) error { return idx.Delete([]byte("base")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, db := newTestIndex(t)
			if err := idx.Insert([]byte("base"), nil); err != nil {
				t.Fatal(err)
			}
			s := idx.Begin()
			s.Insert([]byte("x"), nil)
			if err := s.Commit(); err != nil {
				t.Fatal(err)
			}
			if idx.Journal() == nil {
				t.Fatal("commit left no journal")
			}

			if err := tt.change(idx); err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if idx.Journal() != nil {
				t.Error("journal kept after a change outside the batch")
			}
			if _, err := idx.Revert(); !errors.Is(err, ErrNoJournal) {
				t.Errorf("Revert err = %v, want ErrNoJournal", err)
			}
			reloaded, err := Load(db)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if reloaded.Journal() != nil {
				t.Error("journal still persisted")
			}
		})
	}
}
