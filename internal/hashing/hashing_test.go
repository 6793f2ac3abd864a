package hashing

import "testing"

func TestIDStableAndLength(t *testing.T) {
	a := ID("send-welcome-email")
	b := ID("send-welcome-email")
	if a != b {
		t.Fatalf("ID not stable: %q != %q", a, b)
	}
	if len(a) != 40 {
		t.Fatalf("expected 40-char hex digest, got %d chars: %q", len(a), a)
	}
	for _, r := range a {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
		if !isHex {
			t.Fatalf("ID %q is not lowercase hex", a)
		}
	}
}

func TestIndexerFirstOccurrenceUsesBareID(t *testing.T) {
	ix := NewIndexer()
	occ := ix.Next("load-user", 0)
	if occ.HashedID != ID("load-user") {
		t.Fatalf("first occurrence should hash the bare id")
	}
	if occ.Index != 1 {
		t.Fatalf("expected index 1, got %d", occ.Index)
	}
}

func TestIndexerSubsequentOccurrencesAreSuffixed(t *testing.T) {
	ix := NewIndexer()
	first := ix.Next("load-user", 0)
	second := ix.Next("load-user", 0)
	third := ix.Next("load-user", 0)

	if first.HashedID != ID("load-user") {
		t.Fatalf("first occurrence mismatch")
	}
	if second.HashedID != ID("load-user:1") {
		t.Fatalf("second occurrence should hash %q, got %q", "load-user:1", second.HashedID)
	}
	if third.HashedID != ID("load-user:2") {
		t.Fatalf("third occurrence should hash %q, got %q", "load-user:2", third.HashedID)
	}
	if second.Index != 2 || third.Index != 3 {
		t.Fatalf("unexpected indices: %d, %d", second.Index, third.Index)
	}
}

func TestIndexerDistinctIDsDoNotInterfere(t *testing.T) {
	ix := NewIndexer()
	a := ix.Next("step-a", 0)
	b := ix.Next("step-b", 0)
	if a.HashedID == b.HashedID {
		t.Fatalf("distinct logical ids must hash distinctly")
	}
	if a.Index != 1 || b.Index != 1 {
		t.Fatalf("distinct ids should each be their own first occurrence")
	}
}

func TestIndexerFlagsCrossBatchRepeats(t *testing.T) {
	ix := NewIndexer()
	ix.Next("poll", 0)
	second := ix.Next("poll", 1)
	if !second.ParallelIndexing {
		t.Fatalf("expected cross-batch repeat to be flagged")
	}
}

func TestIndexerDoesNotFlagSameBatchRepeats(t *testing.T) {
	ix := NewIndexer()
	ix.Next("poll", 0)
	second := ix.Next("poll", 0)
	if second.ParallelIndexing {
		t.Fatalf("same-batch repeats should not be flagged")
	}
}
