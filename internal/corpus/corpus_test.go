package corpus

import (
	"bytes"
	"path/filepath"
	"testing"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	dir := t.TempDir()
	q, err := Open(filepath.Join(dir, "corpus.db"), filepath.Join(dir, "dumps"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestEnqueueAssignsSequentialIDs(t *testing.T) {
	q := openTestQueue(t)

	id1, err := q.Enqueue([]byte("a"), nil)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := q.Enqueue([]byte("b"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if id2 <= id1 {
		t.Fatalf("expected increasing ids, got %d then %d", id1, id2)
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
}

func TestEntryAtRoundTripsBytes(t *testing.T) {
	q := openTestQueue(t)
	want := []byte("seed payload")
	if _, err := q.Enqueue(want, []byte{0xFF}); err != nil {
		t.Fatal(err)
	}

	e, ok := q.EntryAt(0)
	if !ok {
		t.Fatal("expected an entry at index 0")
	}
	if !bytes.Equal(e.Bytes, want) {
		t.Fatalf("Bytes = %q, want %q", e.Bytes, want)
	}
	if !bytes.Equal(e.Footprint, []byte{0xFF}) {
		t.Fatalf("Footprint = %v, want [0xFF]", e.Footprint)
	}
}

func TestSavePersistsFlags(t *testing.T) {
	q := openTestQueue(t)
	if _, err := q.Enqueue([]byte("x"), nil); err != nil {
		t.Fatal(err)
	}
	e, ok := q.EntryAt(0)
	if !ok {
		t.Fatal("missing entry")
	}
	e.WasFuzzed = true
	e.TrimDone = true
	if err := q.Save(e); err != nil {
		t.Fatal(err)
	}

	reread, ok := q.EntryAt(0)
	if !ok {
		t.Fatal("missing entry after save")
	}
	if !reread.WasFuzzed || !reread.TrimDone {
		t.Fatalf("expected flags to persist, got %+v", reread)
	}
}

func TestRandomEntryEmptyQueue(t *testing.T) {
	q := openTestQueue(t)
	if _, ok := q.RandomEntry(); ok {
		t.Fatal("expected no entry from an empty queue")
	}
}

func TestRandomEntryReturnsStoredEntry(t *testing.T) {
	q := openTestQueue(t)
	for _, s := range []string{"one", "two", "three"} {
		if _, err := q.Enqueue([]byte(s), nil); err != nil {
			t.Fatal(err)
		}
	}

	e, ok := q.RandomEntry()
	if !ok {
		t.Fatal("expected a random entry")
	}
	if len(e.Bytes) == 0 {
		t.Fatal("expected non-empty bytes on the returned entry")
	}
}
