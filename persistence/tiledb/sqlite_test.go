package tiledb

import (
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tiles.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := openTest(t)

	blob := "1.000000 2.000000 0.000000\n1.100000 2.100000 0.500000 0.020000\n"
	if err := s.Put(99, blob); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(99)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("tile 99 missing after put")
	}
	if got != blob {
		t.Fatalf("blob round trip mismatch:\n got %q\nwant %q", got, blob)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := openTest(t)
	_, ok, err := s.Get(123)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Fatalf("missing tile reported present")
	}
}

func TestStore_PutOverwritesAndCounts(t *testing.T) {
	s := openTest(t)
	if err := s.Put(5, "a\n"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(5, "b\n"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := s.Put(6, "c\n"); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, _, err := s.Get(5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "b\n" {
		t.Fatalf("got %q after overwrite", got)
	}
	n, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestStore_LargeIDsSurviveRoundTrip(t *testing.T) {
	s := openTest(t)
	// Ids with the high bit set must survive the int64 column.
	id := uint64(1)<<63 | 12345
	if err := s.Put(id, "hi\n"); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(id)
	if err != nil || !ok || got != "hi\n" {
		t.Fatalf("round trip = (%q, %v, %v)", got, ok, err)
	}
}
