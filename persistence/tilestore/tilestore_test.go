package tilestore

import (
	"testing"
)

func TestDir_PutGetRoundTrip(t *testing.T) {
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	blob := "5.000000 5.000000 0.000000\n5.100000 5.100000 0.800000 0.020000\n"
	if err := d.Put(42, blob); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := d.Get(42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("tile 42 missing after put")
	}
	if got != blob {
		t.Fatalf("blob round trip mismatch:\n got %q\nwant %q", got, blob)
	}
}

func TestDir_GetMissing(t *testing.T) {
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, ok, err := d.Get(7)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Fatalf("missing tile reported present")
	}
}

func TestDir_PutOverwrites(t *testing.T) {
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := d.Put(1, "old\n"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := d.Put(1, "new\n"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _, err := d.Get(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "new\n" {
		t.Fatalf("got %q after overwrite", got)
	}
}

func TestDir_IDsSorted(t *testing.T) {
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, id := range []uint64{9, 2, 1<<40 + 3} {
		if err := d.Put(id, "x\n"); err != nil {
			t.Fatalf("put %d: %v", id, err)
		}
	}
	ids, err := d.IDs()
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	want := []uint64{2, 9, 1<<40 + 3}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}
