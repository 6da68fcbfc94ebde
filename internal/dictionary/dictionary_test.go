package dictionary

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestBuildFullDedupesAndSorts(t *testing.T) {
	d := BuildFull([]string{"b.com", "a.com", "b.com", "c.com"})
	want := []string{"a.com", "b.com", "c.com"}
	if !reflect.DeepEqual(d.Domains, want) {
		t.Errorf("got %v, want %v", d.Domains, want)
	}
}

func TestIDOfMatchesAt(t *testing.T) {
	d := BuildFull([]string{"b.com", "a.com"})
	for i, name := range d.Domains {
		id, ok := d.IDOf(name)
		if !ok || id != uint64(i) {
			t.Errorf("IDOf(%q) = (%d, %v), want (%d, true)", name, id, ok, i)
		}
		got, ok := d.At(id)
		if !ok || got != name {
			t.Errorf("At(%d) = (%q, %v), want (%q, true)", id, got, ok, name)
		}
	}
}

func TestBuildIncrementalPreservesExistingIDs(t *testing.T) {
	prev := BuildFull([]string{"a.com", "b.com"})
	prevIDs := make(map[string]uint64, prev.Len())
	for _, name := range prev.Domains {
		id, _ := prev.IDOf(name)
		prevIDs[name] = id
	}

	next := BuildIncremental(prev, []string{"c.com", "a.com"})

	for name, wantID := range prevIDs {
		gotID, ok := next.IDOf(name)
		if !ok || gotID != wantID {
			t.Errorf("domain_id for %q changed across incremental build: got %d, want %d", name, gotID, wantID)
		}
	}

	if _, ok := next.IDOf("c.com"); !ok {
		t.Errorf("expected c.com to be present after incremental build")
	}
	if next.Len() != prev.Len()+1 {
		t.Errorf("got length %d, want %d", next.Len(), prev.Len()+1)
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.bin")

	d := BuildFull([]string{"z.com", "a.com", "m.com"})
	if err := Write(path, d); err != nil {
		t.Fatalf("failed to write dictionary: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load dictionary: %v", err)
	}
	if !reflect.DeepEqual(loaded.Domains, d.Domains) {
		t.Errorf("got %v, want %v", loaded.Domains, d.Domains)
	}
	if Hash(loaded) != Hash(d) {
		t.Errorf("hash mismatch after round trip")
	}
}
