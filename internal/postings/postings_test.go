package postings

import (
	"reflect"
	"testing"
)

func TestShardOfIsStable(t *testing.T) {
	for _, domainID := range []uint64{0, 1, 7, 1023, 1 << 40} {
		a := ShardOf(domainID, 16)
		b := ShardOf(domainID, 16)
		if a != b {
			t.Errorf("ShardOf(%d) not stable: %d != %d", domainID, a, b)
		}
		if a < 0 || a >= 16 {
			t.Errorf("ShardOf(%d) = %d out of range [0,16)", domainID, a)
		}
	}
}

func TestBuilderAddAndLookupViaReader(t *testing.T) {
	dir := t.TempDir()

	b := NewBuilder(4)
	b.Add(1, 10, Locator{FileID: 1, RowGroup: 0})
	b.Add(1, 10, Locator{FileID: 2, RowGroup: 3})
	b.Add(5, 20, Locator{FileID: 3, RowGroup: 1})

	if err := b.Write(dir); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	r, err := OpenReader(dir, 4)
	if err != nil {
		t.Fatalf("failed to open reader: %v", err)
	}
	defer r.Close()

	locs, found, err := r.Lookup(1, 10)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !found {
		t.Fatalf("expected key (1,10) to be found")
	}
	want := []Locator{{FileID: 1, RowGroup: 0}, {FileID: 2, RowGroup: 3}}
	if !reflect.DeepEqual(locs, want) {
		t.Errorf("got %v, want %v", locs, want)
	}

	_, found, err = r.Lookup(1, 99)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found {
		t.Errorf("expected key (1,99) to be absent")
	}
}

func TestWriteIncrementalMergesWithoutMutatingSource(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	base := NewBuilder(2)
	base.Add(3, 1, Locator{FileID: 1, RowGroup: 0})
	if err := base.Write(srcDir); err != nil {
		t.Fatalf("failed to write base: %v", err)
	}

	add := NewBuilder(2)
	add.Add(3, 1, Locator{FileID: 2, RowGroup: 0})
	add.Add(3, 2, Locator{FileID: 2, RowGroup: 1})

	if err := WriteIncremental(srcDir, dstDir, add); err != nil {
		t.Fatalf("failed to write incremental: %v", err)
	}

	// srcDir must be untouched.
	srcReader, err := OpenReader(srcDir, 2)
	if err != nil {
		t.Fatalf("failed to reopen srcDir: %v", err)
	}
	defer srcReader.Close()
	locs, found, err := srcReader.Lookup(3, 1)
	if err != nil || !found {
		t.Fatalf("srcDir lookup failed: found=%v err=%v", found, err)
	}
	if !reflect.DeepEqual(locs, []Locator{{FileID: 1, RowGroup: 0}}) {
		t.Errorf("srcDir was mutated: got %v", locs)
	}

	dstReader, err := OpenReader(dstDir, 2)
	if err != nil {
		t.Fatalf("failed to open dstDir: %v", err)
	}
	defer dstReader.Close()

	locs, found, err = dstReader.Lookup(3, 1)
	if err != nil || !found {
		t.Fatalf("dstDir lookup (3,1) failed: found=%v err=%v", found, err)
	}
	want := []Locator{{FileID: 1, RowGroup: 0}, {FileID: 2, RowGroup: 0}}
	if !reflect.DeepEqual(locs, want) {
		t.Errorf("got %v, want %v", locs, want)
	}

	locs, found, err = dstReader.Lookup(3, 2)
	if err != nil || !found {
		t.Fatalf("dstDir lookup (3,2) failed: found=%v err=%v", found, err)
	}
	if !reflect.DeepEqual(locs, []Locator{{FileID: 2, RowGroup: 1}}) {
		t.Errorf("got %v, want [{2 1}]", locs)
	}
}

func TestCompactPreservesEntries(t *testing.T) {
	dir := t.TempDir()

	b := NewBuilder(2)
	b.Add(9, 1, Locator{FileID: 1, RowGroup: 0})
	// A repeated incremental merge can leave the same locator twice under
	// one key; seed that here so compaction has something to deduplicate.
	b.Add(9, 1, Locator{FileID: 1, RowGroup: 0})
	b.Add(9, 1, Locator{FileID: 2, RowGroup: 3})
	if err := b.Write(dir); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	compactDir := t.TempDir()
	if err := Compact(dir, compactDir, 2); err != nil {
		t.Fatalf("compact failed: %v", err)
	}

	r, err := OpenReader(compactDir, 2)
	if err != nil {
		t.Fatalf("failed to open compacted dir: %v", err)
	}
	defer r.Close()

	locs, found, err := r.Lookup(9, 1)
	if err != nil || !found {
		t.Fatalf("lookup after compaction failed: found=%v err=%v", found, err)
	}
	want := []Locator{{FileID: 1, RowGroup: 0}, {FileID: 2, RowGroup: 3}}
	if !reflect.DeepEqual(locs, want) {
		t.Errorf("got %v, want %v (duplicate locator should collapse to one)", locs, want)
	}
}
