package filereg

import (
	"path/filepath"
	"testing"

	"github.com/fths/urldex/internal/columnar"
)

func writeOnePart(t *testing.T, root string, key columnar.PartitionKey) {
	t.Helper()
	w := columnar.NewWriter(root, 1<<30, 1<<31, 3)
	row := columnar.Row{DomainID: 1, URLID: 1, Scheme: "https", Host: "a.com", PathQuery: "/", Domain: "a.com"}
	if err := w.AddRow(key, row); err != nil {
		t.Fatalf("failed to add row: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("failed to flush: %v", err)
	}
}

func TestBuildFullAssignsSequentialIDs(t *testing.T) {
	root := t.TempDir()
	writeOnePart(t, root, columnar.PartitionKey{DatasetID: 1, DomainPrefix: "aa"})
	writeOnePart(t, root, columnar.PartitionKey{DatasetID: 1, DomainPrefix: "bb"})

	reg, err := BuildFull(root)
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	all := reg.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[0].FileID != 0 || all[1].FileID != 1 {
		t.Errorf("expected sequential file_ids starting at 0, got %d, %d", all[0].FileID, all[1].FileID)
	}
}

func TestBuildIncrementalKeepsExistingIDs(t *testing.T) {
	root := t.TempDir()
	writeOnePart(t, root, columnar.PartitionKey{DatasetID: 1, DomainPrefix: "aa"})

	prev, err := BuildFull(root)
	if err != nil {
		t.Fatalf("failed to build full: %v", err)
	}
	prevEntry := prev.All()[0]

	writeOnePart(t, root, columnar.PartitionKey{DatasetID: 1, DomainPrefix: "bb"})

	next, err := BuildIncremental(prev, root)
	if err != nil {
		t.Fatalf("failed to build incremental: %v", err)
	}

	got, ok := next.ByPath(prevEntry.RelativePath)
	if !ok || got.FileID != prevEntry.FileID {
		t.Errorf("expected file_id for %q to stay %d, got %d (found=%v)", prevEntry.RelativePath, prevEntry.FileID, got.FileID, ok)
	}
	if len(next.All()) != 2 {
		t.Errorf("expected 2 entries after incremental build, got %d", len(next.All()))
	}
}

func TestNewFiles(t *testing.T) {
	root := t.TempDir()
	writeOnePart(t, root, columnar.PartitionKey{DatasetID: 1, DomainPrefix: "aa"})

	prev, err := BuildFull(root)
	if err != nil {
		t.Fatalf("failed to build full: %v", err)
	}

	writeOnePart(t, root, columnar.PartitionKey{DatasetID: 1, DomainPrefix: "bb"})

	newFiles, err := NewFiles(prev, root)
	if err != nil {
		t.Fatalf("failed to diff: %v", err)
	}
	if len(newFiles) != 1 {
		t.Fatalf("expected exactly 1 new file, got %d", len(newFiles))
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeOnePart(t, root, columnar.PartitionKey{DatasetID: 1, DomainPrefix: "aa"})

	reg, err := BuildFull(root)
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}

	path := filepath.Join(t.TempDir(), "file_registry.freg")
	if err := Write(path, reg); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(loaded.All()) != len(reg.All()) {
		t.Errorf("got %d entries, want %d", len(loaded.All()), len(reg.All()))
	}
}
