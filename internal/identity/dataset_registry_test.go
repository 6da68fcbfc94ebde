package identity

import (
	"path/filepath"
	"testing"
)

func TestDatasetRegistryResolveStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")

	r, err := OpenDatasetRegistry(path)
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}

	first, err := r.Resolve("crawl-2026-01")
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}
	second, err := r.Resolve("crawl-2026-01")
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}
	if first != second {
		t.Errorf("expected the same dataset_id on repeat resolve, got %d then %d", first, second)
	}

	other, err := r.Resolve("crawl-2026-02")
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}
	if other == first {
		t.Errorf("expected a distinct dataset_id for a distinct name")
	}
}

func TestDatasetRegistryPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")

	r1, err := OpenDatasetRegistry(path)
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}
	id, err := r1.Resolve("crawl-a")
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}

	r2, err := OpenDatasetRegistry(path)
	if err != nil {
		t.Fatalf("failed to reopen registry: %v", err)
	}
	got, ok := r2.Lookup("crawl-a")
	if !ok {
		t.Fatalf("expected crawl-a to be present after reopen")
	}
	if got != id {
		t.Errorf("got id %d after reopen, want %d", got, id)
	}

	next, err := r2.Resolve("crawl-b")
	if err != nil {
		t.Fatalf("failed to resolve new name: %v", err)
	}
	if next <= id {
		t.Errorf("expected a fresh id greater than %d, got %d", id, next)
	}
}
