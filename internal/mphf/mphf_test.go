package mphf

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fths/urldex/internal/dictionary"
)

func sampleDictionary(n int) *dictionary.Dictionary {
	domains := make([]string, n)
	for i := range domains {
		domains[i] = fmt.Sprintf("domain-%d.com", i)
	}
	return dictionary.BuildFull(domains)
}

func TestLookupResolvesEveryDomain(t *testing.T) {
	dict := sampleDictionary(500)
	r := Build(dict)

	for _, name := range dict.Domains {
		id, ok := r.Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) reported not found", name)
		}
		stored, ok := dict.At(id)
		if !ok || stored != name {
			t.Errorf("Lookup(%q) resolved to id %d which is %q, want match", name, id, stored)
		}
	}
}

func TestLookupRejectsAbsentDomainOrIsVerifiable(t *testing.T) {
	dict := sampleDictionary(200)
	r := Build(dict)

	id, candidate := r.Lookup("not-in-the-dictionary.com")
	if candidate {
		// A false positive is tolerated by contract, but the caller must
		// be able to reject it via the dictionary.
		if stored, ok := dict.At(id); ok && stored == "not-in-the-dictionary.com" {
			t.Errorf("absent domain falsely verified against dictionary")
		}
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	dict := sampleDictionary(300)
	r := Build(dict)

	dir := t.TempDir()
	path := filepath.Join(dir, "resolver.mphf")
	if err := Write(path, r); err != nil {
		t.Fatalf("failed to write resolver: %v", err)
	}

	loaded, err := Load(path, dictionary.Hash(dict))
	if err != nil {
		t.Fatalf("failed to load resolver: %v", err)
	}

	for _, name := range dict.Domains {
		id, ok := loaded.Lookup(name)
		if !ok {
			t.Fatalf("loaded resolver failed to resolve %q", name)
		}
		stored, _ := dict.At(id)
		if stored != name {
			t.Errorf("loaded resolver resolved %q to %q", name, stored)
		}
	}
}

func TestLoadRejectsMismatchedDictionary(t *testing.T) {
	dict := sampleDictionary(10)
	r := Build(dict)

	dir := t.TempDir()
	path := filepath.Join(dir, "resolver.mphf")
	if err := Write(path, r); err != nil {
		t.Fatalf("failed to write resolver: %v", err)
	}

	if _, err := Load(path, dictionary.Hash(dict)+1); err == nil {
		t.Errorf("expected an error loading against a mismatched dictionary hash")
	}
}
