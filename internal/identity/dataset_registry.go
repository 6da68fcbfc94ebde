// Package identity assigns the three identifiers spec §3 defines:
// dataset_id (persistent registry), domain_id (dictionary position,
// resolved elsewhere by internal/mphf), and url_id (xxh3-64 of the raw
// URL bytes).
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// DatasetRegistry resolves dataset-name strings to sequential, never-
// reused dataset_ids, persisted as registry/dataset_registry.json
// (spec §6). It is safe for concurrent use; a single process owns the
// writer side per spec §5 ("single writer... holds an exclusive lock
// while assigning").
type DatasetRegistry struct {
	mu     sync.Mutex
	path   string
	byName map[string]uint32
	nextID uint32
}

// registryFile is the on-disk JSON shape.
type registryFile struct {
	Datasets map[string]uint32 `json:"datasets"`
}

// OpenDatasetRegistry loads path if present, or starts a fresh registry
// rooted there (the parent directory is created on first flush).
func OpenDatasetRegistry(path string) (*DatasetRegistry, error) {
	r := &DatasetRegistry{
		path:   path,
		byName: make(map[string]uint32),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read dataset registry %s: %w", path, err)
	}

	var rf registryFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse dataset registry %s: %w", path, err)
	}
	for name, id := range rf.Datasets {
		r.byName[name] = id
		if id+1 > r.nextID {
			r.nextID = id + 1
		}
	}
	return r, nil
}

// Resolve returns name's existing dataset_id, or assigns max+1 starting
// at 0 and flushes the registry to disk before returning.
func (r *DatasetRegistry) Resolve(name string) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[name]; ok {
		return id, nil
	}

	id := r.nextID
	r.byName[name] = id
	r.nextID++

	if err := r.flushLocked(); err != nil {
		// Undo the in-memory assignment so a later retry can reassign the
		// same id deterministically instead of skipping it.
		delete(r.byName, name)
		r.nextID--
		return 0, err
	}
	return id, nil
}

// Lookup returns the dataset_id for name without assigning one.
func (r *DatasetRegistry) Lookup(name string) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byName[name]
	return id, ok
}

// Names returns a name -> dataset_id snapshot.
func (r *DatasetRegistry) Names() map[string]uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]uint32, len(r.byName))
	for k, v := range r.byName {
		out[k] = v
	}
	return out
}

// flushLocked persists the registry via a temp-file-then-rename, the
// same atomic publish idiom used by internal/manifest.
func (r *DatasetRegistry) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	rf := registryFile{Datasets: r.byName}
	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dataset registry: %w", err)
	}

	tmp := r.path + "." + uuid.New().String() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp registry file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp registry file into place: %w", err)
	}
	return nil
}
