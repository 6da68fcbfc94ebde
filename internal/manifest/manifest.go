// Package manifest implements the versioned artifact manifest of spec
// §4.9: a small JSON document naming every artifact path for each
// published version, plus a current_version pointer, atomically flipped.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fths/urldex/internal/xerrors"
)

// Version names every artifact of one published index version (spec
// §4.9 and §6 "index/{version}/…").
type Version struct {
	Name                 string `json:"name"`
	DictionaryPath       string `json:"dictionary_path"`
	MPHFPath             string `json:"mphf_path"`
	MembershipPath       string `json:"membership_path"`
	PostingsDir          string `json:"postings_dir"`
	PostingsShards       int    `json:"postings_shards"`
	FileRegistryPath     string `json:"file_registry_path"`
	ColumnarRoot         string `json:"columnar_root"`
	CreatedAtUnixSeconds int64  `json:"created_at_unix_seconds"`
}

// Manifest is the root document persisted at index/manifest.json.
type Manifest struct {
	CurrentVersion string             `json:"current_version"`
	Versions       map[string]Version `json:"versions"`
}

// Path returns the manifest's fixed location under root (spec §6).
func Path(root string) string {
	return filepath.Join(root, "index", "manifest.json")
}

// VersionDir returns the directory a version's artifacts live under.
func VersionDir(root, version string) string {
	return filepath.Join(root, "index", version)
}

// Empty returns a Manifest naming no versions, the state of a
// freshly-initialized store before any build has published.
func Empty() *Manifest {
	return &Manifest{Versions: make(map[string]Version)}
}

// Load reads the manifest at root. A missing manifest is reported via
// xerrors.KindVersionMissing so callers can distinguish "never built"
// from "corrupt".
func Load(root string) (*Manifest, error) {
	path := Path(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.New(xerrors.KindVersionMissing, fmt.Sprintf("no manifest at %s", path))
		}
		return nil, xerrors.Wrap(xerrors.KindTransientIO, "failed to read manifest", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, xerrors.Wrap(xerrors.KindArtifactCorrupt, "failed to parse manifest", err)
	}
	if m.CurrentVersion != "" {
		if _, ok := m.Versions[m.CurrentVersion]; !ok {
			return nil, xerrors.New(xerrors.KindVersionMissing,
				fmt.Sprintf("manifest names current_version %q with no matching entry", m.CurrentVersion))
		}
	}
	if m.Versions == nil {
		m.Versions = make(map[string]Version)
	}
	return &m, nil
}

// Current returns the Version named by current_version. VersionMissing
// is returned if the manifest has never been published.
func (m *Manifest) Current() (Version, error) {
	if m.CurrentVersion == "" {
		return Version{}, xerrors.New(xerrors.KindVersionMissing, "manifest has no current_version")
	}
	v, ok := m.Versions[m.CurrentVersion]
	if !ok {
		return Version{}, xerrors.New(xerrors.KindVersionMissing, "current_version not found among manifest versions")
	}
	return v, nil
}

// Publish records v as a new version and (only once its directory is
// fully written by the caller) flips current_version to it, writing the
// manifest to a temp name and renaming into place (spec §4.9 "Atomic
// publish protocol"). The manifest is never rewritten in place.
func Publish(root string, m *Manifest, v Version) (*Manifest, error) {
	next := &Manifest{CurrentVersion: v.Name, Versions: make(map[string]Version, len(m.Versions)+1)}
	for name, ver := range m.Versions {
		next.Versions[name] = ver
	}
	next.Versions[v.Name] = v

	path := Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to rename manifest into place: %w", err)
	}
	return next, nil
}

// Retain enforces version_retention_count (spec §6 "version_retention_
// count"): it keeps current_version plus the newest keep-1 other
// versions (by name, descending) and returns the names of the rest, for
// the caller's GC pass to remove.
// Retain never includes current_version in its result, nor any name
// passed in pinned (the `gc --keep` flag of SPEC_FULL.md's SUPPLEMENTED
// FEATURES, for versions an operator wants held past their retention
// window).
func (m *Manifest) Retain(keep int, pinned ...string) []string {
	pin := make(map[string]bool, len(pinned))
	for _, p := range pinned {
		pin[p] = true
	}

	names := make([]string, 0, len(m.Versions))
	for name := range m.Versions {
		if name != m.CurrentVersion && !pin[name] {
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	keepOthers := keep - 1
	if keepOthers < 0 {
		keepOthers = 0
	}
	if len(names) <= keepOthers {
		return nil
	}
	return names[keepOthers:]
}

// Prune removes the named versions from m and returns the updated
// Manifest value (callers persist it with Write; see app/cmd/gc.go for
// the GC command's usage).
func (m *Manifest) Prune(names []string) *Manifest {
	next := &Manifest{CurrentVersion: m.CurrentVersion, Versions: make(map[string]Version, len(m.Versions))}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	for name, v := range m.Versions {
		if !drop[name] {
			next.Versions[name] = v
		}
	}
	return next
}

// Write persists m directly (used by GC after Prune; builds use Publish).
func Write(root string, m *Manifest) error {
	path := Path(root)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename manifest into place: %w", err)
	}
	return nil
}
