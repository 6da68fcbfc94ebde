// Package filereg implements the file registry of spec §4.6: file_id ->
// (dataset_id, domain_prefix, relative_path), assigned sequentially and
// never reused, even after a file is deleted.
package filereg

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fths/urldex/internal/columnar"
)

// Entry is one file registry row.
type Entry struct {
	FileID       uint32
	DatasetID    uint32
	DomainPrefix string
	RelativePath string
}

// Registry is an in-memory, indexed view of the file registry.
type Registry struct {
	byID   map[uint32]Entry
	byPath map[string]Entry
	nextID uint32
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byID: make(map[uint32]Entry), byPath: make(map[string]Entry)}
}

// ByID looks up an entry by file_id.
func (r *Registry) ByID(id uint32) (Entry, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// ByPath looks up an entry by its relative path.
func (r *Registry) ByPath(path string) (Entry, bool) {
	e, ok := r.byPath[path]
	return e, ok
}

// All returns every entry, ordered by file_id.
func (r *Registry) All() []Entry {
	out := make([]Entry, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileID < out[j].FileID })
	return out
}

func (r *Registry) add(datasetID uint32, domainPrefix, relPath string) Entry {
	e := Entry{FileID: r.nextID, DatasetID: datasetID, DomainPrefix: domainPrefix, RelativePath: relPath}
	r.byID[e.FileID] = e
	r.byPath[relPath] = e
	r.nextID++
	return e
}

// BuildFull enumerates every columnar part file under root and assigns
// file_ids in enumeration order (spec §4.6 "Full build").
func BuildFull(root string) (*Registry, error) {
	return buildFromScan(New(), root)
}

// BuildIncremental loads prev, enumerates root, and assigns fresh
// max+1, max+2, ... ids to any path not already registered. Previously
// registered entries keep their ids. Deletion is not handled here (spec
// §4.6 delegates that to GC).
func BuildIncremental(prev *Registry, root string) (*Registry, error) {
	next := New()
	next.nextID = prev.nextID
	for _, e := range prev.All() {
		next.byID[e.FileID] = e
		next.byPath[e.RelativePath] = e
	}
	return buildFromScan(next, root)
}

func buildFromScan(r *Registry, root string) (*Registry, error) {
	keys, err := columnar.ListPartitions(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions under %s: %w", root, err)
	}

	for _, key := range keys {
		paths, err := columnar.ListPartFiles(root, key)
		if err != nil {
			return nil, fmt.Errorf("failed to list part files for partition %+v: %w", key, err)
		}
		for _, abs := range paths {
			rel, err := relPath(root, abs)
			if err != nil {
				return nil, err
			}
			if _, ok := r.byPath[rel]; ok {
				continue
			}
			r.add(key.DatasetID, key.DomainPrefix, rel)
		}
	}
	return r, nil
}

func relPath(root, abs string) (string, error) {
	rel := abs
	if len(abs) > len(root) && abs[:len(root)] == root {
		rel = abs[len(root):]
		for len(rel) > 0 && (rel[0] == '/' || rel[0] == '\\') {
			rel = rel[1:]
		}
	}
	return rel, nil
}

// NewFiles returns the entries for paths under root that are absent from
// prev, carrying the file_ids BuildIncremental assigns them and in that
// assignment order — used by the index builder to decide what "new files"
// a build must scan.
func NewFiles(prev *Registry, root string) ([]Entry, error) {
	next, err := BuildIncremental(prev, root)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range next.All() {
		if _, ok := prev.byPath[e.RelativePath]; !ok {
			out = append(out, e)
		}
	}
	return out, nil
}

var fileRegMagic = [4]byte{'F', 'R', 'E', 'G'}

const fileRegVersion = uint32(1)

// Write persists r in tabular form, ZSTD is not applied here since the
// registry is already compact (fixed-width ids plus short path
// strings); the header still carries a magic + version pair like every
// other binary artifact (spec §6).
func Write(path string, r *Registry) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create file registry %s: %w", tmp, err)
	}

	writeErr := func() error {
		w := bufio.NewWriter(f)
		if _, err := w.Write(fileRegMagic[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, fileRegVersion); err != nil {
			return err
		}
		entries := r.All()
		if err := binary.Write(w, binary.LittleEndian, uint64(len(entries))); err != nil {
			return err
		}
		for _, e := range entries {
			if err := binary.Write(w, binary.LittleEndian, e.FileID); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, e.DatasetID); err != nil {
				return err
			}
			if _, err := w.WriteString(e.DomainPrefix); err != nil {
				return err
			}
			pathBytes := []byte(e.RelativePath)
			if err := binary.Write(w, binary.LittleEndian, uint16(len(pathBytes))); err != nil {
				return err
			}
			if _, err := w.Write(pathBytes); err != nil {
				return err
			}
		}
		return w.Flush()
	}()

	if cerr := f.Close(); writeErr == nil {
		writeErr = cerr
	}
	if writeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write file registry: %w", writeErr)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename file registry into place: %w", err)
	}
	return nil
}

// Load reads a file registry previously written by Write.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file registry %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read file registry magic: %w", err)
	}
	if magic != fileRegMagic {
		return nil, fmt.Errorf("%s: not a file registry (bad magic)", path)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != fileRegVersion {
		return nil, fmt.Errorf("%s: unsupported file registry version %d", path, version)
	}

	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	reg := New()
	var maxID uint32
	var sawAny bool
	for i := uint64(0); i < count; i++ {
		var e Entry
		if err := binary.Read(r, binary.LittleEndian, &e.FileID); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &e.DatasetID); err != nil {
			return nil, err
		}
		prefixBuf := make([]byte, 2)
		if _, err := io.ReadFull(r, prefixBuf); err != nil {
			return nil, err
		}
		e.DomainPrefix = string(prefixBuf)

		var pathLen uint16
		if err := binary.Read(r, binary.LittleEndian, &pathLen); err != nil {
			return nil, err
		}
		pathBuf := make([]byte, pathLen)
		if _, err := io.ReadFull(r, pathBuf); err != nil {
			return nil, err
		}
		e.RelativePath = string(pathBuf)

		reg.byID[e.FileID] = e
		reg.byPath[e.RelativePath] = e
		if !sawAny || e.FileID >= maxID {
			maxID = e.FileID
			sawAny = true
		}
	}
	if sawAny {
		reg.nextID = maxID + 1
	}
	return reg, nil
}
