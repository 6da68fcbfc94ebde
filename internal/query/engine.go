// Package query implements the two read operations of spec §4.11,
// chaining MPHF -> membership -> postings -> row-group scan against a
// single pinned manifest version's memory-mapped artifacts.
package query

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fths/urldex/internal/config"
	"github.com/fths/urldex/internal/dictionary"
	"github.com/fths/urldex/internal/filereg"
	"github.com/fths/urldex/internal/manifest"
	"github.com/fths/urldex/internal/membership"
	"github.com/fths/urldex/internal/mmapfile"
	"github.com/fths/urldex/internal/mphf"
	"github.com/fths/urldex/internal/postings"
	"github.com/fths/urldex/internal/xerrors"
)

// pinned holds every artifact of exactly one published version, open for
// the lifetime it is the Engine's current version (spec §5: "the
// service reads exactly one manifest version per request").
type pinned struct {
	version      string
	columnarRoot string

	dict     *dictionary.Dictionary
	resolver *mphf.Resolver
	fileReg  *filereg.Registry

	memberFile   *mmapfile.File
	memberReader *membership.Reader

	postingsReader *postings.Reader
}

func (p *pinned) Close() error {
	var err error
	if p.postingsReader != nil {
		if e := p.postingsReader.Close(); err == nil {
			err = e
		}
	}
	if p.memberFile != nil {
		if e := p.memberFile.Close(); err == nil {
			err = e
		}
	}
	return err
}

// Engine answers Operation A and Operation B against whichever version is
// currently pinned. Reload swaps in a newer version without disrupting
// in-flight requests holding a reference to the old one.
type Engine struct {
	cfg      config.Config
	basePath string

	mu      sync.RWMutex
	current *pinned
}

// Open loads the manifest's current_version and pins its artifacts.
func Open(cfg config.Config) (*Engine, error) {
	e := &Engine{cfg: cfg, basePath: cfg.BasePath}
	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload re-reads the manifest and, if current_version has advanced,
// pins the new version's artifacts. The previous pinned version is
// closed only after the swap, never while a request might still hold it
// (spec §5 "never mutated during a request").
func (e *Engine) Reload() error {
	m, err := manifest.Load(e.basePath)
	if err != nil {
		return err
	}
	v, err := m.Current()
	if err != nil {
		return err
	}

	e.mu.RLock()
	already := e.current != nil && e.current.version == v.Name
	e.mu.RUnlock()
	if already {
		return nil
	}

	p, err := pin(v)
	if err != nil {
		return xerrors.Wrap(xerrors.KindArtifactCorrupt, fmt.Sprintf("failed to pin version %s", v.Name), err)
	}

	e.mu.Lock()
	old := e.current
	e.current = p
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

func pin(v manifest.Version) (*pinned, error) {
	dict, err := dictionary.Load(v.DictionaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load dictionary: %w", err)
	}
	resolver, err := mphf.Load(v.MPHFPath, dictionary.Hash(dict))
	if err != nil {
		return nil, fmt.Errorf("failed to load mphf resolver: %w", err)
	}
	reg, err := filereg.Load(v.FileRegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file registry: %w", err)
	}

	memberFile, err := mmapfile.Open(v.MembershipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to map membership index: %w", err)
	}
	memberReader, err := membership.OpenReader(memberFile.Bytes())
	if err != nil {
		memberFile.Close()
		return nil, fmt.Errorf("failed to open membership index: %w", err)
	}

	postingsReader, err := postings.OpenReader(v.PostingsDir, v.PostingsShards)
	if err != nil {
		memberFile.Close()
		return nil, fmt.Errorf("failed to open postings index: %w", err)
	}

	return &pinned{
		version:        v.Name,
		columnarRoot:   v.ColumnarRoot,
		dict:           dict,
		resolver:       resolver,
		fileReg:        reg,
		memberFile:     memberFile,
		memberReader:   memberReader,
		postingsReader: postingsReader,
	}, nil
}

// snapshot returns the currently pinned version for the duration of one
// request (spec §4.11 "the server should pin the version for the
// duration of a paginated session").
func (e *Engine) snapshot() *pinned {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Close releases the currently pinned version's mmaps.
func (e *Engine) Close() error {
	e.mu.Lock()
	cur := e.current
	e.current = nil
	e.mu.Unlock()
	if cur == nil {
		return nil
	}
	return cur.Close()
}

// resolveDomain runs the MPHF lookup and dictionary verify step shared by
// both operations (spec §4.11 step 1 of A and B).
func (p *pinned) resolveDomain(domain string) (domainID uint64, found bool) {
	id, candidate := p.resolver.Lookup(domain)
	if !candidate {
		return 0, false
	}
	stored, ok := p.dict.At(id)
	if !ok || stored != domain {
		return 0, false
	}
	return id, true
}

func (e *Engine) partFilePath(p *pinned, fileID uint32) (string, error) {
	entry, ok := p.fileReg.ByID(fileID)
	if !ok {
		return "", xerrors.New(xerrors.KindArtifactCorrupt, fmt.Sprintf("postings referenced unknown file_id %d", fileID))
	}
	return filepath.Join(p.columnarRoot, entry.RelativePath), nil
}
