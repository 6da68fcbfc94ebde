package builder

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fths/urldex/internal/config"
	"github.com/fths/urldex/internal/dictionary"
	"github.com/fths/urldex/internal/filereg"
	"github.com/fths/urldex/internal/manifest"
	"github.com/fths/urldex/internal/membership"
	"github.com/fths/urldex/internal/mphf"
	"github.com/fths/urldex/internal/postings"
)

// ColumnarRoot returns the partitioned columnar store's root under cfg's
// base_path (spec §6 "urls/dataset_id={id}/domain_prefix={hh}/...").
func ColumnarRoot(cfg config.Config) string {
	return filepath.Join(cfg.BasePath, "urls")
}

func newVersionName() string {
	return time.Now().UTC().Format("20060102T150405.000000000Z")
}

// Progress receives one line per builder stage; the CLI wires it to a
// progress bar (SPEC_FULL.md), tests and library callers may pass nil.
type Progress func(stage string)

func report(p Progress, stage string) {
	if p != nil {
		p(stage)
	}
}

// Build runs a full or incremental build depending on whether a manifest
// already names a current_version, per spec §4.10 ("Incremental build:
// if no previous version exists, delegate to full").
func Build(cfg config.Config, incremental bool, progress Progress) (*manifest.Version, error) {
	if !incremental {
		return buildFull(cfg, progress)
	}

	m, err := manifest.Load(cfg.BasePath)
	if err != nil {
		return buildFull(cfg, progress)
	}
	prev, err := m.Current()
	if err != nil {
		return buildFull(cfg, progress)
	}
	return buildIncremental(cfg, m, prev, progress)
}

func buildFull(cfg config.Config, progress Progress) (*manifest.Version, error) {
	columnarRoot := ColumnarRoot(cfg)

	report(progress, "scanning file registry")
	reg, err := filereg.BuildFull(columnarRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to build file registry: %w", err)
	}

	report(progress, "scanning row groups for domains")
	scan, err := scanEntries(columnarRoot, reg.All())
	if err != nil {
		return nil, fmt.Errorf("failed to scan columnar store: %w", err)
	}

	report(progress, "building domain dictionary")
	dict := dictionary.BuildFull(scan.Domains)

	report(progress, "building mphf resolver")
	resolver := mphf.Build(dict)

	report(progress, "building membership index")
	memberIdx := membership.BuildFull(toMembershipPairs(dict, scan.Facts))

	report(progress, "building postings index")
	postBuilder := postings.NewBuilder(cfg.PostingsShards)
	for _, f := range scan.Facts {
		domainID, ok := dict.IDOf(f.Domain)
		if !ok {
			continue
		}
		postBuilder.Add(domainID, f.DatasetID, f.Locator)
	}

	version := newVersionName()
	versionDir := manifest.VersionDir(cfg.BasePath, version)

	v := manifest.Version{
		Name:                 version,
		DictionaryPath:       filepath.Join(versionDir, "dictionary.dict"),
		MPHFPath:             filepath.Join(versionDir, "resolver.mphf"),
		MembershipPath:       filepath.Join(versionDir, "membership.dtdr"),
		PostingsDir:          filepath.Join(versionDir, "postings"),
		PostingsShards:       cfg.PostingsShards,
		FileRegistryPath:     filepath.Join(versionDir, "file_registry.freg"),
		ColumnarRoot:         columnarRoot,
		CreatedAtUnixSeconds: time.Now().Unix(),
	}

	report(progress, "publishing version")
	if err := publish(cfg.BasePath, v, dict, resolver, memberIdx, postBuilder, reg); err != nil {
		return nil, err
	}

	m, err := manifest.Load(cfg.BasePath)
	if err != nil {
		m = manifest.Empty()
	}
	published, err := manifest.Publish(cfg.BasePath, m, v)
	if err != nil {
		return nil, fmt.Errorf("failed to publish manifest: %w", err)
	}
	pv := published.Versions[v.Name]
	return &pv, nil
}

func buildIncremental(cfg config.Config, m *manifest.Manifest, prev manifest.Version, progress Progress) (*manifest.Version, error) {
	columnarRoot := ColumnarRoot(cfg)

	report(progress, "loading previous file registry")
	prevReg, err := filereg.Load(prev.FileRegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous file registry: %w", err)
	}

	newFiles, err := filereg.NewFiles(prevReg, columnarRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to diff file registry: %w", err)
	}
	if len(newFiles) == 0 {
		report(progress, "no new files; returning previous version unchanged")
		return &prev, nil
	}

	reg, err := filereg.BuildIncremental(prevReg, columnarRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to extend file registry: %w", err)
	}

	report(progress, "scanning new row groups for domains")
	scan, err := scanEntries(columnarRoot, newFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to scan new columnar files: %w", err)
	}

	report(progress, "loading previous dictionary")
	prevDict, err := dictionary.Load(prev.DictionaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous dictionary: %w", err)
	}
	dict := dictionary.BuildIncremental(prevDict, scan.Domains)

	report(progress, "rebuilding mphf resolver")
	resolver := mphf.Build(dict)

	report(progress, "loading previous membership index")
	prevMemberData, err := readWhole(prev.MembershipPath)
	if err != nil {
		return nil, err
	}
	prevMemberReader, err := membership.OpenReader(prevMemberData)
	if err != nil {
		return nil, fmt.Errorf("failed to open previous membership index: %w", err)
	}
	prevMemberIdx := membership.New()
	for id := uint64(0); id < uint64(prevDict.Len()); id++ {
		datasetIDs, err := prevMemberReader.DatasetsOf(id)
		if err != nil {
			return nil, fmt.Errorf("failed to decode previous membership entry %d: %w", id, err)
		}
		for _, dsID := range datasetIDs {
			prevMemberIdx.Add(id, dsID)
		}
	}

	memberIdx := membership.BuildIncremental(prevMemberIdx, toMembershipPairs(dict, scan.Facts))

	report(progress, "merging postings index")
	postBuilder := postings.NewBuilder(cfg.PostingsShards)
	for _, f := range scan.Facts {
		domainID, ok := dict.IDOf(f.Domain)
		if !ok {
			continue
		}
		postBuilder.Add(domainID, f.DatasetID, f.Locator)
	}

	version := newVersionName()
	versionDir := manifest.VersionDir(cfg.BasePath, version)

	v := manifest.Version{
		Name:                 version,
		DictionaryPath:       filepath.Join(versionDir, "dictionary.dict"),
		MPHFPath:             filepath.Join(versionDir, "resolver.mphf"),
		MembershipPath:       filepath.Join(versionDir, "membership.dtdr"),
		PostingsDir:          filepath.Join(versionDir, "postings"),
		PostingsShards:       cfg.PostingsShards,
		FileRegistryPath:     filepath.Join(versionDir, "file_registry.freg"),
		ColumnarRoot:         columnarRoot,
		CreatedAtUnixSeconds: time.Now().Unix(),
	}

	report(progress, "publishing version")
	if err := prepareVersionDir(cfg.BasePath, v); err != nil {
		return nil, err
	}
	if err := dictionary.Write(v.DictionaryPath, dict); err != nil {
		return nil, err
	}
	if err := mphf.Write(v.MPHFPath, resolver); err != nil {
		return nil, err
	}
	if err := membership.Write(v.MembershipPath, memberIdx, uint64(dict.Len())); err != nil {
		return nil, err
	}
	if err := filereg.Write(v.FileRegistryPath, reg); err != nil {
		return nil, err
	}
	if err := postings.WriteIncremental(prev.PostingsDir, v.PostingsDir, postBuilder); err != nil {
		return nil, err
	}

	published, err := manifest.Publish(cfg.BasePath, m, v)
	if err != nil {
		return nil, fmt.Errorf("failed to publish manifest: %w", err)
	}
	pv := published.Versions[v.Name]
	return &pv, nil
}

func toMembershipPairs(dict *dictionary.Dictionary, facts []domainFact) []membership.Pair {
	pairs := make([]membership.Pair, 0, len(facts))
	for _, f := range facts {
		domainID, ok := dict.IDOf(f.Domain)
		if !ok {
			continue
		}
		pairs = append(pairs, membership.Pair{DomainID: domainID, DatasetID: f.DatasetID})
	}
	return pairs
}
