package builder

import (
	"fmt"
	"os"

	"github.com/fths/urldex/internal/dictionary"
	"github.com/fths/urldex/internal/filereg"
	"github.com/fths/urldex/internal/manifest"
	"github.com/fths/urldex/internal/membership"
	"github.com/fths/urldex/internal/mphf"
	"github.com/fths/urldex/internal/postings"
)

// prepareVersionDir creates a version's directory and its postings
// subdirectory before any artifact is written into them.
func prepareVersionDir(basePath string, v manifest.Version) error {
	versionDir := manifest.VersionDir(basePath, v.Name)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("failed to create version directory %s: %w", versionDir, err)
	}
	if err := os.MkdirAll(v.PostingsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create postings directory %s: %w", v.PostingsDir, err)
	}
	return nil
}

// publish writes every full-build artifact under v's version directory
// (spec §4.9 "write all artifacts under a version-tagged directory");
// the manifest itself is rewritten separately, last, by the caller.
func publish(basePath string, v manifest.Version, dict *dictionary.Dictionary, resolver *mphf.Resolver,
	memberIdx *membership.Index, postBuilder *postings.Builder, reg *filereg.Registry) error {

	if err := prepareVersionDir(basePath, v); err != nil {
		return err
	}

	if err := dictionary.Write(v.DictionaryPath, dict); err != nil {
		return fmt.Errorf("failed to write dictionary: %w", err)
	}
	if err := mphf.Write(v.MPHFPath, resolver); err != nil {
		return fmt.Errorf("failed to write mphf resolver: %w", err)
	}
	if err := membership.Write(v.MembershipPath, memberIdx, uint64(dict.Len())); err != nil {
		return fmt.Errorf("failed to write membership index: %w", err)
	}
	if err := filereg.Write(v.FileRegistryPath, reg); err != nil {
		return fmt.Errorf("failed to write file registry: %w", err)
	}
	if err := postBuilder.Write(v.PostingsDir); err != nil {
		return fmt.Errorf("failed to write postings index: %w", err)
	}
	return nil
}

func readWhole(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
