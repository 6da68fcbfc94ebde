// Package builder orchestrates spec §4.4-§4.9 in this order: file
// registry, dictionary, MPHF, membership, postings, manifest. It implements
// the Index Builder of spec §4.10, in both full and incremental modes.
package builder

import (
	"fmt"
	"path/filepath"

	"github.com/fths/urldex/internal/columnar"
	"github.com/fths/urldex/internal/filereg"
	"github.com/fths/urldex/internal/postings"
)

// domainFact is one (domain, dataset_id) occurrence with the locator of
// the row group it was observed in, emitted once per distinct domain per
// row group (spec §4.8 "Full": "for each distinct domain in a row group,
// emit a locator").
type domainFact struct {
	Domain    string
	DatasetID uint32
	Locator   postings.Locator
}

// scanResult is everything a dictionary/membership/postings rebuild
// needs from a set of committed part files.
type scanResult struct {
	Domains []string
	Facts   []domainFact
}

// scanEntries reads every row group of every entry's part file under
// columnarRoot and extracts domain occurrences (spec §4.4 "scan the
// domain column of every committed file"; §4.8 "scan every committed
// file's domain column per row group").
func scanEntries(columnarRoot string, entries []filereg.Entry) (scanResult, error) {
	var result scanResult

	for _, e := range entries {
		path := filepath.Join(columnarRoot, e.RelativePath)
		pr, err := columnar.OpenPartReader(path)
		if err != nil {
			return scanResult{}, fmt.Errorf("failed to open part file %s for scan: %w", path, err)
		}

		err = pr.ForEachRowGroup(func(index int, payload []byte) (bool, error) {
			domains, err := columnar.RowGroupDomains(payload)
			if err != nil {
				return false, fmt.Errorf("failed to decode row group %d of %s: %w", index, path, err)
			}

			seen := make(map[string]bool, len(domains))
			for _, d := range domains {
				if seen[d] {
					continue
				}
				seen[d] = true
				result.Domains = append(result.Domains, d)
				result.Facts = append(result.Facts, domainFact{
					Domain:    d,
					DatasetID: e.DatasetID,
					Locator:   postings.Locator{FileID: e.FileID, RowGroup: uint32(index)},
				})
			}
			return true, nil
		})
		if err != nil {
			return scanResult{}, err
		}
	}

	return result, nil
}
