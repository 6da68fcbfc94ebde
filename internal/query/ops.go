package query

import (
	"context"
	"fmt"

	"github.com/fths/urldex/internal/columnar"
	"github.com/fths/urldex/internal/urlnorm"
	"github.com/fths/urldex/internal/xerrors"
)

// DatasetsResult is the answer to Operation A.
type DatasetsResult struct {
	Domain     string
	DomainID   uint64
	DatasetIDs []uint32

	// MembershipCardinality is the size of the domain's membership
	// bitmap, i.e. len(DatasetIDs); surfaced separately so callers (the
	// `inspect` command) can report it without recomputing it.
	MembershipCardinality uint64

	// PostingEntryCounts maps each of DatasetIDs to how many (file_id,
	// row_group) locators its postings entry holds for this domain, for
	// diagnostics (`inspect --domain`). A dataset can appear in
	// DatasetIDs with a zero count only if membership and postings have
	// drifted out of sync, which otherwise never happens in a published
	// version.
	PostingEntryCounts map[uint32]int
}

// DatasetsOf implements spec §4.11 Operation A: resolve the domain via
// the MPHF, verify against the dictionary, and read its membership
// bitmap. An unknown domain is not an error: it is an empty result.
func (e *Engine) DatasetsOf(ctx context.Context, domain string) (DatasetsResult, error) {
	if err := ctx.Err(); err != nil {
		return DatasetsResult{}, err
	}

	p := e.snapshot()
	if p == nil {
		return DatasetsResult{}, xerrors.New(xerrors.KindVersionMissing, "no version pinned")
	}

	domainID, ok := p.resolveDomain(domain)
	if !ok {
		return DatasetsResult{Domain: domain}, nil
	}

	datasetIDs, err := p.memberReader.DatasetsOf(domainID)
	if err != nil {
		return DatasetsResult{}, xerrors.Wrap(xerrors.KindArtifactCorrupt, "failed to read membership index", err)
	}

	counts := make(map[uint32]int, len(datasetIDs))
	for _, datasetID := range datasetIDs {
		locators, found, err := p.postingsReader.Lookup(domainID, datasetID)
		if err != nil {
			return DatasetsResult{}, xerrors.Wrap(xerrors.KindArtifactCorrupt, "failed to read postings index", err)
		}
		if found {
			counts[datasetID] = len(locators)
		}
	}

	return DatasetsResult{
		Domain:                domain,
		DomainID:              domainID,
		DatasetIDs:            datasetIDs,
		MembershipCardinality: uint64(len(datasetIDs)),
		PostingEntryCounts:    counts,
	}, nil
}

// URLItem is one row of Operation B's result.
type URLItem struct {
	URLID uint64
	URL   string
}

// URLsResult is the answer to Operation B.
type URLsResult struct {
	Items      []URLItem
	NextOffset *uint64
}

// URLsOf implements spec §4.11 Operation B: resolve domain_id, look up
// postings for (domain_id, dataset_id), and traverse (file_id, row_group)
// locators in payload order, filtering rows by the exact domain string
// (not domain_id, per spec: "this ensures correctness even if a
// dictionary was rebuilt or IDs shifted historically"), skipping offset
// rows and accumulating up to limit.
func (e *Engine) URLsOf(ctx context.Context, domain string, datasetID uint32, offset uint64, limit uint32) (URLsResult, error) {
	if limit == 0 {
		return URLsResult{Items: nil, NextOffset: ptrU64(offset)}, nil
	}

	p := e.snapshot()
	if p == nil {
		return URLsResult{}, xerrors.New(xerrors.KindVersionMissing, "no version pinned")
	}

	domainID, ok := p.resolveDomain(domain)
	if !ok {
		return URLsResult{}, nil
	}

	locators, found, err := p.postingsReader.Lookup(domainID, datasetID)
	if err != nil {
		return URLsResult{}, xerrors.Wrap(xerrors.KindArtifactCorrupt, "failed to read postings index", err)
	}
	if !found {
		return URLsResult{}, nil
	}

	cols := columnar.ColumnSet{Scheme: true, Host: true, PathQuery: true, Domain: true}

	var items []URLItem
	var matched uint64
	moreMayExist := false

	for _, loc := range locators {
		if err := ctx.Err(); err != nil {
			moreMayExist = true
			break
		}

		path, err := e.partFilePath(p, loc.FileID)
		if err != nil {
			return URLsResult{}, err
		}
		pr, err := columnar.OpenPartReader(path)
		if err != nil {
			return URLsResult{}, xerrors.Wrap(xerrors.KindTransientIO, fmt.Sprintf("failed to open part file for file_id %d", loc.FileID), err)
		}
		payload, err := pr.ReadRowGroup(int(loc.RowGroup))
		if err != nil {
			return URLsResult{}, xerrors.Wrap(xerrors.KindTransientIO, fmt.Sprintf("failed to read row group %d of file_id %d", loc.RowGroup, loc.FileID), err)
		}
		rows, err := columnar.DecodeRowGroup(payload, cols)
		if err != nil {
			return URLsResult{}, xerrors.Wrap(xerrors.KindArtifactCorrupt, "failed to decode row group", err)
		}

		limitHit := false
		for _, row := range rows {
			if row.Domain != domain {
				continue
			}
			if matched < offset {
				matched++
				continue
			}
			if uint64(len(items)) >= uint64(limit) {
				limitHit = true
				break
			}
			items = append(items, URLItem{
				URLID: row.URLID,
				URL:   urlnorm.Reconstruct(row.Scheme, row.Host, row.PathQuery),
			})
			matched++
		}
		if limitHit {
			moreMayExist = true
			break
		}
		if err := ctx.Err(); err != nil {
			moreMayExist = true
			break
		}
	}

	var nextOffset *uint64
	if moreMayExist {
		nextOffset = ptrU64(offset + uint64(len(items)))
	}
	return URLsResult{Items: items, NextOffset: nextOffset}, nil
}

func ptrU64(v uint64) *uint64 { return &v }
