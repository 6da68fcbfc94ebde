package query

import (
	"context"
	"strings"
	"testing"

	"github.com/fths/urldex/internal/builder"
	"github.com/fths/urldex/internal/columnar"
	"github.com/fths/urldex/internal/config"
	"github.com/fths/urldex/internal/ingest"
)

func buildTestEngine(t *testing.T, urlsByDataset map[uint32][]string) *Engine {
	t.Helper()

	cfg := config.Defaults()
	cfg.BasePath = t.TempDir()
	cfg.PostingsShards = 4

	w := columnar.NewWriter(builder.ColumnarRoot(cfg), cfg.PartitionBufferSize, cfg.GlobalBufferLimit, cfg.CompressionLevel)
	for datasetID, urls := range urlsByDataset {
		if _, err := ingest.Source("test", datasetID, strings.NewReader(strings.Join(urls, "\n")), w, 10); err != nil {
			t.Fatalf("failed to ingest dataset %d: %v", datasetID, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("failed to flush: %v", err)
	}

	if _, err := builder.Build(cfg, false, nil); err != nil {
		t.Fatalf("failed to build: %v", err)
	}

	e, err := Open(cfg)
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestDatasetsOfKnownDomain(t *testing.T) {
	e := buildTestEngine(t, map[uint32][]string{
		1: {"https://a.com/x"},
		2: {"https://a.com/y"},
	})

	res, err := e.DatasetsOf(context.Background(), "a.com")
	if err != nil {
		t.Fatalf("DatasetsOf failed: %v", err)
	}
	if len(res.DatasetIDs) != 2 {
		t.Fatalf("expected 2 dataset ids, got %d: %v", len(res.DatasetIDs), res.DatasetIDs)
	}
	seen := map[uint32]bool{}
	for _, id := range res.DatasetIDs {
		seen[id] = true
	}
	if !seen[1] || !seen[2] {
		t.Errorf("expected dataset_ids {1,2}, got %v", res.DatasetIDs)
	}

	if res.MembershipCardinality != 2 {
		t.Errorf("got membership cardinality %d, want 2", res.MembershipCardinality)
	}
	if res.PostingEntryCounts[1] != 1 || res.PostingEntryCounts[2] != 1 {
		t.Errorf("expected 1 posting entry per dataset, got %v", res.PostingEntryCounts)
	}
}

func TestDatasetsOfUnknownDomainIsEmptyNotError(t *testing.T) {
	e := buildTestEngine(t, map[uint32][]string{1: {"https://a.com/x"}})

	res, err := e.DatasetsOf(context.Background(), "nowhere.example")
	if err != nil {
		t.Fatalf("expected no error for unknown domain, got %v", err)
	}
	if len(res.DatasetIDs) != 0 {
		t.Errorf("expected no dataset ids for unknown domain, got %v", res.DatasetIDs)
	}
}

func TestURLsOfReturnsMatchingRowsOnly(t *testing.T) {
	e := buildTestEngine(t, map[uint32][]string{
		1: {"https://a.com/x", "https://a.com/y", "https://b.com/z"},
	})

	res, err := e.URLsOf(context.Background(), "a.com", 1, 0, 10)
	if err != nil {
		t.Fatalf("URLsOf failed: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 urls for a.com, got %d: %+v", len(res.Items), res.Items)
	}
	if res.NextOffset != nil {
		t.Errorf("expected no next_offset when all results fit in one page, got %v", *res.NextOffset)
	}
}

func TestURLsOfPaginationUnionEqualsFullScan(t *testing.T) {
	e := buildTestEngine(t, map[uint32][]string{
		1: {
			"https://a.com/1",
			"https://a.com/2",
			"https://a.com/3",
			"https://a.com/4",
			"https://a.com/5",
		},
	})

	full, err := e.URLsOf(context.Background(), "a.com", 1, 0, 100)
	if err != nil {
		t.Fatalf("full scan failed: %v", err)
	}
	if len(full.Items) != 5 {
		t.Fatalf("expected 5 urls in full scan, got %d", len(full.Items))
	}

	var paged []URLItem
	var offset uint64
	for {
		page, err := e.URLsOf(context.Background(), "a.com", 1, offset, 2)
		if err != nil {
			t.Fatalf("paged scan failed at offset %d: %v", offset, err)
		}
		paged = append(paged, page.Items...)
		if page.NextOffset == nil {
			break
		}
		offset = *page.NextOffset
	}

	if len(paged) != len(full.Items) {
		t.Fatalf("paginated union has %d items, want %d", len(paged), len(full.Items))
	}
	for i := range full.Items {
		if full.Items[i].URLID != paged[i].URLID {
			t.Errorf("item %d: full scan urlid %d != paginated urlid %d", i, full.Items[i].URLID, paged[i].URLID)
		}
	}
}

func TestURLsOfZeroLimitReturnsNoItems(t *testing.T) {
	e := buildTestEngine(t, map[uint32][]string{1: {"https://a.com/x"}})

	res, err := e.URLsOf(context.Background(), "a.com", 1, 0, 0)
	if err != nil {
		t.Fatalf("URLsOf failed: %v", err)
	}
	if len(res.Items) != 0 {
		t.Errorf("expected no items for limit=0, got %d", len(res.Items))
	}
}

func TestURLsOfOffsetPastEndReturnsNoItems(t *testing.T) {
	e := buildTestEngine(t, map[uint32][]string{1: {"https://a.com/x"}})

	res, err := e.URLsOf(context.Background(), "a.com", 1, 1000, 10)
	if err != nil {
		t.Fatalf("URLsOf failed: %v", err)
	}
	if len(res.Items) != 0 {
		t.Errorf("expected no items when offset is past the end, got %d", len(res.Items))
	}
	if res.NextOffset != nil {
		t.Errorf("expected no next_offset once exhausted, got %v", *res.NextOffset)
	}
}

func TestURLsOfUnknownDatasetIsEmpty(t *testing.T) {
	e := buildTestEngine(t, map[uint32][]string{1: {"https://a.com/x"}})

	res, err := e.URLsOf(context.Background(), "a.com", 99, 0, 10)
	if err != nil {
		t.Fatalf("URLsOf failed: %v", err)
	}
	if len(res.Items) != 0 {
		t.Errorf("expected no items for a dataset the domain was never ingested under, got %d", len(res.Items))
	}
}

func TestURLsOfRespectsCanceledContext(t *testing.T) {
	e := buildTestEngine(t, map[uint32][]string{1: {"https://a.com/x"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.URLsOf(ctx, "a.com", 1, 0, 10)
	if err != nil {
		t.Fatalf("URLsOf returned an error instead of an empty/partial result: %v", err)
	}
	if len(res.Items) != 0 {
		t.Errorf("expected no items to be scanned once context is already canceled, got %d", len(res.Items))
	}
}
