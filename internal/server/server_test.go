package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fths/urldex/internal/builder"
	"github.com/fths/urldex/internal/columnar"
	"github.com/fths/urldex/internal/config"
	"github.com/fths/urldex/internal/ingest"
	"github.com/fths/urldex/internal/query"
)

func newTestServer(t *testing.T, urlsByDataset map[uint32][]string, cfgFn func(*config.Config)) *Server {
	t.Helper()

	cfg := config.Defaults()
	cfg.BasePath = t.TempDir()
	cfg.PostingsShards = 4
	if cfgFn != nil {
		cfgFn(&cfg)
	}

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

	engine, err := query.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	return New(engine, cfg, nil)
}

func TestHandleDomainKnown(t *testing.T) {
	srv := newTestServer(t, map[uint32][]string{1: {"https://a.com/x"}, 2: {"https://a.com/y"}}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/domain/a.com")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}

	var body domainResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Domain != "a.com" {
		t.Errorf("got domain %q, want a.com", body.Domain)
	}
	if len(body.Datasets) != 2 {
		t.Errorf("got %d datasets, want 2", len(body.Datasets))
	}
}

func TestHandleDomainUnknownIsEmptyNot404(t *testing.T) {
	srv := newTestServer(t, map[uint32][]string{1: {"https://a.com/x"}}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/domain/nowhere.example")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200 for an unknown-but-well-formed domain", resp.StatusCode)
	}

	var body domainResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Datasets) != 0 {
		t.Errorf("expected no datasets for an unknown domain, got %v", body.Datasets)
	}
}

func TestHandleURLsBadDatasetID(t *testing.T) {
	srv := newTestServer(t, map[uint32][]string{1: {"https://a.com/x"}}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/domain/a.com/datasets/not-a-number/urls")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("got status %d, want 400 for a non-numeric dataset_id", resp.StatusCode)
	}
}

func TestHandleURLsLimitClampSetsWarningHeader(t *testing.T) {
	srv := newTestServer(t, map[uint32][]string{1: {"https://a.com/x"}}, func(c *config.Config) {
		c.MaxLimit = 1
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/domain/a.com/datasets/1/urls?limit=1000")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("Warning") == "" {
		t.Errorf("expected a Warning header when the requested limit was clamped")
	}

	var body urlsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Items) > 1 {
		t.Errorf("got %d items, want at most 1 (max_limit=1)", len(body.Items))
	}
}

func TestHandleURLsNoClampNoWarningHeader(t *testing.T) {
	srv := newTestServer(t, map[uint32][]string{1: {"https://a.com/x"}}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/domain/a.com/datasets/1/urls?limit=10")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Warning") != "" {
		t.Errorf("did not expect a Warning header when the limit was not clamped")
	}
}

func TestHandleURLsReturnsNormalizedURLs(t *testing.T) {
	srv := newTestServer(t, map[uint32][]string{1: {"https://a.com/x"}}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/domain/a.com/datasets/1/urls")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body urlsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Items) != 1 {
		t.Fatalf("expected 1 url, got %d", len(body.Items))
	}
	if body.Items[0].URL != "https://a.com/x" {
		t.Errorf("got url %q, want https://a.com/x", body.Items[0].URL)
	}
}
