package ingest

import (
	"strings"
	"testing"

	"github.com/fths/urldex/internal/columnar"
)

func TestSourceAcceptsAndRejects(t *testing.T) {
	root := t.TempDir()
	w := columnar.NewWriter(root, 1<<30, 1<<31, 3)

	raw := strings.Join([]string{
		"http://example.com/a",
		"",
		"https://example.org/b?x=1",
		"mailto:foo@bar.com",
	}, "\n")

	stats, err := Source("testset", 7, strings.NewReader(raw), w, 10)
	if err != nil {
		t.Fatalf("Source returned an error: %v", err)
	}
	if stats.Accepted != 2 {
		t.Errorf("got %d accepted, want 2", stats.Accepted)
	}
	if stats.Rejected != 1 {
		t.Errorf("got %d rejected, want 1 (mailto: has no host)", stats.Rejected)
	}
	if stats.DatasetID != 7 {
		t.Errorf("got dataset_id %d, want 7", stats.DatasetID)
	}

	if err := w.Flush(); err != nil {
		t.Fatalf("failed to flush: %v", err)
	}
}

func TestSourceCapsRejectErrors(t *testing.T) {
	root := t.TempDir()
	w := columnar.NewWriter(root, 1<<30, 1<<31, 3)

	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, "mailto:nohost@example.com")
	}

	stats, err := Source("testset", 1, strings.NewReader(strings.Join(lines, "\n")), w, 2)
	if err != nil {
		t.Fatalf("Source returned an error: %v", err)
	}
	if stats.Rejected != 5 {
		t.Errorf("got %d rejected, want 5", stats.Rejected)
	}
	if len(stats.RejectErrors) != 2 {
		t.Errorf("got %d reject errors recorded, want capped at 2", len(stats.RejectErrors))
	}
}
