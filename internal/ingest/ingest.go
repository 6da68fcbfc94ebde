// Package ingest reads a dataset source and writes its normalized rows
// into the partitioned columnar store. Dataset source adapters
// themselves (remote-dataset streaming, etc.) are a named external
// collaborator (spec §1); this package reads a line-delimited stream of
// raw URL strings, which is the one concrete source the CLI supports.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fths/urldex/internal/columnar"
	"github.com/fths/urldex/internal/identity"
	"github.com/fths/urldex/internal/urlnorm"
	"github.com/fths/urldex/internal/xerrors"
)

// Stats summarizes one ingest run, reported by the `ingest` CLI command.
type Stats struct {
	DatasetID    uint32
	Accepted     int
	Rejected     int
	RejectErrors []error
}

// Source reads raw URL strings from src, one per line, normalizes each,
// and appends its row to w under (datasetID, domain_prefix). A rejected
// line (spec §7 InputMalformed) is skipped, counted, and does not abort
// the batch.
func Source(datasetName string, datasetID uint32, src io.Reader, w *columnar.Writer, maxRejectErrors int) (Stats, error) {
	stats := Stats{DatasetID: datasetID}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		canon, err := urlnorm.Normalize(line)
		if err != nil {
			stats.Rejected++
			if len(stats.RejectErrors) < maxRejectErrors {
				stats.RejectErrors = append(stats.RejectErrors, xerrors.Wrap(xerrors.KindInputMalformed, fmt.Sprintf("line %q", line), err))
			}
			continue
		}

		// DomainID is left zero: domain_id is assigned by the index builder
		// once a dictionary exists, not at ingest time.
		row := columnar.Row{
			URLID:     identity.URLID(line),
			Scheme:    canon.Scheme,
			Host:      canon.Host,
			PathQuery: canon.PathQuery,
			Domain:    canon.Domain,
		}
		key := columnar.PartitionKey{DatasetID: datasetID, DomainPrefix: identity.DomainPrefix(canon.Domain)}

		if err := w.AddRow(key, row); err != nil {
			return stats, fmt.Errorf("failed to write row for dataset %s: %w", datasetName, err)
		}
		stats.Accepted++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read source for dataset %s: %w", datasetName, err)
	}

	return stats, nil
}
