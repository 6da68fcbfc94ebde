package cmd

import (
	"fmt"
	"io"
	"time"
)

// tableRow is one row of a two-column aligned table, the same shape the
// teacher's internal/output.go prints domain statistics with.
type tableRow struct {
	lhs string
	rhs string
}

// printTable prints rows with the left column aligned to its widest entry.
func printTable(w io.Writer, rows []tableRow) error {
	if len(rows) == 0 {
		return nil
	}

	maxLHSWidth := 0
	for _, row := range rows {
		if len(row.lhs) > maxLHSWidth {
			maxLHSWidth = len(row.lhs)
		}
	}

	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%-*s : %s\n", maxLHSWidth, row.lhs, row.rhs); err != nil {
			return err
		}
	}
	return nil
}

func unixSeconds(s int64) time.Time {
	return time.Unix(s, 0)
}
