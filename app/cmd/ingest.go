package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fths/urldex/internal/columnar"
	"github.com/fths/urldex/internal/identity"
	"github.com/fths/urldex/internal/ingest"
)

func newIngestCmd() *cobra.Command {
	var maxRejectErrors int

	ingestCmd := &cobra.Command{
		Use:   "ingest <dataset-name> <source>...",
		Short: "Normalize and store URLs into the columnar store",
		Long: `ingest reads line-delimited raw URL strings from one or more sources
(a file path, or "-" for STDIN), normalizes each, and writes them into
the partitioned columnar store under the dataset name given.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parseFlags(cmd, map[string]any{
				"max-reject-errors": &maxRejectErrors,
			})

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			datasetName := args[0]
			sources := args[1:]

			reg, err := identity.OpenDatasetRegistry(filepath.Join(cfg.BasePath, "registry", "dataset_registry.json"))
			if err != nil {
				return fmt.Errorf("failed to open dataset registry: %w", err)
			}
			datasetID, err := reg.Resolve(datasetName)
			if err != nil {
				return fmt.Errorf("failed to resolve dataset_id for %q: %w", datasetName, err)
			}

			columnarRoot := filepath.Join(cfg.BasePath, "urls")
			w := columnar.NewWriter(columnarRoot, cfg.PartitionBufferSize, cfg.GlobalBufferLimit, cfg.CompressionLevel)

			stdout := cmd.OutOrStdout()
			var totalAccepted, totalRejected int

			for _, source := range sources {
				stats, err := ingestOne(datasetName, datasetID, source, w, maxRejectErrors)
				if err != nil {
					return err
				}
				totalAccepted += stats.Accepted
				totalRejected += stats.Rejected
				for _, e := range stats.RejectErrors {
					fmt.Fprintf(cmd.ErrOrStderr(), "reject: %v\n", e)
				}
			}

			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush columnar writer: %w", err)
			}

			fmt.Fprintf(stdout, "dataset %q (id %d): %s accepted, %s rejected\n",
				datasetName, datasetID, humanize.Comma(int64(totalAccepted)), humanize.Comma(int64(totalRejected)))
			return nil
		},
	}

	ingestCmd.Flags().Int("max-reject-errors", 20, "maximum rejected-URL errors to report per source")

	return ingestCmd
}

func ingestOne(datasetName string, datasetID uint32, source string, w *columnar.Writer, maxRejectErrors int) (ingest.Stats, error) {
	if source == "-" {
		return ingest.Source(datasetName, datasetID, os.Stdin, w, maxRejectErrors)
	}

	f, err := os.Open(source)
	if err != nil {
		return ingest.Stats{}, fmt.Errorf("failed to open source %s: %w", source, err)
	}
	defer f.Close()

	return ingest.Source(datasetName, datasetID, f, w, maxRejectErrors)
}

var ingestCmd = newIngestCmd()

func init() {
	rootCmd.AddCommand(ingestCmd)
}
