package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fths/urldex/internal/manifest"
	"github.com/fths/urldex/internal/query"
)

func newInspectCmd() *cobra.Command {
	var domain string

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print manifest and index summary, or a single domain's datasets",
		Long: `inspect with no flags prints the manifest's current_version, its
creation time and postings shard count, and how many versions the
manifest retains. inspect --domain D resolves D against the live index
and prints the dataset_ids it appears in.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parseFlags(cmd, map[string]any{"domain": &domain})

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()

			if domain != "" {
				engine, err := query.Open(cfg)
				if err != nil {
					return fmt.Errorf("failed to open query engine: %w", err)
				}
				defer engine.Close()

				result, err := engine.DatasetsOf(context.Background(), domain)
				if err != nil {
					return fmt.Errorf("lookup failed: %w", err)
				}

				rows := []tableRow{
					{"domain", result.Domain},
					{"domain_id", fmt.Sprintf("%d", result.DomainID)},
					{"membership cardinality", fmt.Sprintf("%d", result.MembershipCardinality)},
				}
				for _, id := range result.DatasetIDs {
					rows = append(rows, tableRow{
						fmt.Sprintf("dataset_id %d postings", id),
						fmt.Sprintf("%d", result.PostingEntryCounts[id]),
					})
				}
				return printTable(stdout, rows)
			}

			m, err := manifest.Load(cfg.BasePath)
			if err != nil {
				return fmt.Errorf("failed to load manifest: %w", err)
			}
			cur, err := m.Current()
			if err != nil {
				return fmt.Errorf("failed to resolve current_version: %w", err)
			}

			rows := []tableRow{
				{"current_version", cur.Name},
				{"created", humanize.Time(unixSeconds(cur.CreatedAtUnixSeconds))},
				{"postings_shards", fmt.Sprintf("%d", cur.PostingsShards)},
				{"version count", fmt.Sprintf("%d", len(m.Versions))},
			}
			return printTable(stdout, rows)
		},
	}

	inspectCmd.Flags().String("domain", "", "look up a specific domain's datasets instead of printing the manifest summary")

	return inspectCmd
}

var inspectCmd = newInspectCmd()

func init() {
	rootCmd.AddCommand(inspectCmd)
}
