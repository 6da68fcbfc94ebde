package cmd

import (
	"fmt"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/fths/urldex/internal/builder"
	"github.com/fths/urldex/internal/manifest"
	"github.com/fths/urldex/internal/postings"
)

const buildStageCount = 7

func newBuildCmd() *cobra.Command {
	var incremental bool
	var compact bool

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build or refresh the index over the columnar store",
		Long: `build publishes a new index version: a full build scans every
committed file; an incremental build (--incremental) scans only files
added since the current version and falls back to a full build if none
exists yet. --compact then rewrites the newly published version's
postings shards, collapsing duplicate (file_id, row_group) locators
under each key; it is skipped when the build returns the current
version unchanged.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parseFlags(cmd, map[string]any{
				"incremental": &incremental,
				"compact":     &compact,
			})

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			prevVersion := ""
			if m, err := manifest.Load(cfg.BasePath); err == nil {
				if cur, err := m.Current(); err == nil {
					prevVersion = cur.Name
				}
			}

			bar := pb.StartNew(buildStageCount)
			defer bar.Finish()

			v, err := builder.Build(cfg, incremental, func(stage string) {
				bar.Increment()
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", stage)
			})
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}

			if compact && v.Name != prevVersion {
				// Safe to rewrite v's own shards in place here: v was just
				// published and no query engine has pinned it yet.
				if err := postings.Compact(v.PostingsDir, v.PostingsDir, cfg.PostingsShards); err != nil {
					return fmt.Errorf("compaction failed: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "published version %s\n", v.Name)
			return nil
		},
	}

	buildCmd.Flags().Bool("incremental", false, "scan only files added since the current version")
	buildCmd.Flags().Bool("compact", false, "deduplicate postings locators in the newly published version's shards")

	return buildCmd
}

var buildCmd = newBuildCmd()

func init() {
	rootCmd.AddCommand(buildCmd)
}
