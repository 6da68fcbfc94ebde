package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fths/urldex/internal/manifest"
)

func newGCCmd() *cobra.Command {
	gcCmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove version directories beyond version_retention_count",
		Long: `gc keeps current_version plus the newest version_retention_count-1
other published versions, removes the directories of the rest from disk,
and rewrites the manifest to drop them. --keep pins
additional version names so they survive collection regardless of age.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var keep []string
			parseFlags(cmd, map[string]any{"keep": &keep})

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			m, err := manifest.Load(cfg.BasePath)
			if err != nil {
				return fmt.Errorf("failed to load manifest: %w", err)
			}

			toRemove := m.Retain(cfg.VersionRetentionCount, keep...)
			if len(toRemove) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to collect")
				return nil
			}

			for _, name := range toRemove {
				dir := manifest.VersionDir(cfg.BasePath, name)
				if err := os.RemoveAll(dir); err != nil {
					return fmt.Errorf("failed to remove version directory %s: %w", dir, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed version %s\n", name)
			}

			pruned := m.Prune(toRemove)
			if err := manifest.Write(cfg.BasePath, pruned); err != nil {
				return fmt.Errorf("failed to persist pruned manifest: %w", err)
			}
			return nil
		},
	}

	gcCmd.Flags().StringSlice("keep", nil, "version names to pin and never collect, even if older than version_retention_count")

	return gcCmd
}

var gcCmd = newGCCmd()

func init() {
	rootCmd.AddCommand(gcCmd)
}
