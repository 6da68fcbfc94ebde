package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fths/urldex/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "urldex",
	Short: "URL domain/dataset indexing and lookup engine",
	Long: `urldex ingests URLs into a partitioned columnar store, builds a
versioned index over them, and answers two questions: which datasets a
domain appears in, and which URLs under a (domain, dataset) it owns.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a urldex.yaml config file")
	rootCmd.PersistentFlags().String("base-path", "", "override base_path")
	rootCmd.PersistentFlags().Int("compression-level", 0, "override compression_level")
	rootCmd.PersistentFlags().Int("postings-shards", 0, "override postings_shards")
	rootCmd.PersistentFlags().Int("max-limit", 0, "override max_limit")
	rootCmd.PersistentFlags().Int("version-retention-count", 0, "override version_retention_count")
}

// loadConfig loads the layered configuration and applies any flags the
// user actually set on cmd, per the precedence config.BindFlags documents.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	return config.BindFlags(cmd, cfg)
}
