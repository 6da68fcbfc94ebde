package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Load reads configuration from a YAML file named by configPath or, when
// configPath is empty, from ./urldex.yaml or
// $HOME/.config/urldex/urldex.yaml, then layers URLDEX_*-prefixed
// environment variables on top. When configPath is empty and no file is
// found, Load starts from Defaults() instead, mirroring the teacher's
// "no file found -> sensible defaults" loader shape; a configPath that
// cannot be read is an error.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("urldex")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "urldex"))
		}
	}

	v.SetEnvPrefix("URLDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Defaults()
	v.SetDefault("base_path", def.BasePath)
	v.SetDefault("partition_buffer_size", def.PartitionBufferSize)
	v.SetDefault("global_buffer_limit", def.GlobalBufferLimit)
	v.SetDefault("compression_level", def.CompressionLevel)
	v.SetDefault("postings_shards", def.PostingsShards)
	v.SetDefault("max_limit", def.MaxLimit)
	v.SetDefault("version_retention_count", def.VersionRetentionCount)
	v.SetDefault("store_flavor", string(def.StoreFlavor))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if configPath != "" {
				return Config{}, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// BindFlags overrides cfg with any cobra flags the caller actually set,
// flags taking precedence over file/env/defaults as spec.md intends.
func BindFlags(cmd *cobra.Command, cfg Config) (Config, error) {
	flags := cmd.Flags()

	if flags.Changed("base-path") {
		cfg.BasePath, _ = flags.GetString("base-path")
	}
	if flags.Changed("compression-level") {
		cfg.CompressionLevel, _ = flags.GetInt("compression-level")
	}
	if flags.Changed("postings-shards") {
		cfg.PostingsShards, _ = flags.GetInt("postings-shards")
	}
	if flags.Changed("max-limit") {
		cfg.MaxLimit, _ = flags.GetInt("max-limit")
	}
	if flags.Changed("version-retention-count") {
		cfg.VersionRetentionCount, _ = flags.GetInt("version-retention-count")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration after flag binding: %w", err)
	}
	return cfg, nil
}
