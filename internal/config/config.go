// Package config holds the engine's recognized configuration surface.
// Loading from a file, environment, or flags (loader.go) unmarshals into
// Config and calls Validate.
package config

import "fmt"

// StoreFlavor names the columnar-store backend a Config points at.
type StoreFlavor string

const (
	StoreFlavorLocal  StoreFlavor = "local"
	StoreFlavorRemote StoreFlavor = "remote"
)

// Config is the exact recognized option set named in spec §9: base_path,
// partition_buffer_size, global_buffer_limit, compression_level,
// postings_shards, max_limit, version_retention_count, plus the
// columnar-store flavor. No other fields are read by the engine.
type Config struct {
	BasePath              string      `mapstructure:"base_path" yaml:"base_path"`
	PartitionBufferSize   int64       `mapstructure:"partition_buffer_size" yaml:"partition_buffer_size"`
	GlobalBufferLimit     int64       `mapstructure:"global_buffer_limit" yaml:"global_buffer_limit"`
	CompressionLevel      int         `mapstructure:"compression_level" yaml:"compression_level"`
	PostingsShards        int         `mapstructure:"postings_shards" yaml:"postings_shards"`
	MaxLimit              int         `mapstructure:"max_limit" yaml:"max_limit"`
	VersionRetentionCount int         `mapstructure:"version_retention_count" yaml:"version_retention_count"`
	StoreFlavor           StoreFlavor `mapstructure:"store_flavor" yaml:"store_flavor"`
}

// Defaults returns a Config that is always valid, following the values
// named throughout spec.md (128 MiB partition buffers, ZSTD level 6,
// 1024 postings shards, a default/maximum limit of 1000/10000).
func Defaults() Config {
	return Config{
		BasePath:              "./data",
		PartitionBufferSize:   128 << 20,
		GlobalBufferLimit:     4 << 30,
		CompressionLevel:      6,
		PostingsShards:        1024,
		MaxLimit:              10000,
		VersionRetentionCount: 3,
		StoreFlavor:           StoreFlavorLocal,
	}
}

// DefaultLimit is the default page size when a request does not specify one.
const DefaultLimit = 1000

// Validate rejects a Config whose values could not produce a working
// store: a non-positive buffer size, a postings-shard count that isn't a
// power of two, or an unknown store flavor.
func (c Config) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("base_path must not be empty")
	}
	if c.PartitionBufferSize <= 0 {
		return fmt.Errorf("partition_buffer_size must be positive, got %d", c.PartitionBufferSize)
	}
	if c.GlobalBufferLimit <= 0 {
		return fmt.Errorf("global_buffer_limit must be positive, got %d", c.GlobalBufferLimit)
	}
	if c.GlobalBufferLimit < c.PartitionBufferSize {
		return fmt.Errorf("global_buffer_limit (%d) must be >= partition_buffer_size (%d)", c.GlobalBufferLimit, c.PartitionBufferSize)
	}
	if c.CompressionLevel < 1 || c.CompressionLevel > 22 {
		return fmt.Errorf("compression_level must be in [1,22], got %d", c.CompressionLevel)
	}
	if c.PostingsShards <= 0 || c.PostingsShards&(c.PostingsShards-1) != 0 {
		return fmt.Errorf("postings_shards must be a power of two, got %d", c.PostingsShards)
	}
	if c.MaxLimit <= 0 {
		return fmt.Errorf("max_limit must be positive, got %d", c.MaxLimit)
	}
	if c.VersionRetentionCount < 0 {
		return fmt.Errorf("version_retention_count must be non-negative, got %d", c.VersionRetentionCount)
	}
	switch c.StoreFlavor {
	case StoreFlavorLocal, StoreFlavorRemote:
	default:
		return fmt.Errorf("unknown store_flavor %q", c.StoreFlavor)
	}
	return nil
}

// ClampLimit applies the "limit exceeds configured maximum -> clamped"
// rule of spec §4.11 and §7 (OverCapacity).
func (c Config) ClampLimit(limit int) (clamped int, wasClamped bool) {
	if limit > c.MaxLimit {
		return c.MaxLimit, true
	}
	return limit, false
}
