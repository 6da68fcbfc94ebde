// Package columnar implements the partitioned columnar store spec §4.3
// writes to and spec §4.11 reads from: per-(dataset_id, domain_prefix)
// partitions of immutable, row-grouped, dictionary-encoded, ZSTD-
// compressed part files.
package columnar

// Row is the record stored in columnar files (spec §3). dataset_id and
// domain_prefix are not part of the row body: they are encoded in the
// partition's directory path.
type Row struct {
	DomainID  uint64
	URLID     uint64
	Scheme    string
	Host      string
	PathQuery string
	Domain    string
}

// PartitionKey identifies a partition directory.
type PartitionKey struct {
	DatasetID    uint32
	DomainPrefix string // two lowercase hex characters
}
