// Package postings implements the (domain_id, dataset_id) -> list of
// (file_id, row_group) locator index of spec §4.8, sharded by domain_id
// mod S.
package postings

import "sort"

// Locator is one (file_id, row_group_index) pointer into the columnar
// store.
type Locator struct {
	FileID   uint32
	RowGroup uint32
}

// Key identifies one postings entry.
type Key struct {
	DomainID  uint64
	DatasetID uint32
}

// ShardOf returns the shard a domain_id's entries live in.
func ShardOf(domainID uint64, numShards int) int {
	return int(domainID % uint64(numShards))
}

// Builder accumulates postings entries in memory before they are
// grouped by shard and written (internal/postings persist.go).
type Builder struct {
	numShards int
	entries   map[Key][]Locator
}

// NewBuilder returns an empty Builder sharding by numShards.
func NewBuilder(numShards int) *Builder {
	return &Builder{numShards: numShards, entries: make(map[Key][]Locator)}
}

// Add appends a locator for (domainID, datasetID), preserving the order
// locators are added in (spec §4.8 "preserving order").
func (b *Builder) Add(domainID uint64, datasetID uint32, loc Locator) {
	k := Key{DomainID: domainID, DatasetID: datasetID}
	b.entries[k] = append(b.entries[k], loc)
}

// Entries returns every (key, locators) pair grouped by shard index.
func (b *Builder) Entries() map[int][]shardEntry {
	byShard := make(map[int][]shardEntry)
	for k, locs := range b.entries {
		shard := ShardOf(k.DomainID, b.numShards)
		byShard[shard] = append(byShard[shard], shardEntry{key: k, locators: locs})
	}
	for shard := range byShard {
		entries := byShard[shard]
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].key.DomainID != entries[j].key.DomainID {
				return entries[i].key.DomainID < entries[j].key.DomainID
			}
			return entries[i].key.DatasetID < entries[j].key.DatasetID
		})
		byShard[shard] = entries
	}
	return byShard
}

type shardEntry struct {
	key      Key
	locators []Locator
}

// MergeIncremental combines a previously-decoded shard's entries with
// newEntries, concatenating locator lists for keys that already existed
// (spec §4.8: "Entries for the same (domain, dataset) may be split
// across appends; the reader concatenates them" — here the builder
// concatenates eagerly so each key has one entry in the rewritten shard).
func MergeIncremental(prev map[Key][]Locator, add *Builder) *Builder {
	merged := NewBuilder(add.numShards)
	for k, locs := range prev {
		merged.entries[k] = append(merged.entries[k], locs...)
	}
	for k, locs := range add.entries {
		merged.entries[k] = append(merged.entries[k], locs...)
	}
	return merged
}
