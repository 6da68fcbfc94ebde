package postings

import "fmt"

// NumShards reports the shard count a Builder was constructed with.
func (b *Builder) NumShards() int { return b.numShards }

// Write fans Builder's accumulated entries out into numShards shard
// files under dir (spec §4.8 "Physical").
func (b *Builder) Write(dir string) error {
	byShard := b.Entries()
	for shard := 0; shard < b.numShards; shard++ {
		entries := byShard[shard]
		if err := WriteShard(dir, shard, entries); err != nil {
			return fmt.Errorf("failed to write postings shard %d: %w", shard, err)
		}
	}
	return nil
}

// WriteIncremental merges add's entries against whatever srcDir held for
// the same shards and writes every shard (touched or not) into dstDir,
// so each version owns a complete, immutable postings directory (spec
// §3 "index artifacts are written once per version and never mutated").
// builder.go always passes distinct version directories.
func WriteIncremental(srcDir, dstDir string, add *Builder) error {
	byShard := add.Entries()
	for shard := 0; shard < add.numShards; shard++ {
		prev, err := LoadShard(srcDir, shard)
		if err != nil {
			return fmt.Errorf("failed to load postings shard %d for merge: %w", shard, err)
		}

		shardAdd := NewBuilder(add.numShards)
		for _, e := range byShard[shard] {
			shardAdd.entries[e.key] = e.locators
		}

		merged := MergeIncremental(prev, shardAdd)
		mergedByShard := merged.Entries()
		if err := WriteShard(dstDir, shard, mergedByShard[shard]); err != nil {
			return fmt.Errorf("failed to write postings shard %d: %w", shard, err)
		}
	}
	return nil
}

// Compact rewrites every shard file from its decoded form, coalescing any
// fragmentation from repeated incremental merges into one dense pass and
// deduplicating (file_id, row_group) pairs a key may have accumulated
// across merges (spec §4.8 "compaction ... deduplicate (file_id,
// row_group) pairs"). srcDir and dstDir may be the same directory for a
// plain in-place compaction.
func Compact(srcDir, dstDir string, numShards int) error {
	for shard := 0; shard < numShards; shard++ {
		prev, err := LoadShard(srcDir, shard)
		if err != nil {
			return fmt.Errorf("failed to load postings shard %d for compaction: %w", shard, err)
		}
		for k, locs := range prev {
			prev[k] = dedupeLocators(locs)
		}
		b := NewBuilder(numShards)
		b.entries = prev
		byShard := b.Entries()
		if err := WriteShard(dstDir, shard, byShard[shard]); err != nil {
			return fmt.Errorf("failed to rewrite postings shard %d during compaction: %w", shard, err)
		}
	}
	return nil
}

// dedupeLocators drops repeated (file_id, row_group) pairs in place,
// keeping the first occurrence so lookup order is preserved.
func dedupeLocators(locs []Locator) []Locator {
	seen := make(map[Locator]struct{}, len(locs))
	out := locs[:0]
	for _, l := range locs {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
