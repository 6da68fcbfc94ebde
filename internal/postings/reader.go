package postings

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/fths/urldex/internal/mmapfile"
)

// ShardReader binary-searches one shard's mmap'd index for a
// (domain_id, dataset_id) key and decodes its payload from the mmap'd
// data file (spec §4.11: "mmap-shared read-only artifacts").
type ShardReader struct {
	index   *mmapfile.File
	data    *mmapfile.File
	records int
}

// OpenShardReader maps shard's index and data files under dir.
func OpenShardReader(dir string, shard int) (*ShardReader, error) {
	indexPath, dataPath := ShardPaths(dir, shard)

	index, err := mmapfile.Open(indexPath)
	if err != nil {
		return nil, err
	}
	data, err := mmapfile.Open(dataPath)
	if err != nil {
		index.Close()
		return nil, err
	}

	r := &ShardReader{index: index, data: data}
	if len(index.Bytes()) > 0 {
		if err := r.validate(); err != nil {
			index.Close()
			data.Close()
			return nil, err
		}
	}
	return r, nil
}

func (r *ShardReader) validate() error {
	b := r.index.Bytes()
	if len(b) < 24 {
		return fmt.Errorf("postings shard index too small")
	}
	if [4]byte(b[:4]) != indexMagic {
		return fmt.Errorf("not a postings index (bad magic)")
	}
	if binary.LittleEndian.Uint32(b[4:8]) != shardVersion {
		return fmt.Errorf("unsupported postings index version")
	}
	n := binary.LittleEndian.Uint64(b[8:16])
	if uint64(len(b)-24) < n*recordSize {
		return fmt.Errorf("postings index truncated")
	}
	r.records = int(n)

	d := r.data.Bytes()
	if len(d) < 8 || [4]byte(d[:4]) != dataMagic {
		return fmt.Errorf("not a postings data file (bad magic)")
	}
	if binary.LittleEndian.Uint32(d[4:8]) != shardVersion {
		return fmt.Errorf("unsupported postings data version")
	}
	return nil
}

// Close unmaps both underlying files.
func (r *ShardReader) Close() error {
	err := r.index.Close()
	if derr := r.data.Close(); err == nil {
		err = derr
	}
	return err
}

func (r *ShardReader) recordAt(i int) record {
	b := r.index.Bytes()[24+i*recordSize:]
	return record{
		domainID:      binary.LittleEndian.Uint64(b[0:8]),
		datasetID:     binary.LittleEndian.Uint32(b[8:12]),
		payloadOffset: binary.LittleEndian.Uint64(b[12:20]),
		payloadLen:    binary.LittleEndian.Uint32(b[20:24]),
	}
}

// Lookup binary-searches for (domainID, datasetID) and decodes its
// locator list. A miss returns (nil, false) rather than an error (spec
// §4.8: "If not found, return empty.").
func (r *ShardReader) Lookup(domainID uint64, datasetID uint32) ([]Locator, bool, error) {
	n := r.records
	i := sort.Search(n, func(i int) bool {
		rec := r.recordAt(i)
		if rec.domainID != domainID {
			return rec.domainID >= domainID
		}
		return rec.datasetID >= datasetID
	})
	if i >= n {
		return nil, false, nil
	}
	rec := r.recordAt(i)
	if rec.domainID != domainID || rec.datasetID != datasetID {
		return nil, false, nil
	}

	payload := r.data.Bytes()[8:]
	if rec.payloadOffset+uint64(rec.payloadLen) > uint64(len(payload)) {
		return nil, false, fmt.Errorf("postings payload out of range")
	}
	locs, err := decodePayload(payload[rec.payloadOffset : rec.payloadOffset+uint64(rec.payloadLen)])
	if err != nil {
		return nil, false, err
	}
	return locs, true, nil
}

// Reader fronts every shard of a postings index, routing lookups to the
// right shard by domain_id mod numShards.
type Reader struct {
	dir       string
	numShards int
	shards    []*ShardReader
}

// OpenReader maps every shard under dir.
func OpenReader(dir string, numShards int) (*Reader, error) {
	r := &Reader{dir: dir, numShards: numShards, shards: make([]*ShardReader, numShards)}
	for i := 0; i < numShards; i++ {
		sr, err := OpenShardReader(dir, i)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to open postings shard %d: %w", i, err)
		}
		r.shards[i] = sr
	}
	return r, nil
}

// Close unmaps every shard.
func (r *Reader) Close() error {
	var err error
	for _, sr := range r.shards {
		if sr == nil {
			continue
		}
		if cerr := sr.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Lookup routes to domainID's shard and binary-searches it.
func (r *Reader) Lookup(domainID uint64, datasetID uint32) ([]Locator, bool, error) {
	shard := ShardOf(domainID, r.numShards)
	return r.shards[shard].Lookup(domainID, datasetID)
}
