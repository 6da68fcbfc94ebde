package postings

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

var (
	indexMagic = [4]byte{'P', 'D', 'X', '1'}
	dataMagic  = [4]byte{'P', 'D', 'D', '1'}
)

const shardVersion = uint32(1)

// ShardPaths returns the index/data file paths for a shard under dir,
// matching the template named in the manifest (spec §4.9).
func ShardPaths(dir string, shard int) (indexPath, dataPath string) {
	base := filepath.Join(dir, fmt.Sprintf("shard-%05d", shard))
	return base + ".pdx", base + ".pdd"
}

// record is one fixed-width entry in a shard's index file.
type record struct {
	domainID      uint64
	datasetID     uint32
	payloadOffset uint64
	payloadLen    uint32
}

const recordSize = 8 + 4 + 8 + 4

// WriteShard writes one shard's index+data files, entries already sorted
// by (domain_id, dataset_id) as produced by Builder.Entries.
//
// Data file: magic "PDD1", version u32, then payloads concatenated in
// entry order. Index file: magic "PDX1", version u32, N u64, data-offset
// u64 (the data file's payload-region length, for integrity checks),
// then N fixed-width records sorted by (domain_id, dataset_id).
func WriteShard(dir string, shard int, entries []shardEntry) (err error) {
	indexPath, dataPath := ShardPaths(dir, shard)

	var dataBuf []byte
	records := make([]record, 0, len(entries))
	for _, e := range entries {
		payload := encodePayload(e.locators)
		records = append(records, record{
			domainID:      e.key.DomainID,
			datasetID:     e.key.DatasetID,
			payloadOffset: uint64(len(dataBuf)),
			payloadLen:    uint32(len(payload)),
		})
		dataBuf = append(dataBuf, payload...)
	}

	if err := writeDataFile(dataPath, dataBuf); err != nil {
		return err
	}
	if err := writeIndexFile(indexPath, records, uint64(len(dataBuf))); err != nil {
		return err
	}
	return nil
}

func writeDataFile(path string, payloads []byte) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create postings data file %s: %w", tmp, err)
	}
	writeErr := func() error {
		w := bufio.NewWriter(f)
		if _, err := w.Write(dataMagic[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, shardVersion); err != nil {
			return err
		}
		if _, err := w.Write(payloads); err != nil {
			return err
		}
		return w.Flush()
	}()
	if cerr := f.Close(); writeErr == nil {
		writeErr = cerr
	}
	if writeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write postings data file: %w", writeErr)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename postings data file into place: %w", err)
	}
	return nil
}

func writeIndexFile(path string, records []record, dataLen uint64) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create postings index file %s: %w", tmp, err)
	}
	writeErr := func() error {
		w := bufio.NewWriter(f)
		if _, err := w.Write(indexMagic[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, shardVersion); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(records))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, dataLen); err != nil {
			return err
		}
		for _, r := range records {
			if err := binary.Write(w, binary.LittleEndian, r.domainID); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, r.datasetID); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, r.payloadOffset); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, r.payloadLen); err != nil {
				return err
			}
		}
		return w.Flush()
	}()
	if cerr := f.Close(); writeErr == nil {
		writeErr = cerr
	}
	if writeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write postings index file: %w", writeErr)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename postings index file into place: %w", err)
	}
	return nil
}

// LoadShard decodes an entire shard's entries keyed for incremental
// rebuilds (internal/postings MergeIncremental). It is not the hot-path
// reader: Reader below serves lookups directly off mmap'd bytes.
func LoadShard(dir string, shard int) (map[Key][]Locator, error) {
	indexPath, dataPath := ShardPaths(dir, shard)

	indexBytes, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[Key][]Locator{}, nil
		}
		return nil, fmt.Errorf("failed to read postings index %s: %w", indexPath, err)
	}
	dataBytes, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read postings data %s: %w", dataPath, err)
	}

	idx, err := parseIndex(indexBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", indexPath, err)
	}
	data, err := parseData(dataBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dataPath, err)
	}

	out := make(map[Key][]Locator, len(idx.records))
	for _, r := range idx.records {
		if r.payloadOffset+uint64(r.payloadLen) > uint64(len(data)) {
			return nil, fmt.Errorf("postings record out of range in shard %d", shard)
		}
		locs, err := decodePayload(data[r.payloadOffset : r.payloadOffset+uint64(r.payloadLen)])
		if err != nil {
			return nil, err
		}
		out[Key{DomainID: r.domainID, DatasetID: r.datasetID}] = locs
	}
	return out, nil
}

type parsedIndex struct {
	records []record
}

func parseIndex(b []byte) (*parsedIndex, error) {
	if len(b) < 24 {
		return nil, fmt.Errorf("postings index too small")
	}
	if [4]byte(b[:4]) != indexMagic {
		return nil, fmt.Errorf("not a postings index (bad magic)")
	}
	version := binary.LittleEndian.Uint32(b[4:8])
	if version != shardVersion {
		return nil, fmt.Errorf("unsupported postings index version %d", version)
	}
	n := binary.LittleEndian.Uint64(b[8:16])
	body := b[24:]
	if uint64(len(body)) < n*recordSize {
		return nil, fmt.Errorf("postings index truncated")
	}
	records := make([]record, n)
	for i := uint64(0); i < n; i++ {
		off := i * recordSize
		records[i] = record{
			domainID:      binary.LittleEndian.Uint64(body[off : off+8]),
			datasetID:     binary.LittleEndian.Uint32(body[off+8 : off+12]),
			payloadOffset: binary.LittleEndian.Uint64(body[off+12 : off+20]),
			payloadLen:    binary.LittleEndian.Uint32(body[off+20 : off+24]),
		}
	}
	return &parsedIndex{records: records}, nil
}

func parseData(b []byte) ([]byte, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("postings data too small")
	}
	if [4]byte(b[:4]) != dataMagic {
		return nil, fmt.Errorf("not a postings data file (bad magic)")
	}
	version := binary.LittleEndian.Uint32(b[4:8])
	if version != shardVersion {
		return nil, fmt.Errorf("unsupported postings data version %d", version)
	}
	return b[8:], nil
}
