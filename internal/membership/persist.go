package membership

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/RoaringBitmap/roaring/v2"
)

var membershipMagic = [4]byte{'D', 'T', 'D', 'R'}

const membershipVersion = uint32(1)

type offsetEntry struct {
	start uint64
	len   uint32
}

// Write serializes idx to path in the exact layout of spec §4.7:
//
//	[magic "DTDR"][version u32][N_domains u64][index_offset u64][blobs…][index: N x (start u64, len u32)]
//
// numDomains is the dictionary length: every domain_id in [0,numDomains)
// gets an index slot, even if its bitmap is empty (zero length).
func Write(path string, idx *Index, numDomains uint64) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create membership file %s: %w", tmp, err)
	}

	writeErr := func() error {
		var blobBuf bytes.Buffer
		offsets := make([]offsetEntry, numDomains)

		for id := uint64(0); id < numDomains; id++ {
			bm, ok := idx.bitmaps[id]
			if !ok || bm.IsEmpty() {
				offsets[id] = offsetEntry{start: uint64(blobBuf.Len()), len: 0}
				continue
			}
			start := uint64(blobBuf.Len())
			n, err := bm.WriteTo(&blobBuf)
			if err != nil {
				return fmt.Errorf("failed to serialize bitmap for domain_id %d: %w", id, err)
			}
			offsets[id] = offsetEntry{start: start, len: uint32(n)}
		}

		headerLen := uint64(4 + 4 + 8 + 8)
		indexOffset := headerLen + uint64(blobBuf.Len())

		w := bufio.NewWriter(f)
		if _, err := w.Write(membershipMagic[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, membershipVersion); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, numDomains); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, indexOffset); err != nil {
			return err
		}
		if _, err := w.Write(blobBuf.Bytes()); err != nil {
			return err
		}
		for _, o := range offsets {
			if err := binary.Write(w, binary.LittleEndian, o.start); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, o.len); err != nil {
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
		return fmt.Errorf("failed to write membership file: %w", writeErr)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename membership file into place: %w", err)
	}
	return nil
}

// Reader is a read-only view over a membership file's raw bytes,
// suitable for memory-mapping (internal/mmapfile provides the map).
type Reader struct {
	data        []byte
	numDomains  uint64
	indexOffset uint64
}

// OpenReader validates the header in data and returns a Reader over it.
func OpenReader(data []byte) (*Reader, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("membership artifact too small")
	}
	if [4]byte(data[:4]) != membershipMagic {
		return nil, fmt.Errorf("not a membership index (bad magic)")
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != membershipVersion {
		return nil, fmt.Errorf("unsupported membership version %d", version)
	}
	numDomains := binary.LittleEndian.Uint64(data[8:16])
	indexOffset := binary.LittleEndian.Uint64(data[16:24])
	if indexOffset > uint64(len(data)) {
		return nil, fmt.Errorf("membership index offset out of range")
	}
	return &Reader{data: data, numDomains: numDomains, indexOffset: indexOffset}, nil
}

// DatasetsOf decodes the Roaring bitmap for domainID and returns its
// dataset_ids ascending, or nil if domainID is out of range or has no
// membership entries.
func (r *Reader) DatasetsOf(domainID uint64) ([]uint32, error) {
	if domainID >= r.numDomains {
		return nil, nil
	}
	entryOff := r.indexOffset + domainID*12
	if entryOff+12 > uint64(len(r.data)) {
		return nil, fmt.Errorf("membership index entry out of range for domain_id %d", domainID)
	}
	start := binary.LittleEndian.Uint64(r.data[entryOff : entryOff+8])
	length := binary.LittleEndian.Uint32(r.data[entryOff+8 : entryOff+12])
	if length == 0 {
		return nil, nil
	}
	blobStart := uint64(24) + start
	if blobStart+uint64(length) > uint64(len(r.data)) {
		return nil, fmt.Errorf("membership blob out of range for domain_id %d", domainID)
	}
	bm := roaring.New()
	if _, err := bm.ReadFrom(bytes.NewReader(r.data[blobStart : blobStart+uint64(length)])); err != nil {
		return nil, fmt.Errorf("failed to decode bitmap for domain_id %d: %w", domainID, err)
	}
	return bm.ToArray(), nil
}

// Cardinality reports the bitmap's size by decoding it in full via
// DatasetsOf and counting the dataset_ids.
func (r *Reader) Cardinality(domainID uint64) (uint64, error) {
	ids, err := r.DatasetsOf(domainID)
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}
