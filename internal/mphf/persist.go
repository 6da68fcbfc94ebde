package mphf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

var mphfMagic = [4]byte{'M', 'P', 'H', 'F'}

const mphfVersion = uint32(1)

// Write persists r to path: header (magic, version, domain count,
// collision count, dictionary hash), the primary table, then the
// collision overflow section (spec §4.5).
func Write(path string, r *Resolver) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create mphf file %s: %w", tmp, err)
	}

	writeErr := func() error {
		w := bufio.NewWriter(f)

		if _, err := w.Write(mphfMagic[:]); err != nil {
			return err
		}
		if err := writeU32(w, mphfVersion); err != nil {
			return err
		}
		if err := writeU64(w, r.domainCnt); err != nil {
			return err
		}
		if err := writeU64(w, r.collCnt); err != nil {
			return err
		}
		if err := writeU64(w, r.dictHash); err != nil {
			return err
		}
		if err := writeU64(w, r.capacity); err != nil {
			return err
		}

		for _, s := range r.table {
			var occ byte
			if s.occupied {
				occ = 1
			}
			if err := w.WriteByte(occ); err != nil {
				return err
			}
			if err := writeU16(w, s.tag); err != nil {
				return err
			}
			if err := writeU64(w, s.domainID); err != nil {
				return err
			}
		}

		var overflowCount uint64
		for _, entries := range r.overflow {
			overflowCount += uint64(len(entries))
		}
		if err := writeU64(w, overflowCount); err != nil {
			return err
		}
		for bucket, entries := range r.overflow {
			for _, e := range entries {
				if err := writeU64(w, bucket); err != nil {
					return err
				}
				if err := writeU64(w, e.secondaryHash); err != nil {
					return err
				}
				if err := writeU64(w, e.domainID); err != nil {
					return err
				}
				if err := writeU16(w, uint16(len(e.domain))); err != nil {
					return err
				}
				if _, err := w.WriteString(e.domain); err != nil {
					return err
				}
			}
		}

		return w.Flush()
	}()

	if cerr := f.Close(); writeErr == nil {
		writeErr = cerr
	}
	if writeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write mphf file: %w", writeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename mphf file into place: %w", err)
	}
	return nil
}

// Load reads a resolver from path and verifies it against dictHash, the
// digest of the dictionary the caller has already loaded.
func Load(path string, dictHash uint64) (*Resolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mphf file %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read mphf magic: %w", err)
	}
	if magic != mphfMagic {
		return nil, fmt.Errorf("%s: not an MPHF file (bad magic)", path)
	}

	version, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if version != mphfVersion {
		return nil, fmt.Errorf("%s: unsupported mphf version %d", path, version)
	}

	domainCnt, err := readU64(r)
	if err != nil {
		return nil, err
	}
	collCnt, err := readU64(r)
	if err != nil {
		return nil, err
	}
	storedDictHash, err := readU64(r)
	if err != nil {
		return nil, err
	}
	if storedDictHash != dictHash {
		return nil, fmt.Errorf("%s: dictionary hash mismatch (artifact is stale or corrupt)", path)
	}

	capacity, err := readU64(r)
	if err != nil {
		return nil, err
	}

	table := make([]slot, capacity)
	for i := range table {
		occ, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read mphf slot %d: %w", i, err)
		}
		tag, err := readU16(r)
		if err != nil {
			return nil, err
		}
		id, err := readU64(r)
		if err != nil {
			return nil, err
		}
		table[i] = slot{occupied: occ == 1, tag: tag, domainID: id}
	}

	overflowCount, err := readU64(r)
	if err != nil {
		return nil, err
	}
	overflow := make(map[uint64][]overflowEntry)
	for i := uint64(0); i < overflowCount; i++ {
		bucket, err := readU64(r)
		if err != nil {
			return nil, err
		}
		secondaryHash, err := readU64(r)
		if err != nil {
			return nil, err
		}
		id, err := readU64(r)
		if err != nil {
			return nil, err
		}
		nameLen, err := readU16(r)
		if err != nil {
			return nil, err
		}
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, fmt.Errorf("failed to read mphf overflow domain: %w", err)
		}
		overflow[bucket] = append(overflow[bucket], overflowEntry{
			secondaryHash: secondaryHash,
			domain:        string(nameBuf),
			domainID:      id,
		})
	}

	return &Resolver{
		capacity:  capacity,
		table:     table,
		overflow:  overflow,
		dictHash:  storedDictHash,
		domainCnt: domainCnt,
		collCnt:   collCnt,
	}, nil
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
