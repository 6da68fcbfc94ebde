package columnar

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// partMagic and partVersion identify a columnar part file.
var partMagic = [4]byte{'U', 'R', 'L', 'C'}

const partVersion = uint32(1)

// writePartFile serializes rowGroups (already row-group-chunked) to path
// via write-to-temp-then-rename, so a part is only ever observed once
// fully written (spec §4.3: "files are only named once fully written").
func writePartFile(path string, rowGroups [][]byte) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp part file: %w", err)
	}

	writeErr := func() error {
		w := bufio.NewWriter(f)
		if _, err := w.Write(partMagic[:]); err != nil {
			return fmt.Errorf("failed to write part magic: %w", err)
		}
		var verBuf [4]byte
		binary.LittleEndian.PutUint32(verBuf[:], partVersion)
		if _, err := w.Write(verBuf[:]); err != nil {
			return fmt.Errorf("failed to write part version: %w", err)
		}

		for _, payload := range rowGroups {
			var lenBuf [4]byte
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
			if _, err := w.Write(lenBuf[:]); err != nil {
				return fmt.Errorf("failed to write row group length: %w", err)
			}
			if _, err := w.Write(payload); err != nil {
				return fmt.Errorf("failed to write row group payload: %w", err)
			}
		}

		if err := w.Flush(); err != nil {
			return fmt.Errorf("failed to flush part file: %w", err)
		}
		return f.Sync()
	}()

	if cerr := f.Close(); writeErr == nil {
		writeErr = cerr
	}
	if writeErr != nil {
		_ = os.Remove(tmp)
		return writeErr
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename part file into place: %w", err)
	}
	return nil
}

// PartReader reads row groups out of a part file sequentially by index.
type PartReader struct {
	path string
}

// OpenPartReader validates the header of path and returns a reader over it.
func OpenPartReader(path string) (*PartReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open part file %s: %w", path, err)
	}
	defer f.Close()

	var header [8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read part file header %s: %w", path, err)
	}
	if [4]byte(header[:4]) != partMagic {
		return nil, fmt.Errorf("%s: not a columnar part file (bad magic)", path)
	}
	if binary.LittleEndian.Uint32(header[4:8]) != partVersion {
		return nil, fmt.Errorf("%s: unsupported part file version", path)
	}
	return &PartReader{path: path}, nil
}

// ReadRowGroup returns the raw (still-compressed) payload of the
// row-group at index, or io.EOF if the file has fewer row groups.
func (pr *PartReader) ReadRowGroup(index int) ([]byte, error) {
	f, err := os.Open(pr.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open part file %s: %w", pr.path, err)
	}
	defer f.Close()

	if _, err := f.Seek(8, io.SeekStart); err != nil {
		return nil, err
	}
	r := bufio.NewReader(f)

	for i := 0; ; i++ {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read row group length in %s: %w", pr.path, err)
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("failed to read row group payload in %s: %w", pr.path, err)
		}
		if i == index {
			return payload, nil
		}
	}
}

// RowGroupCount scans the part file and returns how many row groups it holds.
func (pr *PartReader) RowGroupCount() (int, error) {
	f, err := os.Open(pr.path)
	if err != nil {
		return 0, fmt.Errorf("failed to open part file %s: %w", pr.path, err)
	}
	defer f.Close()

	if _, err := f.Seek(8, io.SeekStart); err != nil {
		return 0, err
	}
	r := bufio.NewReader(f)

	count := 0
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return count, nil
			}
			return 0, fmt.Errorf("failed to read row group length in %s: %w", pr.path, err)
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		if _, err := r.Discard(int(n)); err != nil {
			return 0, fmt.Errorf("failed to skip row group payload in %s: %w", pr.path, err)
		}
		count++
	}
}

// ForEachRowGroup calls fn with the raw payload of every row group in
// order, stopping early if fn returns false or an error.
func (pr *PartReader) ForEachRowGroup(fn func(index int, payload []byte) (bool, error)) error {
	f, err := os.Open(pr.path)
	if err != nil {
		return fmt.Errorf("failed to open part file %s: %w", pr.path, err)
	}
	defer f.Close()

	if _, err := f.Seek(8, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(f)

	for i := 0; ; i++ {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read row group length in %s: %w", pr.path, err)
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return fmt.Errorf("failed to read row group payload in %s: %w", pr.path, err)
		}
		cont, err := fn(i, payload)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}
