// Package mmapfile memory-maps read-only index artifacts so query
// handlers can share one mapping across all requests without copying
// bytes into the heap (spec §5: "read-only mmaps shared across all
// handlers").
package mmapfile

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// File is a memory-mapped, read-only file. Close unmaps it; callers
// must not keep slices derived from Bytes() alive after Close.
type File struct {
	f    *os.File
	mmap mmap.MMap
}

// Open memory-maps path for reading. Opening a zero-length file returns
// a File whose Bytes() is empty rather than erroring, since some
// artifacts (an empty shard) are legitimately empty.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return &File{f: f}, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap %s: %w", path, err)
	}
	return &File{f: f, mmap: m}, nil
}

// Bytes returns the mapped region.
func (mf *File) Bytes() []byte {
	return mf.mmap
}

// Close unmaps and closes the underlying file.
func (mf *File) Close() error {
	var err error
	if mf.mmap != nil {
		err = mf.mmap.Unmap()
	}
	if cerr := mf.f.Close(); err == nil {
		err = cerr
	}
	return err
}
