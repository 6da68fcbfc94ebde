package columnar

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// rowGroupRowLimit bounds how many rows go into a single row group. It
// approximates the "~128 MiB row groups" target of spec §4.3 without
// requiring a byte-exact accounting pass before every append.
const rowGroupRowLimit = 250_000

// rowSizeEstimate approximates a row's in-memory+encoded footprint, used
// to decide when a partition buffer has reached partition_buffer_size.
func rowSizeEstimate(r Row) int64 {
	return int64(len(r.Scheme)+len(r.Host)+len(r.PathQuery)+len(r.Domain)) + 32
}

type partitionBuffer struct {
	rows         []Row
	sizeEstimate int64
}

// Writer buffers normalized rows per (dataset_id, domain_prefix)
// partition and flushes them to immutable part files (spec §4.3).
type Writer struct {
	root                string
	partitionBufferSize int64
	globalBufferLimit   int64
	compressionLevel    int

	mu         sync.Mutex
	partitions map[PartitionKey]*partitionBuffer
	globalSize int64
}

// NewWriter creates a Writer rooted at root (the columnar store's
// configurable base directory, spec §6).
func NewWriter(root string, partitionBufferSize, globalBufferLimit int64, compressionLevel int) *Writer {
	return &Writer{
		root:                root,
		partitionBufferSize: partitionBufferSize,
		globalBufferLimit:   globalBufferLimit,
		compressionLevel:    compressionLevel,
		partitions:          make(map[PartitionKey]*partitionBuffer),
	}
}

// AddRow buffers row under key, flushing that partition if it has
// reached partition_buffer_size, and forcing a flush of the largest
// buffer if the process-wide ceiling is reached (spec §4.3, §7
// OverCapacity).
func (w *Writer) AddRow(key PartitionKey, row Row) error {
	w.mu.Lock()
	pb, ok := w.partitions[key]
	if !ok {
		pb = &partitionBuffer{}
		w.partitions[key] = pb
	}
	size := rowSizeEstimate(row)
	pb.rows = append(pb.rows, row)
	pb.sizeEstimate += size
	w.globalSize += size

	needFlush := pb.sizeEstimate >= w.partitionBufferSize
	overCapacity := w.globalSize >= w.globalBufferLimit
	w.mu.Unlock()

	if needFlush {
		if err := w.FlushPartition(key); err != nil {
			return err
		}
	} else if overCapacity {
		if err := w.forceFlushLargest(); err != nil {
			return err
		}
	}
	return nil
}

// forceFlushLargest flushes whichever buffered partition is currently
// largest, to bound process memory (spec §4.3).
func (w *Writer) forceFlushLargest() error {
	w.mu.Lock()
	var largest PartitionKey
	var largestSize int64 = -1
	for k, pb := range w.partitions {
		if pb.sizeEstimate > largestSize {
			largestSize = pb.sizeEstimate
			largest = k
		}
	}
	w.mu.Unlock()

	if largestSize < 0 {
		return nil
	}
	return w.FlushPartition(largest)
}

// FlushPartition finalizes key's pending rows as the next part-NNNNN
// file, atomically. A partition with no buffered rows is a no-op.
func (w *Writer) FlushPartition(key PartitionKey) error {
	w.mu.Lock()
	pb, ok := w.partitions[key]
	if !ok || len(pb.rows) == 0 {
		w.mu.Unlock()
		return nil
	}
	rows := pb.rows
	w.globalSize -= pb.sizeEstimate
	delete(w.partitions, key)
	w.mu.Unlock()

	dir := PartitionDir(w.root, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create partition directory %s: %w", dir, err)
	}

	var rowGroups [][]byte
	for i := 0; i < len(rows); i += rowGroupRowLimit {
		end := i + rowGroupRowLimit
		if end > len(rows) {
			end = len(rows)
		}
		payload, err := EncodeRowGroup(rows[i:end], w.compressionLevel)
		if err != nil {
			return fmt.Errorf("failed to encode row group for partition %+v: %w", key, err)
		}
		rowGroups = append(rowGroups, payload)
	}

	n, err := NextPartNumber(dir)
	if err != nil {
		return fmt.Errorf("failed to determine next part number for %s: %w", dir, err)
	}

	if err := writePartFile(PartPath(dir, n), rowGroups); err != nil {
		return fmt.Errorf("failed to write part file for partition %+v: %w", key, err)
	}
	return nil
}

// Flush finalizes every buffered partition. A write error on one
// partition does not prevent other partitions from being flushed: the
// writer is not transactional across partitions (spec §4.3).
func (w *Writer) Flush() error {
	w.mu.Lock()
	keys := make([]PartitionKey, 0, len(w.partitions))
	for k := range w.partitions {
		keys = append(keys, k)
	}
	w.mu.Unlock()

	var errs []error
	for _, k := range keys {
		if err := w.FlushPartition(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
