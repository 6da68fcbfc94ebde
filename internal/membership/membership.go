// Package membership implements the domain_id -> set<dataset_id>
// membership index of spec §4.7: one Roaring bitmap per domain_id,
// concatenated, with a trailing offset/length table.
package membership

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// Index is the in-memory, builder-side view of the membership index.
type Index struct {
	bitmaps map[uint64]*roaring.Bitmap
}

// New returns an empty Index.
func New() *Index {
	return &Index{bitmaps: make(map[uint64]*roaring.Bitmap)}
}

// Add records that domainID appears in datasetID (spec §4.7 "Build").
func (idx *Index) Add(domainID uint64, datasetID uint32) {
	bm, ok := idx.bitmaps[domainID]
	if !ok {
		bm = roaring.New()
		idx.bitmaps[domainID] = bm
	}
	bm.Add(datasetID)
}

// DatasetsOf returns the dataset_ids domainID belongs to, ascending.
func (idx *Index) DatasetsOf(domainID uint64) []uint32 {
	bm, ok := idx.bitmaps[domainID]
	if !ok {
		return nil
	}
	return bm.ToArray()
}

// Cardinality returns len(DatasetsOf(domainID)) without materializing it.
func (idx *Index) Cardinality(domainID uint64) uint64 {
	bm, ok := idx.bitmaps[domainID]
	if !ok {
		return 0
	}
	return bm.GetCardinality()
}

// DomainIDs returns every domain_id with at least one membership entry,
// ascending.
func (idx *Index) DomainIDs() []uint64 {
	ids := make([]uint64, 0, len(idx.bitmaps))
	for id := range idx.bitmaps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Pair is one (domain_id, dataset_id) membership fact observed in a row.
type Pair struct {
	DomainID  uint64
	DatasetID uint32
}

// BuildFull adds every observed pair to a fresh Index (spec §4.7 "Full").
func BuildFull(pairs []Pair) *Index {
	idx := New()
	for _, p := range pairs {
		idx.Add(p.DomainID, p.DatasetID)
	}
	return idx
}

// BuildIncremental unions newPairs into a copy of prev (spec §4.7
// "Incremental"): existing bitmaps gain new dataset_ids, new domain_ids
// get fresh bitmaps.
func BuildIncremental(prev *Index, newPairs []Pair) *Index {
	idx := New()
	for domainID, bm := range prev.bitmaps {
		idx.bitmaps[domainID] = bm.Clone()
	}
	for _, p := range newPairs {
		idx.Add(p.DomainID, p.DatasetID)
	}
	return idx
}
