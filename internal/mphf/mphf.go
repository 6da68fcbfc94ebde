// Package mphf implements the domain string -> domain_id resolver of
// spec §4.5: a hash table over xxh3-64 of the domain string with a
// 16-bit tag filter, plus a collision-overflow section storing full
// strings for buckets two or more domains mapped to. Rebuilt from
// scratch each version; the contract tolerates false positives as long
// as the caller verifies against the domain dictionary.
package mphf

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/fths/urldex/internal/dictionary"
	"github.com/zeebo/xxh3"
)

// slot is one entry in the primary hash table.
type slot struct {
	occupied bool
	tag      uint16
	domainID uint64
}

// overflowEntry confirms true identity for a bucket two or more domains
// hashed to: the secondary hash (cespare/xxhash) lets a lookup skip the
// string compare for buckets whose overflow list holds no matching
// secondary hash.
type overflowEntry struct {
	secondaryHash uint64
	domain        string
	domainID      uint64
}

// Resolver is the in-memory MPHF resolver for one version.
type Resolver struct {
	capacity  uint64
	table     []slot
	overflow  map[uint64][]overflowEntry
	dictHash  uint64
	domainCnt uint64
	collCnt   uint64
}

// nextPow2 returns the smallest power of two >= n, at least 1.
func nextPow2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

func bucketOf(hash, capacity uint64) uint64 { return hash & (capacity - 1) }

func tagOf(hash uint64) uint16 { return uint16(hash >> 48) }

// Build constructs a fresh Resolver over dict, at load factor ~0.5
// (spec: "rebuilt from scratch each version; cost is linear in #domains").
func Build(dict *dictionary.Dictionary) *Resolver {
	capacity := nextPow2(uint64(dict.Len())*2 + 1)
	r := &Resolver{
		capacity:  capacity,
		table:     make([]slot, capacity),
		overflow:  make(map[uint64][]overflowEntry),
		dictHash:  dictionary.Hash(dict),
		domainCnt: uint64(dict.Len()),
	}

	for i, domain := range dict.Domains {
		id := uint64(i)
		h := xxh3.HashString(domain)
		b := bucketOf(h, capacity)
		if !r.table[b].occupied {
			r.table[b] = slot{occupied: true, tag: tagOf(h), domainID: id}
			continue
		}
		r.overflow[b] = append(r.overflow[b], overflowEntry{
			secondaryHash: xxhash.Sum64String(domain),
			domain:        domain,
			domainID:      id,
		})
		r.collCnt++
	}

	for b := range r.overflow {
		sort.Slice(r.overflow[b], func(i, j int) bool {
			return r.overflow[b][i].secondaryHash < r.overflow[b][j].secondaryHash
		})
	}
	return r
}

// Lookup returns a candidate domain_id for domain, or (0, false) if no
// bucket or overflow entry could plausibly match. A true return does
// not guarantee domain is present: the caller (internal/query) must
// verify by comparing against the domain dictionary at the returned id,
// except when the match came from an overflow entry, which already
// compared the full string.
func (r *Resolver) Lookup(domain string) (domainID uint64, candidate bool) {
	h := xxh3.HashString(domain)
	b := bucketOf(h, r.capacity)

	if entries, ok := r.overflow[b]; ok {
		sh := xxhash.Sum64String(domain)
		for _, e := range entries {
			if e.secondaryHash == sh && e.domain == domain {
				return e.domainID, true
			}
		}
	}

	s := r.table[b]
	if s.occupied && s.tag == tagOf(h) {
		return s.domainID, true
	}
	return 0, false
}

// DictHash returns the digest of the dictionary this resolver was built
// against.
func (r *Resolver) DictHash() uint64 { return r.dictHash }

// DomainCount returns the number of domains indexed.
func (r *Resolver) DomainCount() uint64 { return r.domainCnt }

// CollisionCount returns how many domains landed in the overflow section.
func (r *Resolver) CollisionCount() uint64 { return r.collCnt }
