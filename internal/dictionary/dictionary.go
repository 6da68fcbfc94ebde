// Package dictionary implements the domain dictionary of spec §4.4: an
// append-only, sorted-at-first-build list of distinct domain strings
// whose position defines domain_id. Positions are never reassigned
// across versions (spec §3 invariant, §9 "domain-ID stability").
package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"
)

var newline = []byte{'\n'}

// Dictionary is an in-memory, randomly-addressable view of a domain
// dictionary file: domain_id = index into Domains.
type Dictionary struct {
	Domains []string
	byName  map[string]uint64
}

// New builds a Dictionary from an ordered domain list, indexing it for
// reverse lookup.
func New(domains []string) *Dictionary {
	d := &Dictionary{Domains: domains, byName: make(map[string]uint64, len(domains))}
	for i, name := range domains {
		d.byName[name] = uint64(i)
	}
	return d
}

// Len returns the number of domains.
func (d *Dictionary) Len() int { return len(d.Domains) }

// At returns the domain string at domain_id, and whether it exists.
func (d *Dictionary) At(id uint64) (string, bool) {
	if id >= uint64(len(d.Domains)) {
		return "", false
	}
	return d.Domains[id], true
}

// IDOf returns the domain_id for name from an in-memory map (used by the
// index builder, tests and tooling; the query path uses the MPHF resolver
// instead).
func (d *Dictionary) IDOf(name string) (uint64, bool) {
	id, ok := d.byName[name]
	return id, ok
}

// Hash returns a deterministic xxh3-64 digest of the dictionary's
// contents, embedded in the MPHF resolver's header (internal/mphf) so a
// loader can verify the two artifacts were built from the same version.
func Hash(d *Dictionary) uint64 {
	h := xxh3.New()
	for _, name := range d.Domains {
		_, _ = h.WriteString(name)
		_, _ = h.Write(newline)
	}
	return h.Sum64()
}

// BuildFull deduplicates and sorts domains ascending, assigning
// domain_id = position (spec §4.4 "Full build").
func BuildFull(domains []string) *Dictionary {
	seen := make(map[string]struct{}, len(domains))
	uniq := make([]string, 0, len(domains))
	for _, d := range domains {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		uniq = append(uniq, d)
	}
	sort.Strings(uniq)
	return New(uniq)
}

// BuildIncremental appends the novel domains found in newDomains (in
// sorted order) to the end of prev, preserving every existing
// domain_id (spec §4.4 "Incremental build"). It never re-sorts.
func BuildIncremental(prev *Dictionary, newDomains []string) *Dictionary {
	existing := make(map[string]struct{}, len(prev.Domains))
	for _, d := range prev.Domains {
		existing[d] = struct{}{}
	}

	seen := make(map[string]struct{})
	var novel []string
	for _, d := range newDomains {
		if _, ok := existing[d]; ok {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		novel = append(novel, d)
	}
	sort.Strings(novel)

	out := make([]string, 0, len(prev.Domains)+len(novel))
	out = append(out, prev.Domains...)
	out = append(out, novel...)
	return New(out)
}

// Write persists the dictionary as newline-delimited domain strings,
// ZSTD-compressed (spec §4.4).
func Write(path string, d *Dictionary) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create dictionary file %s: %w", tmp, err)
	}

	zw, zerr := zstd.NewWriter(f)
	if zerr != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to create zstd writer: %w", zerr)
	}

	bw := bufio.NewWriter(zw)
	for _, name := range d.Domains {
		if _, err = bw.WriteString(name); err != nil {
			break
		}
		if err = bw.WriteByte('\n'); err != nil {
			break
		}
	}
	if err == nil {
		err = bw.Flush()
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write dictionary file: %w", err)
	}

	if err = os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename dictionary file into place: %w", err)
	}
	return nil
}

// Load reads a dictionary file written by Write.
func Load(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary file %s: %w", path, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var domains []string
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		domains = append(domains, scanner.Text())
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to scan dictionary file %s: %w", path, err)
	}
	return New(domains), nil
}
