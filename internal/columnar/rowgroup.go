package columnar

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// ColumnSet selects which string columns a reader decodes, matching
// spec §4.11's "projecting the needed columns" requirement: columns not
// requested are skipped entirely rather than decoded and discarded.
type ColumnSet struct {
	Scheme    bool
	Host      bool
	PathQuery bool
	Domain    bool
}

// AllColumns selects every string column.
func AllColumns() ColumnSet {
	return ColumnSet{Scheme: true, Host: true, PathQuery: true, Domain: true}
}

// encodedRowGroup is the on-wire shape of one row group: numeric columns
// stored directly, string columns dictionary-encoded (a deduplicated
// value array plus a per-row index array), per spec §4.3.
type encodedRowGroup struct {
	DomainIDs []uint64 `cbor:"domain_ids"`
	URLIDs    []uint64 `cbor:"url_ids"`

	SchemeDict []string `cbor:"scheme_dict"`
	SchemeIdx  []uint32 `cbor:"scheme_idx"`

	HostDict []string `cbor:"host_dict"`
	HostIdx  []uint32 `cbor:"host_idx"`

	PathQueryDict []string `cbor:"path_query_dict"`
	PathQueryIdx  []uint32 `cbor:"path_query_idx"`

	DomainDict []string `cbor:"domain_dict"`
	DomainIdx  []uint32 `cbor:"domain_idx"`
}

// dictionaryEncode builds a deduplicated value array and a per-row index
// array for one string column, preserving first-seen order.
func dictionaryEncode(values []string) (dict []string, idx []uint32) {
	pos := make(map[string]uint32, len(values))
	idx = make([]uint32, len(values))
	for i, v := range values {
		p, ok := pos[v]
		if !ok {
			p = uint32(len(dict))
			pos[v] = p
			dict = append(dict, v)
		}
		idx[i] = p
	}
	return dict, idx
}

// EncodeRowGroup serializes rows to a ZSTD-compressed, dictionary-encoded
// row group payload (spec §4.3: "dictionary encoding is enabled for
// string columns... payload compression is ZSTD").
func EncodeRowGroup(rows []Row, level int) ([]byte, error) {
	enc := encodedRowGroup{
		DomainIDs: make([]uint64, len(rows)),
		URLIDs:    make([]uint64, len(rows)),
	}

	schemes := make([]string, len(rows))
	hosts := make([]string, len(rows))
	pathQueries := make([]string, len(rows))
	domains := make([]string, len(rows))

	for i, r := range rows {
		enc.DomainIDs[i] = r.DomainID
		enc.URLIDs[i] = r.URLID
		schemes[i] = r.Scheme
		hosts[i] = r.Host
		pathQueries[i] = r.PathQuery
		domains[i] = r.Domain
	}

	enc.SchemeDict, enc.SchemeIdx = dictionaryEncode(schemes)
	enc.HostDict, enc.HostIdx = dictionaryEncode(hosts)
	enc.PathQueryDict, enc.PathQueryIdx = dictionaryEncode(pathQueries)
	enc.DomainDict, enc.DomainIdx = dictionaryEncode(domains)

	raw, err := cbor.Marshal(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row group: %w", err)
	}

	zw, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer zw.Close()

	return zw.EncodeAll(raw, nil), nil
}

// zstdLevel maps the spec's 1-22 numeric compression_level knob onto the
// klauspost/compress speed/ratio presets.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 6:
		return zstd.SpeedDefault
	case level <= 12:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// DecodeRowGroup decompresses and decodes a row group payload, skipping
// reconstruction of columns not selected by cols.
func DecodeRowGroup(payload []byte, cols ColumnSet) ([]Row, error) {
	zr, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer zr.Close()

	raw, err := zr.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress row group: %w", err)
	}

	var enc encodedRowGroup
	if err := cbor.Unmarshal(raw, &enc); err != nil {
		return nil, fmt.Errorf("failed to decode row group: %w", err)
	}

	n := len(enc.DomainIDs)
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		rows[i].DomainID = enc.DomainIDs[i]
		rows[i].URLID = enc.URLIDs[i]
		if cols.Scheme {
			rows[i].Scheme = enc.SchemeDict[enc.SchemeIdx[i]]
		}
		if cols.Host {
			rows[i].Host = enc.HostDict[enc.HostIdx[i]]
		}
		if cols.PathQuery {
			rows[i].PathQuery = enc.PathQueryDict[enc.PathQueryIdx[i]]
		}
		if cols.Domain {
			rows[i].Domain = enc.DomainDict[enc.DomainIdx[i]]
		}
	}
	return rows, nil
}

// RowGroupDomains decodes only the domain column, the minimal projection
// the index builder needs when scanning for distinct domains (spec §4.4,
// §4.8 "scan every committed file's domain column").
func RowGroupDomains(payload []byte) ([]string, error) {
	rows, err := DecodeRowGroup(payload, ColumnSet{Domain: true})
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Domain
	}
	return out, nil
}
