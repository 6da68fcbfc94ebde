package postings

import (
	"encoding/binary"
	"errors"
)

// encodePayload varint-encodes a locator list as (file_id, row_group_index)
// pairs in order (spec §4.8).
func encodePayload(locs []Locator) []byte {
	buf := make([]byte, 0, len(locs)*4)
	var scratch [binary.MaxVarintLen64]byte
	for _, l := range locs {
		n := binary.PutUvarint(scratch[:], uint64(l.FileID))
		buf = append(buf, scratch[:n]...)
		n = binary.PutUvarint(scratch[:], uint64(l.RowGroup))
		buf = append(buf, scratch[:n]...)
	}
	return buf
}

// decodePayload is the inverse of encodePayload.
func decodePayload(payload []byte) ([]Locator, error) {
	var locs []Locator
	for len(payload) > 0 {
		fileID, n := binary.Uvarint(payload)
		if n <= 0 {
			return nil, errInvalidVarint
		}
		payload = payload[n:]
		rowGroup, n := binary.Uvarint(payload)
		if n <= 0 {
			return nil, errInvalidVarint
		}
		payload = payload[n:]
		locs = append(locs, Locator{FileID: uint32(fileID), RowGroup: uint32(rowGroup)})
	}
	return locs, nil
}

var errInvalidVarint = errors.New("postings: corrupt varint payload")
