package identity

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// URLID is xxh3-64 of the raw URL bytes (spec §3). It is used only as a
// probe key: a collision may surface a false row candidate, which the
// caller rejects by comparing the row's domain string.
func URLID(rawURL string) uint64 {
	return xxh3.HashString(rawURL)
}

// DomainPrefix is the first two hex characters of xxh3-64 of the
// registrable domain, used purely as a partitioning key (spec §3, §4.2).
func DomainPrefix(domain string) string {
	h := xxh3.HashString(domain)
	return fmt.Sprintf("%02x", byte(h>>56))
}
