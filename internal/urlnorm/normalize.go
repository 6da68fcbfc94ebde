// Package urlnorm canonicalizes raw URL strings the way spec §4.1
// requires: scheme/host normalization, percent-decoding, dot-segment
// resolution, query key sorting, and registrable-domain extraction via
// the Public Suffix List. Normalize is pure: no shared state, no I/O,
// safe to call from many goroutines at once.
package urlnorm

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// Canonical is the normalized form of a URL, ready for identity
// assignment (internal/identity) and row storage (internal/columnar).
type Canonical struct {
	Scheme    string // lowercase
	Host      string // lowercase, punycode (ACE form)
	PathQuery string // normalized path, "?" plus sorted query if any present
	Domain    string // registrable domain (eTLD+1), punycode
}

// defaultPorts maps a scheme to the port number that must be stripped
// when it is given explicitly.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
	"ws":    "80",
	"wss":   "443",
}

// Normalize canonicalizes raw per spec §4.1, or returns a rejection
// error for empty input, unparseable structure, a missing host, or a
// host with no registrable domain.
func Normalize(raw string) (Canonical, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Canonical{}, fmt.Errorf("empty input")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		// Scheme missing entirely: default to http, per contract.
		u2, err2 := url.Parse("http://" + raw)
		if err2 != nil {
			return Canonical{}, fmt.Errorf("unparseable URL %q: %w", raw, err2)
		}
		u = u2
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "http"
	}

	host := u.Hostname()
	if host == "" {
		return Canonical{}, fmt.Errorf("no host in URL %q", raw)
	}
	host = strings.ToLower(host)
	aceHost, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// Lookup profile is strict; fall back to the registration profile,
		// which tolerates a wider range of real-world hostnames.
		aceHost, err = idna.Registration.ToASCII(host)
		if err != nil {
			return Canonical{}, fmt.Errorf("invalid host %q: %w", host, err)
		}
	}

	port := u.Port()
	if port != "" && defaultPorts[scheme] == port {
		port = ""
	}
	hostport := aceHost
	if port != "" {
		hostport = aceHost + ":" + port
	}

	path := normalizePath(u.EscapedPath())
	query := normalizeQuery(u.RawQuery)

	pathQuery := path
	if query != "" {
		pathQuery += "?" + query
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(aceHost)
	if err != nil {
		return Canonical{}, fmt.Errorf("no registrable domain for host %q: %w", aceHost, err)
	}

	return Canonical{
		Scheme:    scheme,
		Host:      hostport,
		PathQuery: pathQuery,
		Domain:    strings.ToLower(domain),
	}, nil
}

// normalizePath percent-decodes where safe (unreserved octets), collapses
// repeated slashes, and resolves "." / ".." segments without climbing
// above the root, preserving a trailing slash.
func normalizePath(escaped string) string {
	if escaped == "" {
		return "/"
	}

	decoded := decodeUnreservedPercent(escaped)

	trailingSlash := strings.HasSuffix(decoded, "/") && decoded != "/"
	leadingSlash := strings.HasPrefix(decoded, "/")

	raw := strings.Split(decoded, "/")
	var stack []string
	for _, seg := range raw {
		switch seg {
		case "", ".":
			// collapse repeated slashes and drop "." segments
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			// never climb above root: extra ".." segments are simply dropped
		default:
			stack = append(stack, seg)
		}
	}

	out := strings.Join(stack, "/")
	if leadingSlash || out == "" {
		out = "/" + out
	}
	if trailingSlash && !strings.HasSuffix(out, "/") {
		out += "/"
	}
	// collapse a doubled leading slash introduced by the join above
	for strings.HasPrefix(out, "//") {
		out = out[1:]
	}
	return out
}

// decodeUnreservedPercent decodes %XX sequences that represent RFC 3986
// unreserved characters (ALPHA / DIGIT / "-" / "." / "_" / "~"), leaving
// everything else percent-encoded as-is.
func decodeUnreservedPercent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if hi, ok := hexVal(s[i+1]); ok {
				if lo, ok2 := hexVal(s[i+2]); ok2 {
					c := byte(hi<<4 | lo)
					if isUnreserved(c) {
						b.WriteByte(c)
						i += 2
						continue
					}
				}
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func isUnreserved(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// queryPair is one key/value pair from the query string, in its original
// relative order among pairs sharing the same key.
type queryPair struct {
	key, value string
}

// normalizeQuery parses key/value pairs, sorts by key (stable, so pairs
// sharing a key keep their relative order), and re-serializes.
func normalizeQuery(raw string) string {
	if raw == "" {
		return ""
	}

	parts := strings.Split(raw, "&")
	pairs := make([]queryPair, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		pairs = append(pairs, queryPair{key: k, value: v})
	}
	if len(pairs) == 0 {
		return ""
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	return b.String()
}

// Reconstruct rebuilds the URL string from its normalized components, as
// spec §4.11 step 4 and §8 require.
func Reconstruct(scheme, host, pathQuery string) string {
	return scheme + "://" + host + pathQuery
}
