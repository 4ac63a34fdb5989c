package domain

import (
	"net"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// Normalize takes a raw URL as a user would paste it and converts it to the
// deterministic form used for denylist lookups and provider queries.
//
// Normalize never fails. Input that does not parse as a URL with a host falls
// back to its lower-cased text (trailing slashes removed) as Canonical. Host is
// then taken from the authority part of that text when there is one, and is
// the same text as Canonical otherwise, so a malformed link still goes through
// the rest of the pipeline.
func Normalize(raw string) NormalizedURL {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NormalizedURL{Raw: raw}
	}

	lower := strings.ToLower(trimmed)
	withScheme := lower
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		// Scheme-less input is treated as a bare host/path.
		withScheme = "http://" + lower
	}

	u, err := url.Parse(withScheme)
	if err != nil {
		return fallback(raw, lower, withScheme)
	}

	host := normalizeHost(u.Hostname())
	if host == "" {
		return fallback(raw, lower, withScheme)
	}
	if host != u.Hostname() {
		u.Host = joinHostPort(host, u.Port())
	}

	return NormalizedURL{
		Raw:       raw,
		// String re-escapes non-ASCII paths with upper-case hex; lower it again.
		Canonical: stripTrailingSlash(strings.ToLower(u.String())),
		Host:      host,
	}
}

// ASCIIHost converts a host, or a "."-prefixed host suffix, to the form
// Normalize produces: lower-cased, IDNA ASCII when the input is not ASCII.
func ASCIIHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if strings.HasPrefix(h, ".") {
		return "." + normalizeHost(h[1:])
	}
	return normalizeHost(h)
}

func fallback(raw, lower, withScheme string) NormalizedURL {
	canonical := stripTrailingSlash(lower)
	if i := strings.Index(lower, "://"); i >= 0 && len(canonical) < i+len("://") {
		// Keep "http://" intact; "http:" would normalize to a different URL.
		canonical = lower[:i+len("://")]
	}

	host := authorityHost(withScheme)
	if host == "" {
		host = canonical
	}
	return NormalizedURL{
		Raw:       raw,
		Canonical: canonical,
		Host:      host,
	}
}

// authorityHost extracts the host from the text between "://" and the first
// "/", "?" or "#", dropping userinfo and port. It returns "" when there is no
// usable authority. Used for URLs net/url rejects, such as bad escapes in the
// path or a malformed port.
func authorityHost(s string) string {
	_, rest, ok := strings.Cut(s, "://")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest = rest[i+1:]
	}

	var host string
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return ""
		}
		host = rest[1:end]
	} else {
		host, _, _ = strings.Cut(rest, ":")
	}
	return normalizeHost(host)
}

// normalizeHost expects a host without port or brackets.
func normalizeHost(host string) string {
	// Drop trailing dot: "example.com." → "example.com".
	host = strings.TrimSuffix(host, ".")
	if host == "" || isASCII(host) {
		return host
	}

	// Non-ASCII: delegate to IDNA. Hosts IDNA rejects are kept as typed.
	asciiHost, err := idna.Lookup.ToASCII(host)
	if err != nil || asciiHost == "" {
		return host
	}
	return strings.ToLower(asciiHost)
}

func joinHostPort(host, port string) string {
	if port != "" {
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		// IPv6 literal.
		return "[" + host + "]"
	}
	return host
}

// stripTrailingSlash removes every trailing "/" so that the result is a fixed
// point: normalizing a canonical URL again yields the same canonical URL.
func stripTrailingSlash(s string) string {
	return strings.TrimRight(s, "/")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
