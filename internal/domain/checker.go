package domain

import "strings"

// Rule names the denylist rule that produced a match.
type Rule string

const (
	RuleExactURL  Rule = "exact_url"
	RuleExactHost Rule = "exact_host"
	RuleWWWHost   Rule = "www_host"
	RuleSuffix    Rule = "suffix"
)

// Match describes which entry matched and under which rule.
type Match struct {
	Rule  Rule   `json:"rule"`
	Entry string `json:"entry"`
}

// Check reports whether n is covered by the snapshot. Rules are tried in
// order and the first hit is returned:
//
//  1. the canonical URL is an entry
//  2. the host is an entry
//  3. the host without a leading "www." is an entry
//  4. an entry is a suffix of the host on a label boundary, either written
//     with a leading dot (".example.com") or as a bare parent domain
//     ("example.com" covers "a.example.com" but never "notexample.com")
func Check(s *Snapshot, n NormalizedURL) (Match, bool) {
	if s == nil || s.Len() == 0 {
		return Match{}, false
	}

	if n.Canonical != "" && s.Contains(n.Canonical) {
		return Match{Rule: RuleExactURL, Entry: n.Canonical}, true
	}

	host := n.Host
	if host == "" {
		return Match{}, false
	}
	if s.Contains(host) {
		return Match{Rule: RuleExactHost, Entry: host}, true
	}
	if bare, ok := strings.CutPrefix(host, "www."); ok && s.Contains(bare) {
		return Match{Rule: RuleWWWHost, Entry: bare}, true
	}

	// Walking the dots of the host visits exactly the entries that can end it
	// on a label boundary, so there is no need to scan the whole set.
	for i := 0; i < len(host); i++ {
		if host[i] != '.' {
			continue
		}
		if dotted := host[i:]; s.Contains(dotted) {
			return Match{Rule: RuleSuffix, Entry: dotted}, true
		}
		if parent := host[i+1:]; parent != "" && s.Contains(parent) {
			return Match{Rule: RuleSuffix, Entry: parent}, true
		}
	}

	return Match{}, false
}

// IsDenied is Check without the match details.
func IsDenied(s *Snapshot, n NormalizedURL) bool {
	_, ok := Check(s, n)
	return ok
}
