package domain

// Combine folds provider results into the final verdict.
//
// A denylist hit is final and the results are not consulted. Otherwise a
// single authoritative provider reporting malicious convicts the URL; no other
// status contributes, so an enrichment-only provider that merely accepted a
// scan submission can never flip the verdict on its own.
func Combine(matchedDenylist bool, results map[string]ProviderResult, authoritative func(provider string) bool) Verdict {
	if matchedDenylist {
		return VerdictMalicious
	}
	for name, r := range results {
		if r.Status != StatusMalicious {
			continue
		}
		if authoritative != nil && authoritative(name) {
			return VerdictMalicious
		}
	}
	return VerdictSafe
}
