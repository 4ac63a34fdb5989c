package engine

import (
	"time"

	"github.com/Waeei/waeei-backend/internal/domain"
	"github.com/Waeei/waeei-backend/internal/provider"
)

// Report is the wire shape of an Analysis shared by the HTTP API, the gRPC
// service and the CLI.
type Report struct {
	URL          string                `json:"url"`
	FinalVerdict domain.Verdict        `json:"final_verdict"`
	GSB          domain.ProviderResult `json:"gsb"`
	URLScan      domain.ProviderResult `json:"urlscan"`
	Explanation  string                `json:"explanation"`
	CheckedAt    time.Time             `json:"checked_at"`
	ID           int64                 `json:"id,omitempty"`
	Denylist     *domain.Match         `json:"denylist,omitempty"`
}

func (a Analysis) Report() Report {
	return Report{
		URL:          a.URL.Raw,
		FinalVerdict: a.Verdict,
		GSB:          a.Result(provider.SafeBrowsingName),
		URLScan:      a.Result(provider.URLScanName),
		Explanation:  a.Explanation,
		CheckedAt:    a.CheckedAt,
		ID:           a.Record.ID,
		Denylist:     a.Denylist,
	}
}
