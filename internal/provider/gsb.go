package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/Waeei/waeei-backend/internal/domain"
)

const (
	SafeBrowsingName = "gsb"

	DefaultSafeBrowsingURL     = "https://safebrowsing.googleapis.com"
	DefaultSafeBrowsingTimeout = 10 * time.Second

	// SafeBrowsingTestURL is a page Google lists as malware for integration checks.
	SafeBrowsingTestURL = "http://testsafebrowsing.appspot.com/s/malware.html"
)

// SafeBrowsing queries the Google Safe Browsing v4 Lookup API. A threat match
// is a synchronous disposition, so the provider is authoritative.
type SafeBrowsing struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

type SafeBrowsingOptions struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

func NewSafeBrowsing(opts SafeBrowsingOptions) *SafeBrowsing {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultSafeBrowsingURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSafeBrowsingTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	return &SafeBrowsing{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		client:  opts.Client,
	}
}

func (g *SafeBrowsing) Name() string           { return SafeBrowsingName }
func (g *SafeBrowsing) Configured() bool       { return g.apiKey != "" }
func (g *SafeBrowsing) Authoritative() bool    { return true }
func (g *SafeBrowsing) Timeout() time.Duration { return g.timeout }

type threatEntry struct {
	URL string `json:"url"`
}

type threatInfo struct {
	ThreatTypes      []string      `json:"threatTypes"`
	PlatformTypes    []string      `json:"platformTypes"`
	ThreatEntryTypes []string      `json:"threatEntryTypes"`
	ThreatEntries    []threatEntry `json:"threatEntries"`
}

type clientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type findRequest struct {
	Client     clientInfo `json:"client"`
	ThreatInfo threatInfo `json:"threatInfo"`
}

func (g *SafeBrowsing) Check(ctx context.Context, u domain.NormalizedURL) domain.ProviderResult {
	if !g.Configured() {
		return skipped(g.Name(), "GSB_API_KEY missing")
	}

	raw, status, err := g.find(ctx, u.Canonical)
	if err != nil {
		r := failed(g.Name(), err)
		if status != 0 {
			r.Code = status
			r.Raw = rawText(raw)
		}
		return r
	}

	// The API answers {} when nothing matched.
	var matches map[string]json.RawMessage
	if err := json.Unmarshal(raw, &matches); err != nil {
		return failed(g.Name(), xerrors.Errorf("decode response: %w", err))
	}
	st := domain.StatusClean
	if len(matches) > 0 {
		st = domain.StatusMalicious
	}
	return domain.ProviderResult{
		Provider: g.Name(),
		Status:   st,
		Raw:      json.RawMessage(raw),
	}
}

// find posts a threatMatches:find request. On a non-2xx reply it returns the
// body and status code alongside the error.
func (g *SafeBrowsing) find(ctx context.Context, target string) ([]byte, int, error) {
	payload := findRequest{
		Client: clientInfo{ClientID: "waaie", ClientVersion: "0.1"},
		ThreatInfo: threatInfo{
			ThreatTypes:      []string{"MALWARE", "SOCIAL_ENGINEERING"},
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []threatEntry{{URL: target}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, xerrors.Errorf("encode request: %w", err)
	}

	endpoint := g.baseURL + "/v4/threatMatches:find?key=" + url.QueryEscape(g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, xerrors.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		// The key is part of the URL; keep it out of the reason.
		var uerr *url.Error
		if xerrors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, 0, xerrors.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp.Body)
	if err != nil {
		return nil, 0, xerrors.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return raw, resp.StatusCode, xerrors.Errorf("unexpected status: %s", resp.Status)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	return raw, resp.StatusCode, nil
}
