package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/Waeei/waeei-backend/internal/domain"
)

const (
	URLScanName = "urlscan"

	DefaultURLScanURL     = "https://urlscan.io"
	DefaultURLScanTimeout = 30 * time.Second

	URLScanTestURL = "http://example.com"
)

// URLScan submits URLs to urlscan.io for asynchronous scanning. A submission
// only acknowledges the scan, so the provider is enrichment-only.
type URLScan struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

type URLScanOptions struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

func NewURLScan(opts URLScanOptions) *URLScan {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultURLScanURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultURLScanTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	return &URLScan{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		client:  opts.Client,
	}
}

func (s *URLScan) Name() string           { return URLScanName }
func (s *URLScan) Configured() bool       { return s.apiKey != "" }
func (s *URLScan) Authoritative() bool    { return false }
func (s *URLScan) Timeout() time.Duration { return s.timeout }

func (s *URLScan) Check(ctx context.Context, u domain.NormalizedURL) domain.ProviderResult {
	if !s.Configured() {
		return skipped(s.Name(), "URLSCAN_API_KEY missing")
	}

	body, err := json.Marshal(map[string]string{"url": u.Canonical})
	if err != nil {
		return failed(s.Name(), xerrors.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/scan/", bytes.NewReader(body))
	if err != nil {
		return failed(s.Name(), xerrors.Errorf("create request: %w", err))
	}
	req.Header.Set("API-Key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return failed(s.Name(), xerrors.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := readBody(resp.Body)
	if err != nil {
		return failed(s.Name(), xerrors.Errorf("read response: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if !json.Valid(raw) {
			return failed(s.Name(), xerrors.New("decode response: invalid JSON"))
		}
		return domain.ProviderResult{
			Provider: s.Name(),
			Status:   domain.StatusSubmitted,
			Raw:      json.RawMessage(raw),
		}
	default:
		return domain.ProviderResult{
			Provider: s.Name(),
			Status:   domain.StatusError,
			Raw:      rawText(raw),
			Reason:   "unexpected status: " + resp.Status,
			Code:     resp.StatusCode,
		}
	}
}
