// Package provider holds the reputation provider adapters and the
// orchestrator that queries them concurrently.
package provider

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/Waeei/waeei-backend/internal/domain"
)

// Provider is a single external reputation source.
//
// Check never returns an error: transport and parse failures are reported as
// a result with status error. An unconfigured provider reports skipped
// without touching the network.
type Provider interface {
	Name() string
	Configured() bool
	// Authoritative providers can convict a URL on their own.
	Authoritative() bool
	Timeout() time.Duration
	Check(ctx context.Context, u domain.NormalizedURL) domain.ProviderResult
}

// maxResponseSize caps how much of a provider response is kept.
const maxResponseSize = 1 << 20

func skipped(name, reason string) domain.ProviderResult {
	return domain.ProviderResult{
		Provider: name,
		Status:   domain.StatusSkipped,
		Reason:   reason,
	}
}

func failed(name string, err error) domain.ProviderResult {
	return domain.ProviderResult{
		Provider: name,
		Status:   domain.StatusError,
		Reason:   err.Error(),
	}
}

func readBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxResponseSize))
}

// rawText wraps a non-JSON body as a JSON string so it can still be carried
// in ProviderResult.Raw.
func rawText(b []byte) json.RawMessage {
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	out, _ := json.Marshal(string(b))
	return out
}

// AuthorityOf returns a lookup telling whether the named provider is
// authoritative.
func AuthorityOf(providers []Provider) func(string) bool {
	m := make(map[string]bool, len(providers))
	for _, p := range providers {
		m[p.Name()] = p.Authoritative()
	}
	return func(name string) bool { return m[name] }
}
