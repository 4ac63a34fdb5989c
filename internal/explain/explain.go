// Package explain produces the human-readable rationale shown next to a
// verdict.
package explain

import (
	"context"
	"strings"
	"time"

	"cdr.dev/slog/v3"
	"golang.org/x/xerrors"

	"github.com/Waeei/waeei-backend/internal/domain"
	"github.com/Waeei/waeei-backend/internal/metrics"
)

const DefaultTimeout = 20 * time.Second

const (
	cannedMalicious = "هذا الرابط مصنّف كرابط ضار أو احتيالي. لا تفتحه ولا تُدخل فيه أي بيانات شخصية أو مصرفية."
	cannedSafe      = "لم نجد مؤشرات على أن هذا الرابط ضار. مع ذلك تأكد دائمًا من مصدر الرابط قبل إدخال أي بيانات."
	unavailable     = "الشرح غير متاح حاليًا"
)

var errEmptyText = xerrors.New("empty response")

// TextGenerator is a text-generation backend.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Generator explains verdicts. With no backend it returns a canned text per
// verdict.
type Generator struct {
	text    TextGenerator
	timeout time.Duration
	logger  slog.Logger
	metrics *metrics.Metrics
}

func New(text TextGenerator, timeout time.Duration, logger slog.Logger, m *metrics.Metrics) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{
		text:    text,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

func (g *Generator) Configured() bool { return g != nil && g.text != nil }

// Explain never fails: a backend error yields a fixed "unavailable" text that
// carries the reason. The returned string is never empty.
func (g *Generator) Explain(ctx context.Context, verdict domain.Verdict, u domain.NormalizedURL) string {
	if !g.Configured() {
		return Canned(verdict)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.text.Generate(ctx, systemPrompt, userPrompt(verdict, u))
	if err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			err = errEmptyText
		}
	}
	if err != nil {
		if xerrors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = xerrors.New("timeout")
		}
		g.logger.Warn(ctx, "explanation unavailable",
			slog.F("url", u.Canonical),
			slog.Error(err),
		)
		g.metrics.ObserveExplainFallback()
		return Unavailable(err.Error())
	}
	return text
}

// Canned returns the fixed explanation for a verdict.
func Canned(verdict domain.Verdict) string {
	if verdict == domain.VerdictMalicious {
		return cannedMalicious
	}
	return cannedSafe
}

// Unavailable is the text used when the backend could not explain.
func Unavailable(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return unavailable + "."
	}
	return unavailable + " (" + reason + ")."
}
