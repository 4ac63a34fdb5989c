package denylist

import (
	"context"
	"math"
	"math/rand"
	"time"

	"cdr.dev/slog/v3"

	"github.com/Waeei/waeei-backend/internal/domain"
)

type Reloader interface {
	Reload(ctx context.Context, refresh bool) (*domain.Snapshot, error)
}

type Config struct {
	Interval       time.Duration // base reload interval; zero disables periodic reloads
	InitialBackoff time.Duration // initial backoff delay
	MaxBackoff     time.Duration // maximum backoff delay
}

// Start periodically re-downloads and reloads the denylist until the context
// stops. The initial load is done by the caller before serving traffic.
func Start(ctx context.Context, cfg Config, r Reloader, logger slog.Logger) error {
	if cfg.Interval <= 0 {
		return nil // periodic reloads disabled
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Minute
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var consecutiveFailures int

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "denylist updater stopped", slog.Error(ctx.Err()))
			return ctx.Err()

		case <-ticker.C:
			if err := reloadOnce(ctx, r); err != nil {
				consecutiveFailures++
				backoff := calcBackoff(cfg.InitialBackoff, cfg.MaxBackoff, consecutiveFailures)

				logger.Warn(ctx, "denylist reload failed",
					slog.F("attempt", consecutiveFailures),
					slog.F("backoff", backoff.String()),
					slog.Error(err),
				)

				timer := time.NewTimer(backoff)
				select {
				case <-ctx.Done():
					timer.Stop()
					logger.Info(ctx, "denylist updater stopped during backoff", slog.Error(ctx.Err()))
					return ctx.Err()
				case <-timer.C:
				}
				continue
			}

			if consecutiveFailures > 0 {
				logger.Info(ctx, "denylist reload recovered", slog.F("failures", consecutiveFailures))
			}
			consecutiveFailures = 0
		}
	}
}

func calcBackoff(initial, max time.Duration, failures int) time.Duration {
	pow := math.Pow(2, float64(failures-1))
	backoff := time.Duration(float64(initial) * pow)
	if backoff > max {
		backoff = max
	}

	// Add jitter to avoid synchronized retries
	jitterFrac := 0.2
	jitter := time.Duration(rand.Float64()*2*jitterFrac*float64(backoff)) -
		time.Duration(jitterFrac*float64(backoff))

	return backoff + jitter
}

// reloadOnce refreshes from the remote copy and swaps the snapshot.
func reloadOnce(ctx context.Context, r Reloader) error {
	ctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	_, err := r.Reload(ctx, true)
	return err
}
