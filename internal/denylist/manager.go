package denylist

import (
	"context"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"

	"github.com/Waeei/waeei-backend/internal/domain"
)

// Manager loads the denylist from its Source into the Holder.
type Manager struct {
	holder *Holder
	source *Source
	clock  quartz.Clock
	logger slog.Logger
	group  singleflight.Group

	// OnReload, if set, is called after every load attempt.
	OnReload func(entries int, err error)
}

func NewManager(holder *Holder, source *Source, clock quartz.Clock, logger slog.Logger) *Manager {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Manager{
		holder: holder,
		source: source,
		clock:  clock,
		logger: logger,
	}
}

func (m *Manager) Holder() *Holder { return m.holder }

// Snapshot returns the snapshot currently in effect.
func (m *Manager) Snapshot() *domain.Snapshot { return m.holder.Get() }

// Reload builds a new snapshot from the local file and swaps it in. With
// refresh the remote copy is downloaded again first; otherwise it is only
// downloaded when no local copy exists. Concurrent calls share one load.
// On failure the current snapshot stays in place.
func (m *Manager) Reload(ctx context.Context, refresh bool) (*domain.Snapshot, error) {
	key := "load"
	if refresh {
		key = "refresh"
	}
	v, err, _ := m.group.Do(key, func() (any, error) {
		return m.reload(ctx, refresh)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Snapshot), nil
}

func (m *Manager) reload(ctx context.Context, refresh bool) (*domain.Snapshot, error) {
	snap, err := m.load(ctx, refresh)
	if m.OnReload != nil {
		m.OnReload(snap.Len(), err)
	}
	if err != nil {
		return nil, err
	}
	m.holder.Set(snap)
	m.logger.Info(ctx, "denylist loaded",
		slog.F("entries", snap.Len()),
		slog.F("path", snap.Source),
	)
	return snap, nil
}

func (m *Manager) load(ctx context.Context, refresh bool) (*domain.Snapshot, error) {
	if refresh && m.source.HasRemote() {
		if err := m.source.Download(ctx); err != nil {
			return nil, xerrors.Errorf("refresh denylist: %w", err)
		}
	} else if err := m.source.Ensure(ctx); err != nil {
		// A failed first download is not fatal; whatever is on disk (possibly
		// nothing) is still loaded below.
		m.logger.Warn(ctx, "could not fetch denylist", slog.Error(err))
	}

	entries, err := m.source.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return domain.NewSnapshot(entries, m.source.Path(), m.clock.Now()), nil
}
