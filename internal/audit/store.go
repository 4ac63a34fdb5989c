// Package audit records every verdict and serves the history.
package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/coder/quartz"

	"github.com/Waeei/waeei-backend/internal/domain"
)

// Store persists verdict records. Append assigns the ID and CheckedAt.
// ListRecent returns records newest first; limit <= 0 means all of them.
type Store interface {
	Append(ctx context.Context, draft domain.RecordDraft) (domain.VerdictRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.VerdictRecord, error)
	Close() error
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	clock quartz.Clock

	mu      sync.Mutex
	nextID  int64
	records []domain.VerdictRecord
}

func NewMemoryStore(clock quartz.Clock) *MemoryStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemoryStore{clock: clock, nextID: 1}
}

func (s *MemoryStore) Append(ctx context.Context, draft domain.RecordDraft) (domain.VerdictRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.VerdictRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := domain.VerdictRecord{
		ID:          s.nextID,
		URL:         draft.URL,
		Verdict:     draft.Verdict,
		Explanation: draft.Explanation,
		CheckedAt:   s.clock.Now().UTC(),
	}
	s.nextID++
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]domain.VerdictRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]domain.VerdictRecord, len(s.records))
	copy(out, s.records)
	s.mu.Unlock()

	SortRecent(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (*MemoryStore) Close() error { return nil }

// SortRecent orders records by CheckedAt descending, newest ID first on ties.
func SortRecent(records []domain.VerdictRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CheckedAt.Equal(b.CheckedAt) {
			return a.CheckedAt.After(b.CheckedAt)
		}
		return a.ID > b.ID
	})
}
