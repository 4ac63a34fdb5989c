package audit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Waeei/waeei-backend/internal/audit"
	"github.com/Waeei/waeei-backend/internal/domain"
)

func TestMemoryStore_AppendAndList(t *testing.T) {
	t.Parallel()

	clock := quartz.NewMock(t)
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	clock.Set(start)

	s := audit.NewMemoryStore(clock)
	ctx := context.Background()

	first, err := s.Append(ctx, domain.RecordDraft{URL: "http://a.test", Verdict: domain.VerdictSafe, Explanation: "ok"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, start, first.CheckedAt)

	clock.Set(start.Add(time.Minute))
	second, err := s.Append(ctx, domain.RecordDraft{URL: "http://b.test", Verdict: domain.VerdictMalicious})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)

	// Same timestamp: the later id sorts first.
	third, err := s.Append(ctx, domain.RecordDraft{URL: "http://c.test", Verdict: domain.VerdictSafe})
	require.NoError(t, err)

	all, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{third.ID, second.ID, first.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	limited, err := s.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "http://c.test", limited[0].URL)
}

func TestMemoryStore_ConcurrentAppendsGetDistinctIDs(t *testing.T) {
	t.Parallel()

	s := audit.NewMemoryStore(nil)
	ctx := context.Background()

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := s.Append(ctx, domain.RecordDraft{URL: "http://x.test", Verdict: domain.VerdictSafe})
			assert.NoError(t, err)
			ids <- rec.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	t.Parallel()

	s := audit.NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Append(ctx, domain.RecordDraft{URL: "http://x.test"})
	require.ErrorIs(t, err, context.Canceled)
}
