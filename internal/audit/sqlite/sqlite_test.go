package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Waeei/waeei-backend/internal/domain"
)

func openTest(t *testing.T, clock quartz.Clock) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "waeei.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndListRecent(t *testing.T) {
	clock := quartz.NewMock(t)
	start := time.Date(2025, 5, 6, 7, 8, 9, 123456000, time.UTC)
	clock.Set(start)
	s := openTest(t, clock)
	ctx := context.Background()

	first, err := s.Append(ctx, domain.RecordDraft{URL: "http://a.test", Verdict: domain.VerdictSafe, Explanation: "fine"})
	require.NoError(t, err)
	assert.Equal(t, start, first.CheckedAt)

	clock.Set(start.Add(time.Hour))
	second, err := s.Append(ctx, domain.RecordDraft{URL: "http://b.test", Verdict: domain.VerdictMalicious})
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	got, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, domain.VerdictMalicious, got[0].Verdict)
	assert.Equal(t, "", got[0].Explanation)
	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, "fine", got[1].Explanation)
	assert.Equal(t, start, got[1].CheckedAt)

	limited, err := s.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "http://b.test", limited[0].URL)
}

func TestSameTimestampOrdersByID(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s := openTest(t, clock)
	ctx := context.Background()

	var ids []int64
	for _, u := range []string{"http://1.test", "http://2.test", "http://3.test"} {
		rec, err := s.Append(ctx, domain.RecordDraft{URL: u, Verdict: domain.VerdictSafe})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	got, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, []int64{got[0].ID, got[1].ID, got[2].ID})
}

func TestConcurrentAppends(t *testing.T) {
	s := openTest(t, nil)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(ctx, domain.RecordDraft{URL: "http://x.test", Verdict: domain.VerdictSafe})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, n)
	seen := make(map[int64]bool)
	for _, r := range got {
		assert.False(t, seen[r.ID])
		seen[r.ID] = true
	}
}

func TestMigratesLegacyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE url_checks (id INTEGER NOT NULL PRIMARY KEY, url VARCHAR, verdict VARCHAR, checked_at DATETIME);`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO url_checks(url, verdict, checked_at) VALUES('http://old.test', 'SAFE', '2024-10-01 12:30:00.250000');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "http://old.test", got[0].URL)
	assert.Equal(t, time.Date(2024, 10, 1, 12, 30, 0, 250000000, time.UTC), got[0].CheckedAt)

	_, err = s.Append(context.Background(), domain.RecordDraft{URL: "http://new.test", Verdict: domain.VerdictSafe, Explanation: "x"})
	require.NoError(t, err)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("", nil)
	require.Error(t, err)
}
