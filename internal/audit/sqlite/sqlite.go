// Package sqlite is the audit store backed by a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/xerrors"
	_ "modernc.org/sqlite"

	"github.com/Waeei/waeei-backend/internal/audit"
	"github.com/Waeei/waeei-backend/internal/domain"
)

// checked_at is stored as fixed-width UTC text so it sorts lexically and
// stays readable by databases written with the same layout.
const timeLayout = "2006-01-02 15:04:05.000000"

var _ audit.Store = (*Store)(nil)

type Store struct {
	db    *sql.DB
	clock quartz.Clock
}

func Open(path string, clock quartz.Clock) (*Store, error) {
	if path == "" {
		return nil, xerrors.New("sqlite path is empty")
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, xerrors.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, xerrors.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, clock: clock}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS url_checks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url VARCHAR,
			verdict VARCHAR,
			checked_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS ix_url_checks_url ON url_checks(url);`,
		`CREATE INDEX IF NOT EXISTS ix_url_checks_checked_at ON url_checks(checked_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return xerrors.Errorf("sqlite migrate: %w", err)
		}
	}

	// Older databases predate the explanation column.
	ok, err := s.hasColumn(ctx, "url_checks", "explanation")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE url_checks ADD COLUMN explanation TEXT;`); err != nil {
			return xerrors.Errorf("sqlite migrate: add explanation: %w", err)
		}
	}
	return nil
}

func (s *Store) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?);`, table)
	if err != nil {
		return false, xerrors.Errorf("table info: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, xerrors.Errorf("scan table info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s *Store) Append(ctx context.Context, draft domain.RecordDraft) (domain.VerdictRecord, error) {
	checkedAt := s.clock.Now().UTC().Truncate(time.Microsecond)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO url_checks(url, verdict, checked_at, explanation) VALUES(?,?,?,?);`,
		draft.URL,
		string(draft.Verdict),
		checkedAt.Format(timeLayout),
		nullable(draft.Explanation),
	)
	if err != nil {
		return domain.VerdictRecord{}, xerrors.Errorf("insert url check: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.VerdictRecord{}, xerrors.Errorf("last insert id: %w", err)
	}

	return domain.VerdictRecord{
		ID:          id,
		URL:         draft.URL,
		Verdict:     draft.Verdict,
		Explanation: draft.Explanation,
		CheckedAt:   checkedAt,
	}, nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]domain.VerdictRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, verdict, checked_at, explanation FROM url_checks
		ORDER BY checked_at DESC, id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, xerrors.Errorf("query url checks: %w", err)
	}
	defer rows.Close()

	var out []domain.VerdictRecord
	for rows.Next() {
		var (
			rec         domain.VerdictRecord
			url         sql.NullString
			verdict     sql.NullString
			checkedAt   sql.NullString
			explanation sql.NullString
		)
		if err := rows.Scan(&rec.ID, &url, &verdict, &checkedAt, &explanation); err != nil {
			return nil, xerrors.Errorf("scan url check: %w", err)
		}
		rec.URL = url.String
		rec.Verdict = domain.Verdict(verdict.String)
		rec.Explanation = explanation.String
		if checkedAt.Valid {
			rec.CheckedAt = parseTime(checkedAt.String)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Errorf("iterate url checks: %w", err)
	}
	return out, nil
}

func parseTime(v string) time.Time {
	for _, layout := range []string{timeLayout, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
