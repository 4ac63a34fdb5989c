package denylist

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cdr.dev/slog/v3"
	"golang.org/x/xerrors"
)

const maxDenylistSize = 100 * 1024 * 1024 // 100 MB

var errTruncated = xerrors.New("denylist exceeds maximum size, skipping to avoid partial data")

// Source is the local denylist file, optionally backed by a remote copy that
// is downloaded into place.
type Source struct {
	path      string
	remoteURL string
	http      *http.Client
	logger    slog.Logger
}

func NewSource(path, remoteURL string, logger slog.Logger) *Source {
	return &Source{
		path:      path,
		remoteURL: remoteURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (s *Source) Path() string { return s.path }

// HasRemote reports whether a remote copy is configured.
func (s *Source) HasRemote() bool { return s.remoteURL != "" }

// Ensure downloads the remote copy when the local file is absent. It is a
// no-op when the file exists or no remote is configured.
func (s *Source) Ensure(ctx context.Context) error {
	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return xerrors.Errorf("stat denylist: %w", err)
	}
	if !s.HasRemote() {
		return nil
	}
	s.logger.Info(ctx, "local denylist missing, downloading", slog.F("path", s.path))
	return s.Download(ctx)
}

// Download fetches the remote copy and atomically replaces the local file.
func (s *Source) Download(ctx context.Context) error {
	if !s.HasRemote() {
		return xerrors.New("no remote denylist configured")
	}

	// Hard timeout for the whole operation, just to be safe.
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.remoteURL, nil)
	if err != nil {
		return xerrors.Errorf("create request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return xerrors.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return xerrors.Errorf("unexpected status: %s", resp.Status)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Errorf("mkdir denylist dir: %w", err)
	}

	// A unique temp file per download; concurrent downloads each rename a
	// complete copy into place.
	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return xerrors.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	// Use maxDenylistSize+1 so we can tell "exactly at limit" from "truncated".
	lr := &io.LimitedReader{R: resp.Body, N: maxDenylistSize + 1}
	n, err := io.Copy(f, lr)
	if err == nil && lr.N == 0 {
		err = errTruncated
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return xerrors.Errorf("write denylist: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return xerrors.Errorf("close denylist: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return xerrors.Errorf("chmod denylist: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return xerrors.Errorf("rename denylist: %w", err)
	}

	s.logger.Info(ctx, "denylist downloaded",
		slog.F("path", s.path),
		slog.F("bytes", n),
	)
	return nil
}

// Entries parses the local file. A missing file yields no entries: the
// service keeps running on provider signals alone.
func (s *Source) Entries(ctx context.Context) ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn(ctx, "denylist file not found, continuing with an empty list", slog.F("path", s.path))
			return nil, nil
		}
		return nil, xerrors.Errorf("open denylist: %w", err)
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
