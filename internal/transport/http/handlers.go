package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"cdr.dev/slog/v3"
	"golang.org/x/xerrors"

	"github.com/Waeei/waeei-backend/internal/domain"
	"github.com/Waeei/waeei-backend/internal/engine"
	"github.com/Waeei/waeei-backend/internal/provider"
)

const (
	testGSBURL     = provider.SafeBrowsingTestURL
	testURLScanURL = provider.URLScanTestURL

	maxBodySize = 64 << 10
)

type analyzeRequest struct {
	URL string `json:"url"`
}

func (s *server) analyzeGet(w http.ResponseWriter, r *http.Request) {
	s.analyze(w, r, r.URL.Query().Get("url"))
}

func (s *server) analyzePost(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	s.analyze(w, r, req.URL)
}

func (s *server) analyze(w http.ResponseWriter, r *http.Request, raw string) {
	a, err := s.engine.Analyze(r.Context(), raw)
	if xerrors.Is(err, engine.ErrEmptyURL) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.logger.Error(r.Context(), "analyze failed", slog.F("url", raw), slog.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, a.Report())
}

func (s *server) testProvider(name, target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.engine.ProbeProvider(r.Context(), name, target)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, providerTestResponse{TestURL: target, Result: res})
	}
}

func (s *server) historyJSON(w http.ResponseWriter, r *http.Request) {
	records, err := s.history(r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not load history"})
		return
	}
	out := make([]historyItem, 0, len(records))
	for _, rec := range records {
		out = append(out, historyItem{
			ID:        rec.ID,
			URL:       rec.URL,
			Verdict:   rec.Verdict,
			CheckedAt: rec.CheckedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) historyHTML(w http.ResponseWriter, r *http.Request) {
	records, err := s.history(r)
	if err != nil {
		http.Error(w, "could not load history", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := renderHistory(w, records); err != nil {
		s.logger.Warn(r.Context(), "render history", slog.Error(err))
	}
}

func (s *server) history(r *http.Request) ([]domain.VerdictRecord, error) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.engine.History(r.Context(), limit)
	if err != nil {
		s.logger.Error(r.Context(), "list history", slog.Error(err))
		return nil, err
	}
	return records, nil
}

func (s *server) readyz(w http.ResponseWriter, r *http.Request) {
	snap := s.denylist.Snapshot()
	if snap == nil || snap.LoadedAt.IsZero() {
		writeText(w, http.StatusServiceUnavailable, "not loaded")
		return
	}
	if s.maxAge > 0 {
		age := time.Since(snap.LoadedAt)
		if age < 0 || age > s.maxAge {
			writeText(w, http.StatusServiceUnavailable, "stale")
			return
		}
	}
	writeText(w, http.StatusOK, "ready")
}

func (s *server) reloadDenylist(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	snap, err := s.denylist.Reload(r.Context(), refresh)
	if err != nil {
		s.logger.Warn(r.Context(), "denylist reload failed", slog.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{
		Entries:  snap.Len(),
		Source:   snap.Source,
		LoadedAt: snap.LoadedAt,
	})
}
