package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Waeei/waeei-backend/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type historyItem struct {
	ID        int64          `json:"id"`
	URL       string         `json:"url"`
	Verdict   domain.Verdict `json:"verdict"`
	CheckedAt time.Time      `json:"checked_at"`
}

type providerTestResponse struct {
	TestURL string                `json:"test_url"`
	Result  domain.ProviderResult `json:"result"`
}

type reloadResponse struct {
	Entries  int       `json:"entries"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
