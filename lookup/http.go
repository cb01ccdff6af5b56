package lookup

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/ifscdir/branch"
)

// HandlerConfig tunes the HTTP API.
type HandlerConfig struct {
	Logger *slog.Logger
	// RatePerSecond limits requests per client IP. 0 disables limiting.
	RatePerSecond float64
	Burst         int
}

type findResponse struct {
	Code    string          `json:"code"`
	Matches []branch.Record `json:"matches"`
}

// Handler serves the lookup API:
//
//	GET /healthz
//	GET /ifsc/{code}
//	GET /ifsc?code=...
func Handler(idx *Index, cfg HandlerConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(headToGet, securityHeaders, traceID(cfg.Logger))
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		r.Use(newIPLimiter(cfg.RatePerSecond, burst).middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": idx.Len()})
	})

	find := func(w http.ResponseWriter, r *http.Request, code string) {
		matches, err := idx.Find(code)
		if errors.Is(err, ErrEmptyCode) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if len(matches) == 0 {
			requestLogger(r.Context()).Debug("lookup: no match", "code", code)
			writeJSON(w, http.StatusNotFound, findResponse{Code: code, Matches: []branch.Record{}})
			return
		}
		writeJSON(w, http.StatusOK, findResponse{Code: code, Matches: matches})
	}
	r.Get("/ifsc/{code}", func(w http.ResponseWriter, r *http.Request) {
		find(w, r, chi.URLParam(r, "code"))
	})
	r.Get("/ifsc", func(w http.ResponseWriter, r *http.Request) {
		find(w, r, r.URL.Query().Get("code"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
