// Package httpadapter exposes the suggestion and decision use cases over a
// small JSON API.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/domain"
	"github.com/mkuhn/sortmeister/internal/core/ports"
	"github.com/mkuhn/sortmeister/internal/observability/metrics"
)

type Router struct {
	suggestions ports.SuggestionService
	decisions   ports.DecisionRecorder
	metrics     *metrics.HTTPServerMetrics
}

func NewRouter(
	suggestions ports.SuggestionService,
	decisions ports.DecisionRecorder,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		suggestions: suggestions,
		decisions:   decisions,
		metrics:     httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/suggestions", rt.getSuggestions)
	mux.HandleFunc("/v1/suggestions/invalidate", rt.invalidate)
	mux.HandleFunc("/v1/decisions", rt.recordDecision)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = accessLogMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getSuggestions serves suggestions for a document path. Interactive requests
// wait for the analysis, prefetch priorities come back immediately and may be
// partial.
func (rt *Router) getSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Path     string `json:"path"`
		Priority string `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}
	priority := parsePriority(req.Priority)

	start := time.Now()
	entry, err := rt.suggestions.GetSuggestions(r.Context(), req.Path, priority)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSuggestionServed("api", priority.String(), string(entry.State), time.Since(start))
	}
	status := http.StatusOK
	if entry.Partial() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, suggestionResponse(entry))
}

func (rt *Router) invalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}

	if err := rt.suggestions.Invalidate(r.Context(), req.Path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (rt *Router) recordDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Path        string `json:"path"`
		Destination string `json:"destination"`
		ChosenName  string `json:"chosen_name"`
		Source      string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Path) == "" || strings.TrimSpace(req.Destination) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path and destination are required"})
		return
	}

	source := domain.DecisionSource(req.Source)
	switch source {
	case domain.DecisionDrag, domain.DecisionDialog, domain.DecisionCorrection:
	case "":
		source = domain.DecisionDialog
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown decision source"})
		return
	}

	if err := rt.decisions.RecordDecision(r.Context(), req.Path, req.Destination, req.ChosenName, source); err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordDecision("api", string(source))
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func parsePriority(raw string) domain.Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "interactive":
		return domain.PriorityInteractive
	case "prefetch-near", "near":
		return domain.PriorityPrefetchNear
	default:
		return domain.PriorityBackground
	}
}

func suggestionResponse(entry *domain.CacheEntry) map[string]any {
	resp := map[string]any{
		"fingerprint": entry.Fingerprint,
		"state":       entry.State,
		"suggestions": entry.Suggestions,
		"names":       entry.Names,
		"computed_at": entry.ComputedAt,
	}
	if entry.Error != "" {
		resp["error"] = entry.Error
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
