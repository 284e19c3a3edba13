// Package v0 provides the HTTP handlers for snippet completion access.
package v0

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snipmux/snipmux/internal/engine"
	"github.com/snipmux/snipmux/internal/snippets"
	"github.com/snipmux/snipmux/internal/status"
	"github.com/snipmux/snipmux/internal/versions"
)

// SnippetService is the part of the engine the API consumes.
type SnippetService interface {
	// Store returns the published state holder
	Store() *engine.Store

	// RunCycle executes one full cycle and returns its report
	RunCycle(ctx context.Context, opts engine.CycleOptions) (*status.CycleReport, error)
}

// CompletionsResponse is the merged completion sequence for one language.
type CompletionsResponse struct {
	Language          string              `json:"language"`
	Snippets          []*snippets.Snippet `json:"snippets"`
	TriggerCharacters []string            `json:"triggerCharacters"`
	Count             int                 `json:"count"`
}

// LanguageInfo describes one language bucket of the published table.
type LanguageInfo struct {
	Language          string   `json:"language"`
	SnippetCount      int      `json:"snippetCount"`
	TriggerCharacters []string `json:"triggerCharacters"`
}

// LanguagesResponse lists the languages the published table covers.
type LanguagesResponse struct {
	Languages []LanguageInfo `json:"languages"`
	HasGlobal bool           `json:"hasGlobal"`
	Total     int            `json:"total"`
}

// CycleInfo identifies the cycle that produced the published state.
type CycleInfo struct {
	ID        string    `json:"id"`
	Trigger   string    `json:"trigger"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
}

// StatusResponse is the health view of the published state.
type StatusResponse struct {
	TotalSnippets int                   `json:"totalSnippets"`
	ErrorCount    int                   `json:"errorCount"`
	HasErrors     bool                  `json:"hasErrors"`
	Sources       []status.SourceStatus `json:"sources"`
	Cycle         *CycleInfo            `json:"cycle,omitempty"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Routes defines the routes for the completion API with dependency injection
type Routes struct {
	service SnippetService
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc SnippetService) *Routes {
	return &Routes{
		service: svc,
	}
}

// Router creates a new router for the completion API
func Router(svc SnippetService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()

	r.Get("/completions", routes.getGlobalCompletions)
	r.Get("/completions/{language}", routes.getCompletions)
	r.Get("/languages", routes.listLanguages)
	r.Get("/status", routes.getStatus)
	r.Post("/sync", routes.triggerSync)

	return r
}

// handleCompletions writes the merged sequence for one language key.
func (rr *Routes) handleCompletions(w http.ResponseWriter, language string) {
	table := rr.service.Store().Table()

	merged := table.MergedFor(language)
	resp := CompletionsResponse{
		Language:          language,
		Snippets:          merged,
		TriggerCharacters: table.TriggerChars(language),
		Count:             len(merged),
	}
	if resp.Snippets == nil {
		resp.Snippets = []*snippets.Snippet{}
	}
	if resp.TriggerCharacters == nil {
		resp.TriggerCharacters = []string{}
	}

	rr.writeJSONResponse(w, resp)
}

// getCompletions handles GET /api/v0/completions/{language}
//
// The sequence is the global bucket followed by the language's own
// bucket, in publication order.
func (rr *Routes) getCompletions(w http.ResponseWriter, r *http.Request) {
	language := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "language")))
	if language == "" {
		rr.writeErrorResponse(w, "Language is required", http.StatusBadRequest)
		return
	}

	rr.handleCompletions(w, language)
}

// getGlobalCompletions handles GET /api/v0/completions
//
// Without a language the catch-all bucket alone is served.
func (rr *Routes) getGlobalCompletions(w http.ResponseWriter, _ *http.Request) {
	rr.handleCompletions(w, snippets.GlobalScope)
}

// listLanguages handles GET /api/v0/languages
func (rr *Routes) listLanguages(w http.ResponseWriter, _ *http.Request) {
	table := rr.service.Store().Table()

	langs := table.Languages()
	infos := make([]LanguageInfo, 0, len(langs))
	for _, lang := range langs {
		info := LanguageInfo{
			Language:          lang,
			SnippetCount:      len(table.Buckets[lang]),
			TriggerCharacters: table.TriggerChars(lang),
		}
		if info.TriggerCharacters == nil {
			info.TriggerCharacters = []string{}
		}
		infos = append(infos, info)
	}

	rr.writeJSONResponse(w, LanguagesResponse{
		Languages: infos,
		HasGlobal: table.HasGlobal(),
		Total:     table.Total(),
	})
}

// getStatus handles GET /api/v0/status
func (rr *Routes) getStatus(w http.ResponseWriter, _ *http.Request) {
	store := rr.service.Store()
	resp := statusResponse(store.Statuses(), store.Report())
	rr.writeJSONResponse(w, resp)
}

// triggerSync handles POST /api/v0/sync
//
// The cycle runs to completion before the response is written. A cycle
// already in flight is joined rather than duplicated.
func (rr *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	report, err := rr.service.RunCycle(r.Context(), engine.OptionsFor(status.TriggerManual))
	if err != nil {
		slog.ErrorContext(r.Context(), "Manual sync failed", "error", err)
		rr.writeErrorResponse(w, "Sync failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, statusResponse(report.Sources, report))
}

// statusResponse shapes statuses and an optional report into the shared
// health view.
func statusResponse(sources []status.SourceStatus, report *status.CycleReport) StatusResponse {
	resp := StatusResponse{Sources: sources}
	if resp.Sources == nil {
		resp.Sources = []status.SourceStatus{}
	}

	if report != nil {
		resp.TotalSnippets = report.TotalSnippets
		resp.ErrorCount = report.ErrorCount
		resp.HasErrors = report.HasErrors()
		resp.Cycle = &CycleInfo{
			ID:        report.CycleID,
			Trigger:   string(report.Trigger),
			StartedAt: report.StartedAt,
			Duration:  report.Duration.String(),
		}
	}

	return resp
}

// HealthRouter creates a router for liveness endpoints
func HealthRouter(svc SnippetService) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessHandler reports ready once the first cycle has published.
func readinessHandler(svc SnippetService) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !svc.Store().Ready() {
			errorResp := ErrorResponse{
				Error: "no cycle has published yet",
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			if encodeErr := json.NewEncoder(w).Encode(errorResp); encodeErr != nil {
				slog.Error("Failed to encode readiness error response", "error", encodeErr)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

// versionHandler handles version information requests
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(info); err != nil {
		slog.Error("Failed to encode version info", "error", err)
	}
}

// writeJSONResponse writes a JSON response with the given data
func (*Routes) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func (*Routes) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	errorResp := ErrorResponse{
		Error: message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
