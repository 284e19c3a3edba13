package v0_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v0 "github.com/snipmux/snipmux/internal/api/v0"
	"github.com/snipmux/snipmux/internal/aggregate"
	"github.com/snipmux/snipmux/internal/engine"
	"github.com/snipmux/snipmux/internal/snippets"
	"github.com/snipmux/snipmux/internal/status"
)

type fakeService struct {
	store  *engine.Store
	report *status.CycleReport
	err    error
	cycles []engine.CycleOptions
}

func newFakeService() *fakeService {
	return &fakeService{store: engine.NewStore()}
}

func (f *fakeService) Store() *engine.Store { return f.store }

func (f *fakeService) RunCycle(_ context.Context, opts engine.CycleOptions) (*status.CycleReport, error) {
	f.cycles = append(f.cycles, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func testSnippet(name, prefix string, langs ...string) *snippets.Snippet {
	return &snippets.Snippet{
		Name:            name,
		Prefixes:        []string{prefix},
		BodyLines:       []string{name + " body"},
		TargetLanguages: langs,
		Source:          "repo-1",
		File:            "test.code-snippets",
	}
}

// publishFixture swaps in a table with one global and two language
// buckets plus a matching report.
func publishFixture(svc *fakeService) {
	table := aggregate.NewTable()
	table.Buckets["*"] = []*snippets.Snippet{testSnippet("header", "hdr!", "*")}
	table.Buckets["go"] = []*snippets.Snippet{
		testSnippet("logv", "logv", "go"),
		testSnippet("errwrap", "errw", "go"),
	}
	table.Buckets["javascript"] = []*snippets.Snippet{testSnippet("clog", "clog", "javascript")}

	now := time.Now().UTC()
	statuses := []status.SourceStatus{
		{ID: "repo-1", DisplayName: "Repo 1 (/tmp/repo)", LastSync: &now, SnippetCount: 4},
	}
	report := &status.CycleReport{
		CycleID:   "cycle-123",
		Trigger:   status.TriggerStartup,
		StartedAt: now,
		Duration:  42 * time.Millisecond,
		Sources:   statuses,
	}
	report.Recount()

	svc.store.Publish(table, statuses, report)
	svc.report = report
}

func doRequest(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGetCompletionsForLanguage(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	publishFixture(svc)
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet, "/completions/go")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeBody[v0.CompletionsResponse](t, rec)
	assert.Equal(t, "go", resp.Language)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Snippets, 3)

	// Global entries come first, then the language's own in order.
	assert.Equal(t, "header", resp.Snippets[0].Name)
	assert.Equal(t, "logv", resp.Snippets[1].Name)
	assert.Equal(t, "errwrap", resp.Snippets[2].Name)

	// Last runes of hdr!, logv, errw in first-appearance order.
	assert.Equal(t, []string{"!", "v", "w"}, resp.TriggerCharacters)
}

func TestGetCompletionsNormalizesLanguage(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	publishFixture(svc)
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet, "/completions/JavaScript")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[v0.CompletionsResponse](t, rec)
	assert.Equal(t, "javascript", resp.Language)
	assert.Equal(t, 2, resp.Count)
}

func TestGetCompletionsUnknownLanguageServesGlobalOnly(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	publishFixture(svc)
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet, "/completions/rust")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[v0.CompletionsResponse](t, rec)
	require.Len(t, resp.Snippets, 1)
	assert.Equal(t, "header", resp.Snippets[0].Name)
}

func TestGetGlobalCompletions(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	publishFixture(svc)
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet, "/completions")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[v0.CompletionsResponse](t, rec)
	assert.Equal(t, "*", resp.Language)
	require.Len(t, resp.Snippets, 1)
	assert.Equal(t, "header", resp.Snippets[0].Name)
	assert.Equal(t, []string{"!"}, resp.TriggerCharacters)
}

func TestGetCompletionsBeforeFirstPublish(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet, "/completions/go")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[v0.CompletionsResponse](t, rec)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Snippets)
	assert.Empty(t, resp.Snippets)
}

func TestListLanguages(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	publishFixture(svc)
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet, "/languages")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[v0.LanguagesResponse](t, rec)

	require.Len(t, resp.Languages, 2)
	assert.Equal(t, "go", resp.Languages[0].Language)
	assert.Equal(t, 2, resp.Languages[0].SnippetCount)
	assert.Equal(t, "javascript", resp.Languages[1].Language)
	assert.Equal(t, 1, resp.Languages[1].SnippetCount)
	assert.True(t, resp.HasGlobal)
	assert.Equal(t, 4, resp.Total)
}

func TestGetStatusBeforeFirstCycle(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet, "/status")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[v0.StatusResponse](t, rec)
	assert.Zero(t, resp.TotalSnippets)
	assert.False(t, resp.HasErrors)
	assert.Empty(t, resp.Sources)
	assert.Nil(t, resp.Cycle)
}

func TestGetStatus(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	publishFixture(svc)
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet, "/status")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[v0.StatusResponse](t, rec)
	assert.Equal(t, 4, resp.TotalSnippets)
	assert.Zero(t, resp.ErrorCount)
	assert.False(t, resp.HasErrors)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "repo-1", resp.Sources[0].ID)
	require.NotNil(t, resp.Cycle)
	assert.Equal(t, "cycle-123", resp.Cycle.ID)
	assert.Equal(t, "startup", resp.Cycle.Trigger)
	assert.Equal(t, "42ms", resp.Cycle.Duration)
}

func TestTriggerSync(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	publishFixture(svc)
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodPost, "/sync")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[v0.StatusResponse](t, rec)
	assert.Equal(t, 4, resp.TotalSnippets)
	require.NotNil(t, resp.Cycle)

	require.Len(t, svc.cycles, 1)
	assert.Equal(t, status.TriggerManual, svc.cycles[0].Trigger)
	assert.True(t, svc.cycles[0].AllowPull)
	assert.True(t, svc.cycles[0].Notify)
}

func TestTriggerSyncFailure(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	svc.err = fmt.Errorf("resolver exploded")
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodPost, "/sync")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody[v0.ErrorResponse](t, rec)
	assert.Contains(t, resp.Error, "resolver exploded")
}
