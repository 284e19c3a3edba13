package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipmux/snipmux/internal/aggregate"
	"github.com/snipmux/snipmux/internal/api"
	"github.com/snipmux/snipmux/internal/engine"
	"github.com/snipmux/snipmux/internal/status"
)

type fakeService struct {
	store *engine.Store
}

func newFakeService() *fakeService {
	return &fakeService{store: engine.NewStore()}
}

func (f *fakeService) Store() *engine.Store { return f.store }

func (f *fakeService) RunCycle(_ context.Context, _ engine.CycleOptions) (*status.CycleReport, error) {
	report := &status.CycleReport{CycleID: "cycle-1", Trigger: status.TriggerManual, StartedAt: time.Now()}
	f.store.Publish(aggregate.NewTable(), nil, report)
	return report, nil
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	server := api.NewServer(newFakeService())

	req, err := http.NewRequest("GET", "/health", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	err = json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		setup          func(*fakeService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "ready after first publish",
			setup: func(f *fakeService) {
				f.store.Publish(aggregate.NewTable(), nil, &status.CycleReport{CycleID: "c1"})
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
		},
		{
			name:           "not ready before first publish",
			setup:          func(*fakeService) {},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "error",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newFakeService()
			tt.setup(svc)
			server := api.NewServer(svc)

			req, err := http.NewRequest("GET", "/readiness", nil)
			require.NoError(t, err)

			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var response map[string]string
			err = json.Unmarshal(rr.Body.Bytes(), &response)
			require.NoError(t, err)

			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedBody, response["status"])
			} else {
				assert.Contains(t, response, tt.expectedBody)
			}
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	server := api.NewServer(newFakeService())

	req, err := http.NewRequest("GET", "/version", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	err = json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	// Version info should contain these fields
	assert.Contains(t, response, "version")
	assert.Contains(t, response, "commit")
	assert.Contains(t, response, "build_date")
	assert.Contains(t, response, "go_version")
	assert.Contains(t, response, "platform")
}

func TestCompletionRoutesMounted(t *testing.T) {
	t.Parallel()

	server := api.NewServer(newFakeService())

	for _, target := range []string{
		"/api/v0/completions",
		"/api/v0/completions/go",
		"/api/v0/languages",
		"/api/v0/status",
	} {
		req, err := http.NewRequest("GET", target, nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		server.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, "GET %s", target)
	}
}

func TestSyncRouteMounted(t *testing.T) {
	t.Parallel()

	server := api.NewServer(newFakeService())

	req, err := http.NewRequest("POST", "/api/v0/sync", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics"))
	})

	withMetrics := api.NewServer(newFakeService(), api.WithMetricsHandler(metrics))
	req, err := http.NewRequest("GET", "/metrics", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	withMetrics.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "# metrics", rr.Body.String())

	// Without the option the path falls through to a 404.
	withoutMetrics := api.NewServer(newFakeService())
	rr = httptest.NewRecorder()
	withoutMetrics.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMiddlewaresApplied(t *testing.T) {
	t.Parallel()

	server := api.NewServer(newFakeService(),
		api.WithMiddlewares(middleware.RequestID, api.LoggingMiddleware))

	req, err := http.NewRequest("GET", "/health", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnknownRouteReturns404(t *testing.T) {
	t.Parallel()

	server := api.NewServer(newFakeService())

	req, err := http.NewRequest("GET", "/api/v1/nope", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
