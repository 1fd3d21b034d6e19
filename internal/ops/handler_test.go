package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthflow/internal/logger"
	"healthflow/internal/processing"
	apperrors "healthflow/pkg/errors"
	"healthflow/pkg/health"
)

type stubRepo struct {
	events    []processing.ProcessedEvent
	count     int64
	lastLimit int64
	err       error
}

func (r *stubRepo) Add(ctx context.Context, rec *processing.ProcessedEvent) (*processing.ProcessedEvent, error) {
	return rec, nil
}

func (r *stubRepo) MarkProcessed(ctx context.Context, id string) error { return nil }

func (r *stubRepo) MarkFailed(ctx context.Context, id, errorMessage string) error { return nil }

func (r *stubRepo) GetPendingEvents(ctx context.Context, limit int64) ([]processing.ProcessedEvent, error) {
	r.lastLimit = limit
	if r.err != nil {
		return nil, r.err
	}
	return r.events, nil
}

func (r *stubRepo) GetPendingCount(ctx context.Context) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.count, nil
}

type stubChecker struct {
	name string
	err  error
}

func (c *stubChecker) Name() string                    { return c.name }
func (c *stubChecker) Check(ctx context.Context) error { return c.err }

func setupRouter(repo *stubRepo, checkers ...health.Checker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	registry := health.NewCheckerRegistry()
	for _, c := range checkers {
		registry.Register(c)
	}
	router := gin.New()
	NewHandler(repo, registry, logger.NopLogger()).RegisterRoutes(router)
	return router
}

func doRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetPendingEvents(t *testing.T) {
	repo := &stubRepo{
		events: []processing.ProcessedEvent{
			{ID: "r-1", PatientID: "p-1", Status: processing.StatusProcessing, ReceivedAt: time.Now().UTC()},
			{ID: "r-2", PatientID: "p-2", Status: processing.StatusPending, ReceivedAt: time.Now().UTC()},
		},
	}
	router := setupRouter(repo)

	w := doRequest(router, "/api/v1/processing/pending")
	require.Equal(t, http.StatusOK, w.Code)

	var got []processing.ProcessedEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "r-1", got[0].ID)
	assert.Equal(t, int64(100), repo.lastLimit)
}

func TestGetPendingEventsLimit(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLimit int64
	}{
		{"explicit limit", "?limit=25", 25},
		{"zero falls back", "?limit=0", 100},
		{"negative falls back", "?limit=-5", 100},
		{"over max falls back", "?limit=5000", 100},
		{"garbage falls back", "?limit=abc", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{}
			router := setupRouter(repo)

			w := doRequest(router, "/api/v1/processing/pending"+tt.query)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantLimit, repo.lastLimit)
		})
	}
}

func TestGetPendingEventsStorageError(t *testing.T) {
	repo := &stubRepo{err: apperrors.Wrap(errors.New("cursor timeout"), apperrors.ErrStorage)}
	router := setupRouter(repo)

	w := doRequest(router, "/api/v1/processing/pending")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "STORAGE_ERROR", body["error_code"])
}

func TestGetPendingCount(t *testing.T) {
	repo := &stubRepo{count: 42}
	router := setupRouter(repo)

	w := doRequest(router, "/api/v1/processing/pending/count")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(42), body["count"])
}

func TestHealthEndpoint(t *testing.T) {
	router := setupRouter(&stubRepo{}, &stubChecker{name: "mongodb"})

	w := doRequest(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body health.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, health.StatusHealthy, body.Status)
	assert.Contains(t, body.Checks, "mongodb")
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	router := setupRouter(&stubRepo{},
		&stubChecker{name: "mongodb"},
		&stubChecker{name: "rabbitmq", err: errors.New("connection is not open")},
	)

	w := doRequest(router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupRouter(&stubRepo{})

	w := doRequest(router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
}
