package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/spreadbook/internal/config"
	"github.com/aristath/spreadbook/internal/di"
	"github.com/aristath/spreadbook/internal/modules/portfolios"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *di.Container) {
	t.Helper()
	cfg := &config.Config{
		DataDir:    t.TempDir(),
		Port:       8080,
		MarketData: config.MarketDataConfig{Provider: config.ProviderNone},
		Scraper:    config.ScraperConfig{ScanNames: []string{"weekly"}},
		Schedules:  config.ScheduleConfig{Enabled: false},
		Engine:     portfolios.DefaultEngineConfig(),
	}

	container, err := di.Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	srv := New(Config{
		Log:       zerolog.Nop(),
		Port:      cfg.Port,
		DevMode:   true,
		DataDir:   cfg.DataDir,
		Container: container,
	})
	return srv, container
}

func request(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := request(t, srv, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "spreadbook", body.Service)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "offline", body.Checks["market_data"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	srv, container := newTestServer(t)
	require.NoError(t, container.DB.Close())

	w := request(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
}

func TestMetrics(t *testing.T) {
	srv, container := newTestServer(t)
	require.NoError(t, container.Scheduler.RunNow("update_pnl"))

	w := request(t, srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "spreadbook_job_runs_total")
}

func TestSystemJobs(t *testing.T) {
	srv, _ := newTestServer(t)

	w := request(t, srv, http.MethodGet, "/api/system/jobs")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Jobs []string `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Contains(t, body.Jobs, "update_pnl")
	assert.Contains(t, body.Jobs, "check_core_databases")
	assert.IsIncreasing(t, body.Jobs)
}

func TestTriggerJob(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"known job", "/api/system/jobs/check_core_databases", http.StatusAccepted},
		{"unknown job", "/api/system/jobs/sync_everything", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(t, srv, http.MethodPost, tt.path)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestSystemStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	w := request(t, srv, http.MethodGet, "/api/system/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body SystemStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 0, body.Portfolios)
	assert.NotEmpty(t, body.MarketDate)
	assert.NotEmpty(t, body.Jobs)
}

func TestDatabaseStatsAndDisk(t *testing.T) {
	srv, _ := newTestServer(t)

	w := request(t, srv, http.MethodGet, "/api/system/database/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats DatabaseStatsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Greater(t, stats.PageCount, int64(0))

	w = request(t, srv, http.MethodGet, "/api/system/disk")
	require.Equal(t, http.StatusOK, w.Code)
	var disk DiskUsageResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&disk))
	assert.Greater(t, disk.DataDirMB, 0.0)
}

func TestModuleRoutesMounted(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{
		"/api/market-hours/status",
		"/api/market-hours/holidays?year=2025",
		"/api/portfolios/",
	} {
		w := request(t, srv, http.MethodGet, path)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
