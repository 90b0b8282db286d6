package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/spreadbook/internal/modules/scans"
	testutil "github.com/aristath/spreadbook/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	db := testutil.NewStrategyTestDB(t)
	service := scans.NewService(db.Conn(), nil, zerolog.Nop())
	handler := NewHandler(service, zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api", handler.RegisterRoutes)
	return r
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestScanLifecycle(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/scans/2025-01-17/weekly", testutil.ScrapeEnvelopeJSON)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/scans", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []scans.ScanDateSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, 3, list.Data[0].Count)

	w = do(t, router, http.MethodGet, "/api/scans/2025-01-17?name=weekly", "")
	require.Equal(t, http.StatusOK, w.Code)
	var results struct {
		Data []scans.ScanResultView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results.Data, 3)
	assert.Equal(t, "MSFT", results.Data[0].Ticker)

	w = do(t, router, http.MethodDelete, "/api/scans/2025-01-17?name=weekly", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/scans/2025-01-17", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	assert.Empty(t, results.Data)
}

func TestHandleSaveScanResults_Errors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name           string
		path           string
		body           string
		expectedStatus int
	}{
		{"scraper failure", "/api/scans/2025-01-17/weekly", testutil.ScrapeFailureJSON, http.StatusBadRequest},
		{"garbage body", "/api/scans/2025-01-17/weekly", "not json", http.StatusBadRequest},
		{"invalid row", "/api/scans/2025-01-17/weekly", `[{"ticker":"AAPL","strike":"100","expDate":"2025-02-21"}]`, http.StatusUnprocessableEntity},
		{"invalid date", "/api/scans/someday/weekly", `[{"ticker":"AAPL","strike":"100/95","expDate":"2025-02-21"}]`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
