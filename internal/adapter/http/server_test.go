package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/skybatch/flight-weather-etl/internal/adapter/http"
)

type mockJoin struct {
	err     error
	entries int
	flights int64
}

func (m *mockJoin) CheckReadiness(_ context.Context) error { return m.err }

func (m *mockJoin) Progress() (int, int64) { return m.entries, m.flights }

func newTestServer(join *mockJoin) *httpadapter.Server {
	return httpadapter.NewServer(":0", join, slog.Default())
}

func getJSON(t *testing.T, srv *httpadapter.Server, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthzReturns200(t *testing.T) {
	code, body := getJSON(t, newTestServer(&mockJoin{}), "/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReflectsPipelineProgress(t *testing.T) {
	t.Run("ready with progress", func(t *testing.T) {
		srv := newTestServer(&mockJoin{entries: 42, flights: 1000})
		code, body := getJSON(t, srv, "/readyz")

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", body["status"])
		assert.Equal(t, float64(42), body["index_entries"])
		assert.Equal(t, float64(1000), body["flights_processed"])
	})

	t.Run("not ready", func(t *testing.T) {
		srv := newTestServer(&mockJoin{err: fmt.Errorf("no batches yet")})
		code, body := getJSON(t, srv, "/readyz")

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not ready", body["status"])
		assert.Equal(t, "no batches yet", body["error"])
		assert.Equal(t, float64(0), body["index_entries"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockJoin{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
