package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/tradplan/internal/config"
	"github.com/aristath/tradplan/internal/di"
	testingpkg "github.com/aristath/tradplan/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *di.Container) {
	t.Helper()
	cfg := &config.Config{
		DataDir:       t.TempDir(),
		Port:          8080,
		DevMode:       true,
		Location:      time.UTC,
		SweepSchedule: "*/15 * * * *",
		Planning:      config.DefaultPlanning(),
	}
	log := zerolog.New(nil).Level(zerolog.Disabled)

	container, jobs, err := di.Wire(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	ctx := context.Background()
	require.NoError(t, container.RosterRepo.Upsert(ctx, testingpkg.NewTranslator("alice")))

	return New(Config{Log: log, Config: cfg, Container: container, Jobs: jobs, Version: "test"}), container
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w, body := do(t, s.Handler(), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "tradplan", body["service"])
}

func TestRoutes_ModulesAreMounted(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/translators", http.StatusOK},
		{"/api/translators/alice", http.StatusOK},
		{"/api/translators/zoe", http.StatusNotFound},
		{"/api/calendar/today", http.StatusOK},
		{"/api/ledger/entries?translator_id=alice&from=2030-01-14&to=2030-01-18", http.StatusOK},
		{"/api/suggestions", http.StatusOK},
		{"/api/tasks", http.StatusOK},
		{"/api/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestSystemStatus(t *testing.T) {
	s, _ := newTestServer(t)

	w, body := do(t, s.Handler(), http.MethodGet, "/api/system/status")
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, float64(1), data["translators"])
	assert.Equal(t, float64(1), data["active_translators"])
	assert.Equal(t, float64(0), data["pending_suggestions"])
	assert.Greater(t, data["database_size_bytes"].(float64), float64(0))
	assert.NotContains(t, data, "last_sweep")
}

func TestSystemJobs_TriggerSweep(t *testing.T) {
	s, _ := newTestServer(t)

	w, body := do(t, s.Handler(), http.MethodPost, "/api/system/jobs/conflict-sweep")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), report["translators"])
	assert.Equal(t, float64(0), report["conflicts"])

	w, body = do(t, s.Handler(), http.MethodGet, "/api/system/jobs")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["count"])

	jobs := data["jobs"].([]interface{})
	sweep := jobs[0].(map[string]interface{})
	assert.Equal(t, "conflict_sweep", sweep["name"])
	assert.Equal(t, float64(1), sweep["runs"])

	_, body = do(t, s.Handler(), http.MethodGet, "/api/system/status")
	assert.Contains(t, body["data"], "last_sweep")
}

func TestSystemDatabaseStats(t *testing.T) {
	s, _ := newTestServer(t)

	w, body := do(t, s.Handler(), http.MethodGet, "/api/system/database/stats")
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "planner", data["name"])
	rows := data["rows"].(map[string]interface{})
	assert.Equal(t, float64(1), rows["translators"])
	assert.Equal(t, float64(0), rows["tasks"])
	assert.Equal(t, float64(0), rows["allocations"])
}

func TestSystemDisk(t *testing.T) {
	s, _ := newTestServer(t)

	w, body := do(t, s.Handler(), http.MethodGet, "/api/system/disk")
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, s.cfg.DataDir, data["data_dir"])
	assert.Greater(t, data["data_size_bytes"].(float64), float64(0))
}
