package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/modules/roster"
	testingpkg "github.com/aristath/tradplan/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *ledger.Ledger) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	cal := calendar.New(calendar.Options{Rules: calendar.QuebecHolidays})
	rost := roster.NewMemoryRepository(testingpkg.NewRosterFixtures()...)
	l := ledger.New(ledger.NewMemoryRepository(), rost, cal, logger)

	r := chi.NewRouter()
	NewHandler(rost, l, cal, logger).RegisterRoutes(r)
	return r, l
}

func do(t *testing.T, r chi.Router, method, path string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w.Code, response
}

func TestHandleList(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name     string
		query    string
		status   int
		expected float64
	}{
		{"everyone", "", http.StatusOK, 4},
		{"active only", "?active=true", http.StatusOK, 3},
		{"inactive only", "?active=false", http.StatusOK, 1},
		{"language pair", "?language_pair=es>fr", http.StatusOK, 1},
		{"domain and active", "?domain=Legal&active=1", http.StatusOK, 3},
		{"unknown domain", "?domain=Medical", http.StatusOK, 0},
		{"bad boolean", "?active=maybe", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, response := do(t, r, http.MethodGet, "/translators"+tt.query)
			require.Equal(t, tt.status, status)
			if status != http.StatusOK {
				return
			}
			data := response["data"].(map[string]interface{})
			assert.Equal(t, tt.expected, data["count"])
		})
	}
}

func TestHandleGet(t *testing.T) {
	r, _ := newTestRouter(t)

	status, response := do(t, r, http.MethodGet, "/translators/bruno")
	require.Equal(t, http.StatusOK, status)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "Bruno Gagnon", data["name"])
	assert.Equal(t, true, data["seeking_work"])
	assert.Equal(t, "09:00", data["work_start"])

	status, _ = do(t, r, http.MethodGet, "/translators/zoe")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandleAvailability(t *testing.T) {
	r, l := newTestRouter(t)
	ctx := context.Background()
	monday := testingpkg.Date(2026, 1, 12)

	_, err := l.AddAllocation(ctx, testingpkg.TaskEntry("alice", 1, monday, 5, "09:00", "15:00"), false)
	require.NoError(t, err)
	_, err = l.AddAllocation(ctx, testingpkg.BlockEntry("alice", monday, 1, "15:00", "16:00", "formation"), false)
	require.NoError(t, err)
	_, err = l.AddAllocation(ctx, testingpkg.TaskEntry("alice", 2, monday.AddDate(0, 0, 1), 9, "", ""), true)
	require.NoError(t, err)

	status, response := do(t, r, http.MethodGet, "/translators/alice/availability?from=2026-01-12&to=2026-01-18")
	require.Equal(t, http.StatusOK, status)

	data := response["data"].(map[string]interface{})
	days := data["days"].([]interface{})
	require.Len(t, days, 7)

	mon := days[0].(map[string]interface{})
	assert.Equal(t, 5.0, mon["task_hours"])
	assert.Equal(t, 1.0, mon["block_hours"])
	assert.Equal(t, 1.0, mon["available_hours"])
	assert.Equal(t, true, mon["business_day"])
	assert.Equal(t, 7.0, mon["window_hours"])

	tue := days[1].(map[string]interface{})
	assert.Equal(t, -2.0, tue["available_hours"])
	assert.Equal(t, 1.0, tue["forced_rows"])

	sat := days[5].(map[string]interface{})
	assert.Equal(t, false, sat["business_day"])

	// Mon 1h + Wed..Fri 7h each; the overbooked Tuesday contributes nothing
	assert.Equal(t, 22.0, data["available_hours"])
}

func TestHandleAvailability_Errors(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown translator", "/translators/zoe/availability?from=2026-01-12&to=2026-01-16", http.StatusNotFound},
		{"missing to", "/translators/alice/availability?from=2026-01-12", http.StatusBadRequest},
		{"inverted", "/translators/alice/availability?from=2026-01-16&to=2026-01-12", http.StatusBadRequest},
		{"too long", "/translators/alice/availability?from=2026-01-01&to=2026-12-31", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := do(t, r, http.MethodGet, tt.path)
			assert.Equal(t, tt.status, status)
		})
	}
}
