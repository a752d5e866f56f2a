package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
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

var monday = testingpkg.Date(2026, 1, 12)

// setupTestLedger builds a SQLite-backed ledger with a few rows for alice
func setupTestLedger(t *testing.T) (chi.Router, *ledger.Ledger) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	db, cleanup := testingpkg.NewTestDB(t, "planner")
	t.Cleanup(cleanup)

	cal := calendar.New(calendar.Options{})
	rost := roster.NewMemoryRepository(testingpkg.NewRosterFixtures()...)
	l := ledger.New(ledger.NewSQLiteRepository(db.Conn(), logger), rost, cal, logger)

	ctx := context.Background()
	_, err := l.AddAllocation(ctx, testingpkg.TaskEntry("alice", 1, monday, 4, "09:00", "13:00"), false)
	require.NoError(t, err)
	_, err = l.AddAllocation(ctx, testingpkg.BlockEntry("alice", monday, 2, "14:00", "16:00", "formation"), false)
	require.NoError(t, err)
	_, err = l.AddAllocation(ctx, testingpkg.TaskEntry("alice", 1, monday.AddDate(0, 0, 1), 8, "", ""), true)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(l, rost, cal, logger).RegisterRoutes(r)
	return r, l
}

func get(t *testing.T, r chi.Router, path string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w.Code, response
}

func TestHandleGetEntries(t *testing.T) {
	r, _ := setupTestLedger(t)

	tests := []struct {
		name   string
		query  string
		status int
		count  float64
		hours  float64
	}{
		{"whole week", "?translator_id=alice&from=2026-01-12&to=2026-01-16", http.StatusOK, 3, 14},
		{"tasks only", "?translator_id=alice&from=2026-01-12&to=2026-01-16&type=TASK", http.StatusOK, 2, 12},
		{"blocks only", "?translator_id=alice&from=2026-01-12&to=2026-01-12&type=BLOCK", http.StatusOK, 1, 2},
		{"other translator", "?translator_id=bruno&from=2026-01-12&to=2026-01-16", http.StatusOK, 0, 0},
		{"missing translator", "?from=2026-01-12&to=2026-01-16", http.StatusBadRequest, 0, 0},
		{"bad type", "?translator_id=alice&from=2026-01-12&to=2026-01-16&type=LEAVE", http.StatusBadRequest, 0, 0},
		{"inverted range", "?translator_id=alice&from=2026-01-16&to=2026-01-12", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, response := get(t, r, "/ledger/entries"+tt.query)
			require.Equal(t, tt.status, status)
			if status != http.StatusOK {
				return
			}
			data := response["data"].(map[string]interface{})
			assert.Equal(t, tt.count, data["count"])
			assert.Equal(t, tt.hours, data["total_hours"])
		})
	}
}

func TestHandleGetEntry(t *testing.T) {
	r, l := setupTestLedger(t)

	rows, err := l.EntriesForTask(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	status, response := get(t, r, "/ledger/entries/"+strconv.FormatInt(rows[1].ID, 10))
	require.Equal(t, http.StatusOK, status)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, true, data["forced"])
	assert.Equal(t, "TASK", data["type"])

	status, _ = get(t, r, "/ledger/entries/999")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = get(t, r, "/ledger/entries/abc")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandleGetTaskEntries(t *testing.T) {
	r, _ := setupTestLedger(t)

	status, response := get(t, r, "/ledger/tasks/1/entries")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), response["data"].(map[string]interface{})["count"])

	status, response = get(t, r, "/ledger/tasks/42/entries")
	require.Equal(t, http.StatusOK, status)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["count"])
	assert.NotNil(t, data["entries"])
}

func TestHandleGetSummary(t *testing.T) {
	r, _ := setupTestLedger(t)

	status, response := get(t, r, "/ledger/summary?from=2026-01-12&to=2026-01-18")
	require.Equal(t, http.StatusOK, status)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["count"], "inactive translators are left out")

	loads := data["translators"].([]interface{})
	alice := loads[0].(map[string]interface{})
	assert.Equal(t, "alice", alice["translator_id"])
	assert.Equal(t, float64(5), alice["business_days"])
	assert.Equal(t, 35.0, alice["capacity"])
	assert.Equal(t, 12.0, alice["task_hours"])
	assert.Equal(t, 2.0, alice["block_hours"])
	assert.Equal(t, 0.4, alice["utilization"])
	assert.Equal(t, float64(1), alice["overbooked_days"])

	status, response = get(t, r, "/ledger/summary?from=2026-01-12&to=2026-01-18&translator_id=denis")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), response["data"].(map[string]interface{})["count"])

	status, _ = get(t, r, "/ledger/summary?from=2026-01-12&to=2026-01-18&translator_id=zoe")
	assert.Equal(t, http.StatusNotFound, status)
}
