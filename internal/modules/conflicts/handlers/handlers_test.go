package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/conflicts"
	"github.com/aristath/tradplan/internal/modules/distribution"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/modules/resolution"
	"github.com/aristath/tradplan/internal/modules/roster"
	testingpkg "github.com/aristath/tradplan/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskMap map[int64]*domain.Task

func (m taskMap) Get(_ context.Context, id int64) (*domain.Task, error) {
	if t, ok := m[id]; ok {
		return t, nil
	}
	return nil, domain.NotFound("task %d not found", id)
}

// newTestRouter books alice's Monday full and forces a second task on top
func newTestRouter(t *testing.T) (chi.Router, int64) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	cal := calendar.New(calendar.Options{})
	rost := roster.NewMemoryRepository(testingpkg.NewRosterFixtures()...)
	l := ledger.New(ledger.NewMemoryRepository(), rost, cal, logger)

	engine := distribution.NewEngine(cal, distribution.Options{}, logger)
	engine.SetClock(testingpkg.FixedClock(testingpkg.At(2026, 1, 12, 8, 0)))
	detector := conflicts.NewDetector(cal, logger)

	due := testingpkg.At(2026, 1, 12, 17, 0)
	tasks := taskMap{
		1: {ID: 1, TranslatorID: "alice", TotalHours: 7, Due: due, Mode: domain.ModeJustInTime, LanguagePair: "EN>FR"},
		2: {ID: 2, TranslatorID: "alice", TotalHours: 2, Due: due, Mode: domain.ModeJustInTime, LanguagePair: "EN>FR"},
	}
	suggester := resolution.NewSuggester(engine, detector, l, tasks, rost, resolution.NewStore(logger), resolution.Config{}, logger)

	monday := testingpkg.Date(2026, 1, 12)
	ctx := context.Background()
	_, err := l.AddAllocation(ctx, testingpkg.TaskEntry("alice", 1, monday, 7, "09:00", "17:00"), false)
	require.NoError(t, err)
	forced, err := l.AddAllocation(ctx, testingpkg.TaskEntry("alice", 2, monday, 2, "", ""), true)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(detector, suggester, l, rost, logger).RegisterRoutes(r)
	return r, forced
}

func do(t *testing.T, r chi.Router, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w.Code, response
}

func TestHandleDetect(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		validate       func(*testing.T, map[string]interface{})
	}{
		{
			name:           "one translator",
			query:          "?translator_id=alice&from=2026-01-12&to=2026-01-16",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, response map[string]interface{}) {
				data := response["data"].(map[string]interface{})
				assert.Equal(t, 1.0, data["count"])
				c := data["conflicts"].([]interface{})[0].(map[string]interface{})
				assert.Equal(t, "CAPACITY_EXCEEDED", c["type"])
				assert.Equal(t, 9.0, c["hours_allocated"])
				byType := data["by_type"].(map[string]interface{})
				assert.Equal(t, 1.0, byType["CAPACITY_EXCEEDED"])
			},
		},
		{
			name:           "whole roster",
			query:          "?from=2026-01-12&to=2026-01-12",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, response map[string]interface{}) {
				assert.Equal(t, 1.0, response["data"].(map[string]interface{})["count"])
			},
		},
		{
			name:           "missing range",
			query:          "?translator_id=alice",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "inverted range",
			query:          "?translator_id=alice&from=2026-01-16&to=2026-01-12",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown translator",
			query:          "?translator_id=zoe&from=2026-01-12&to=2026-01-12",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, response := do(t, r, http.MethodGet, "/conflicts"+tt.query, "")
			assert.Equal(t, tt.expectedStatus, status)
			if tt.validate != nil {
				tt.validate(t, response)
			}
		})
	}
}

func TestHandleAllocationFull(t *testing.T) {
	r, forced := newTestRouter(t)

	status, response := do(t, r, http.MethodGet, "/conflicts/allocation/"+strconv.FormatInt(forced, 10)+"/full", "")
	require.Equal(t, http.StatusOK, status)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(forced), data["allocation"].(map[string]interface{})["id"])
	assert.Len(t, data["conflicts"].([]interface{}), 1)

	sugs := data["suggestions"].([]interface{})
	require.Len(t, sugs, 1)
	sug := sugs[0].(map[string]interface{})
	assert.Equal(t, "REASSIGNMENT", sug["type"])
	assert.Equal(t, "bruno", sug["translator_id"])
	assert.NotEmpty(t, sug["id"])

	status, _ = do(t, r, http.MethodGet, "/conflicts/allocation/999/full", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandleSuggest(t *testing.T) {
	r, _ := newTestRouter(t)

	_, detected := do(t, r, http.MethodGet, "/conflicts?translator_id=alice&from=2026-01-12&to=2026-01-12", "")
	cs := detected["data"].(map[string]interface{})["conflicts"]
	body, err := json.Marshal(map[string]interface{}{"conflicts": cs, "candidate_ids": []string{"chloe"}})
	require.NoError(t, err)

	status, response := do(t, r, http.MethodPost, "/conflicts/suggest", string(body))
	require.Equal(t, http.StatusOK, status)
	sugs := response["data"].(map[string]interface{})["suggestions"].([]interface{})
	require.Len(t, sugs, 1)
	sug := sugs[0].(map[string]interface{})
	assert.Equal(t, "IMPOSSIBLE", sug["type"])
	assert.Empty(t, sug["allocations"])
	assert.Equal(t, 100.0, sug["impact"].(map[string]interface{})["score"])

	status, _ = do(t, r, http.MethodPost, "/conflicts/suggest", `{"conflicts":[]}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, r, http.MethodPost, "/conflicts/suggest", `{"conflicts":[{"type":"TASK_OVERLAP"}]}`)
	assert.Equal(t, http.StatusBadRequest, status)
}
