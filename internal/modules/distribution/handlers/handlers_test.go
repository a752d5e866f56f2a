package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/distribution"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/modules/roster"
	testingpkg "github.com/aristath/tradplan/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	cal := calendar.New(calendar.Options{})
	rost := roster.NewMemoryRepository(testingpkg.NewRosterFixtures()...)
	l := ledger.New(ledger.NewMemoryRepository(), rost, cal, logger)

	engine := distribution.NewEngine(cal, distribution.Options{}, logger)
	engine.SetClock(testingpkg.FixedClock(testingpkg.At(2026, 1, 12, 8, 0)))
	return NewHandler(engine, rost, l, logger)
}

func TestHandlePreview(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		validate       func(*testing.T, map[string]interface{})
	}{
		{
			name:           "just in time",
			body:           `{"translator_id":"alice","total_hours":10,"mode":"JUST_IN_TIME","due":"2026-01-15T17:00:00Z"}`,
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, response map[string]interface{}) {
				data := response["data"].(map[string]interface{})
				assert.Equal(t, 10.0, data["allocated_hours"])
				allocs := data["allocations"].([]interface{})
				require.Len(t, allocs, 2)
				first := allocs[0].(map[string]interface{})
				assert.Equal(t, "14:00", first["start_time"])
				assert.Equal(t, "17:00", first["end_time"])
				assert.NotNil(t, response["metadata"])
			},
		},
		{
			name:           "infeasible returns partial allocation",
			body:           `{"translator_id":"alice","total_hours":40,"mode":"BALANCED","due":"2026-01-13","start":"2026-01-12","end":"2026-01-13"}`,
			expectedStatus: http.StatusUnprocessableEntity,
			validate: func(t *testing.T, response map[string]interface{}) {
				errBody := response["error"].(map[string]interface{})
				assert.Equal(t, "INFEASIBLE", errBody["code"])
				data := response["data"].(map[string]interface{})
				assert.Equal(t, 14.0, data["allocated_hours"])
				assert.Equal(t, 26.0, data["remaining_hours"])
			},
		},
		{
			name:           "manual sum mismatch",
			body:           `{"translator_id":"alice","total_hours":5,"mode":"MANUAL","due":"2026-01-16","allocations":[{"date":"2026-01-12","hours":4}]}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown translator",
			body:           `{"translator_id":"zoe","total_hours":5,"mode":"FIFO","due":"2026-01-16"}`,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "malformed body",
			body:           `{"translator_id":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad due date",
			body:           `{"translator_id":"alice","total_hours":5,"mode":"FIFO","due":"tomorrow"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/distribution/preview", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			handler.HandlePreview(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validate != nil {
				var response map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				tt.validate(t, response)
			}
		})
	}
}

func TestRegisterRoutes(t *testing.T) {
	handler := newTestHandler(t)
	router := chi.NewRouter()

	assert.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")

	req := httptest.NewRequest("POST", "/distribution/preview", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
