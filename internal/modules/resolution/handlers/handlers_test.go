package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/resolution"
	"github.com/aristath/tradplan/internal/modules/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubApplier struct {
	store *resolution.Store
}

// ApplySuggestion refuses unforced proposals targeting "full"
func (s stubApplier) ApplySuggestion(_ context.Context, id string, opts tasks.ApplyOptions) (*tasks.Result, error) {
	sug, err := s.store.Claim(id)
	if err != nil {
		return nil, err
	}
	if sug.TranslatorID == "full" && !opts.Force {
		s.store.Release(id)
		return nil, domain.NewError(domain.CodeCapacityExceeded, "full has 0.00h available")
	}
	return &tasks.Result{
		Task:      &domain.Task{ID: sug.TaskID, TranslatorID: sug.TranslatorID},
		Entries:   []domain.AllocationEntry{},
		Conflicts: []domain.Conflict{},
		Status:    tasks.StatusOK,
	}, nil
}

func newTestRouter(t *testing.T) (chi.Router, *resolution.Store) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	store := resolution.NewStore(logger)

	r := chi.NewRouter()
	NewHandler(store, stubApplier{store: store}, logger).RegisterRoutes(r)
	return r, store
}

func do(t *testing.T, r chi.Router, method, path string) (int, map[string]interface{}) {
	t.Helper()
	return doBody(t, r, method, path, "")
}

func doBody(t *testing.T, r chi.Router, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w.Code, response
}

func TestSuggestionRoutes(t *testing.T) {
	r, store := newTestRouter(t)
	applyID := store.Save(&domain.Suggestion{Type: domain.SuggestionReassignment, TaskID: 2, TranslatorID: "bruno"})
	dismissID := store.Save(&domain.Suggestion{Type: domain.SuggestionLocalRepair, TaskID: 3})

	status, response := do(t, r, http.MethodGet, "/suggestions")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2.0, response["data"].(map[string]interface{})["count"])

	status, response = do(t, r, http.MethodPost, "/suggestions/"+applyID+"/apply")
	require.Equal(t, http.StatusOK, status)
	task := response["data"].(map[string]interface{})["task"].(map[string]interface{})
	assert.Equal(t, "bruno", task["translator_id"])

	status, _ = do(t, r, http.MethodPost, "/suggestions/"+applyID+"/apply")
	assert.Equal(t, http.StatusBadRequest, status, "already applied")

	status, response = do(t, r, http.MethodPost, "/suggestions/"+dismissID+"/dismiss")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "dismissed", response["data"].(map[string]interface{})["status"])

	status, response = do(t, r, http.MethodGet, "/suggestions/"+applyID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "applied", response["data"].(map[string]interface{})["status"])

	status, _ = do(t, r, http.MethodGet, "/suggestions")
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, r, http.MethodPost, "/suggestions/missing/dismiss")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestApply_StaleProposalNeedsForce(t *testing.T) {
	r, store := newTestRouter(t)
	id := store.Save(&domain.Suggestion{Type: domain.SuggestionReassignment, TaskID: 2, TranslatorID: "full"})

	status, response := do(t, r, http.MethodPost, "/suggestions/"+id+"/apply")
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLIT_DISPONIBILITE", response["error"].(map[string]interface{})["code"])

	status, _ = doBody(t, r, http.MethodPost, "/suggestions/"+id+"/apply", `{"force": true}`)
	assert.Equal(t, http.StatusBadRequest, status, "unknown field")

	status, response = doBody(t, r, http.MethodPost, "/suggestions/"+id+"/apply", `{"forcer": true}`)
	require.Equal(t, http.StatusOK, status)
	task := response["data"].(map[string]interface{})["task"].(map[string]interface{})
	assert.Equal(t, "full", task["translator_id"])
}
