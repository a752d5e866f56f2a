package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.InvalidInput("bad"), http.StatusBadRequest},
		{"not found", domain.NotFound("missing"), http.StatusNotFound},
		{"infeasible", domain.NewError(domain.CodeInfeasible, "no room"), http.StatusUnprocessableEntity},
		{"capacity", domain.NewError(domain.CodeCapacityExceeded, "full"), http.StatusConflict},
		{"stale", domain.NewError(domain.CodeStaleVersion, "old"), http.StatusConflict},
		{"past date", domain.NewError(domain.CodePastDateWarning, "past"), http.StatusPreconditionRequired},
		{"wrapped", fmt.Errorf("saving: %w", domain.NotFound("task 3")), http.StatusNotFound},
		{"untyped", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestBodyFor(t *testing.T) {
	capacity := domain.NewError(domain.CodeCapacityExceeded, "alice is full").WithDetail("remaining_hours", 1.5)
	body := BodyFor(capacity)
	assert.Equal(t, CodeAvailabilityConflict, body.Code)
	assert.Equal(t, "alice is full", body.Message)
	assert.Equal(t, 1.5, body.Details["remaining_hours"])

	body = BodyFor(errors.New("secret path /var/lib"))
	assert.Equal(t, "INTERNAL", body.Code)
	assert.NotContains(t, body.Message, "/var/lib")
}

func TestWrite_MergesExtraFields(t *testing.T) {
	w := httptest.NewRecorder()
	Write(w, zerolog.Nop(), domain.InvalidInput("hours must be positive"), map[string]any{"field": "hours"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	errBody := resp["error"].(map[string]any)
	assert.Equal(t, "INVALID_INPUT", errBody["code"])
	assert.Equal(t, "hours", resp["field"])
	assert.Contains(t, resp, "metadata")
}

func TestEnvelope(t *testing.T) {
	env := Envelope([]int{1})
	assert.Equal(t, []int{1}, env["data"])
	ts := env["metadata"].(map[string]any)["timestamp"].(string)
	_, err := time.Parse(time.RFC3339, ts)
	assert.NoError(t, err)
}

func TestDecode(t *testing.T) {
	type payload struct {
		Hours float64 `json:"hours"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"hours": 3}`, false},
		{"empty", ``, true},
		{"malformed", `{"hours":`, true},
		{"unknown field", `{"hours": 3, "minutes": 5}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := Decode(req, &p)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 3.0, p.Hours)
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("from", "2026-01-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("from", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "from is required")

	_, err = ParseDate("from", "12/01/2026")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseID(t *testing.T) {
	id, err := ParseID("id", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, v := range []string{"", "0", "-3", "abc"} {
		_, err := ParseID("id", v)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, v)
	}
}
