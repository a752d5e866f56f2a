// Package apierr maps planner errors onto HTTP responses. It is shared by the
// module handlers and the server so every endpoint reports failures the same way.
package apierr

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/rs/zerolog"
)

// CodeAvailabilityConflict is the wire code of a capacity violation
const CodeAvailabilityConflict = "CONFLIT_DISPONIBILITE"

// Body is the error payload
type Body struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Status returns the HTTP status for err
func Status(err error) int {
	switch domain.CodeOf(err) {
	case domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInfeasible:
		return http.StatusUnprocessableEntity
	case domain.CodeCapacityExceeded, domain.CodeStaleVersion:
		return http.StatusConflict
	case domain.CodePastDateWarning:
		return http.StatusPreconditionRequired
	}
	return http.StatusInternalServerError
}

// BodyFor builds the error payload for err. Untyped errors are reported as
// INTERNAL without leaking their message.
func BodyFor(err error) Body {
	var e *domain.Error
	if !errors.As(err, &e) {
		return Body{Code: "INTERNAL", Message: "internal error"}
	}
	code := string(e.Code)
	if e.Code == domain.CodeCapacityExceeded {
		code = CodeAvailabilityConflict
	}
	return Body{Code: code, Message: e.Message, Details: e.Details}
}

// Envelope wraps data the way every endpoint answers
func Envelope(data any) map[string]any {
	return map[string]any{
		"data": data,
		"metadata": map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, log zerolog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Write writes err with its mapped status, extra payload fields merged in
func Write(w http.ResponseWriter, log zerolog.Logger, err error, extra map[string]any) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	resp := map[string]any{
		"error": BodyFor(err),
		"metadata": map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	for k, v := range extra {
		resp[k] = v
	}
	WriteJSON(w, log, status, resp)
}

// Decode reads a JSON body into dst; malformed bodies are INVALID_INPUT
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.InvalidInput("request body is required")
		}
		return domain.InvalidInput("invalid request body: %v", err)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD query or path value
func ParseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, domain.InvalidInput("%s is required", name)
	}
	d, err := time.ParseInLocation(time.DateOnly, value, time.UTC)
	if err != nil {
		return time.Time{}, domain.InvalidInput("%s: %s is not a YYYY-MM-DD date", name, value)
	}
	return d, nil
}

// ParseID parses a positive integer path value
func ParseID(name, value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInput("%s: %q is not a valid id", name, value)
	}
	return id, nil
}
