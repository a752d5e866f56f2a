package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func limited(rl *RateLimiter) http.Handler {
	return rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func hit(h http.Handler, remote string) int {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	h := limited(NewRateLimiter(0.001, 2, zerolog.Nop()))

	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1:1235"))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1236"))

	// other clients have their own budget
	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.2:1234"))
}

func TestRateLimiter_RejectionBody(t *testing.T) {
	h := limited(NewRateLimiter(0.001, 1, zerolog.Nop()))
	hit(h, "10.0.0.1:1")

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.RemoteAddr = "10.0.0.1:2"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"RATE_LIMITED"`)
}

func TestRateLimiter_DisabledWithoutRate(t *testing.T) {
	h := limited(NewRateLimiter(0, 0, zerolog.Nop()))
	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1:1"))
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.7:5555"
	assert.Equal(t, "192.168.1.7", clientIP(req))

	req.RemoteAddr = "192.168.1.7"
	assert.Equal(t, "192.168.1.7", clientIP(req))
}
