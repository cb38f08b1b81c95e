package middlewarectx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newNoopLoggerLimit() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("success")); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	logger := newNoopLoggerLimit()

	t.Run("allows requests within rate limit", func(t *testing.T) {
		handler := RateLimitMiddleware(logger, rate.NewLimiter(10, 10))(okHandler(t))
		req := httptest.NewRequest(http.MethodPost, "/", nil)

		for i := 0; i < 10; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "success", w.Body.String())
		}
	})

	t.Run("blocks requests exceeding rate limit", func(t *testing.T) {
		handler := RateLimitMiddleware(logger, rate.NewLimiter(1, 1))(okHandler(t))
		req := httptest.NewRequest(http.MethodPost, "/", nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.JSONEq(t, `{"status":"Error","error":"too many requests"}`, w.Body.String())
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	})

	t.Run("allows requests after rate limit reset", func(t *testing.T) {
		handler := RateLimitMiddleware(logger, rate.NewLimiter(5, 1))(okHandler(t))
		req := httptest.NewRequest(http.MethodPost, "/", nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)

		time.Sleep(300 * time.Millisecond)

		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("nil limiter disables limiting", func(t *testing.T) {
		handler := RateLimitMiddleware(logger, nil)(okHandler(t))
		req := httptest.NewRequest(http.MethodPost, "/", nil)

		for i := 0; i < 100; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})
}

func TestRateLimitMiddleware_HandlerNotCalledWhenRateLimited(t *testing.T) {
	var handlerCalled bool
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimitMiddleware(newNoopLoggerLimit(), rate.NewLimiter(1, 1))(next)
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.True(t, handlerCalled, "Handler should be called for first request")

	handlerCalled = false
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, handlerCalled, "Handler should not be called when rate limited")
}
