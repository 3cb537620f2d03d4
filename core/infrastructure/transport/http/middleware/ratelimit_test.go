package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.err
}

func serveLimited(limiter RateLimiter, remoteAddr string) *httptest.ResponseRecorder {
	h := RateLimitByIP(limiter, 10, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/heartbeat", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true}
		rec := serveLimited(limiter, "10.0.0.7:51234")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.Len(t, limiter.keys, 1)
		assert.Equal(t, "querygate:ratelimit:10.0.0.7", limiter.keys[0])
	})

	t.Run("rejected", func(t *testing.T) {
		rec := serveLimited(&stubLimiter{allowed: false}, "10.0.0.7:51234")

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), `"RATE_LIMITED"`)
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		rec := serveLimited(&stubLimiter{err: errors.New("dial tcp: connection refused")}, "10.0.0.7:51234")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestNewRedisRateLimiterFromURL_Invalid(t *testing.T) {
	_, err := NewRedisRateLimiterFromURL("http://not-redis")
	assert.Error(t, err)
}
