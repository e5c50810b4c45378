package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limitedGet(t *testing.T, h http.Handler, remoteAddr string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitUnderLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		rec := limitedGet(t, h, "192.168.1.1:12345", nil)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimitOverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		rec := limitedGet(t, h, "10.0.0.1:9999", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := limitedGet(t, h, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body["code"])
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, limitedGet(t, h, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, limitedGet(t, h, "10.0.0.2:1234", nil).Code)
	// Port changes do not change the key.
	assert.Equal(t, http.StatusTooManyRequests, limitedGet(t, h, "10.0.0.1:5678", nil).Code)
}

func TestRateLimitCustomKeyFunc(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("api_key")
		},
	})(okHandler())

	keyA := http.Header{"Api_key": {"key-a"}}
	keyB := http.Header{"Api_key": {"key-b"}}

	assert.Equal(t, http.StatusOK, limitedGet(t, h, "1.1.1.1:1", keyA).Code)
	assert.Equal(t, http.StatusTooManyRequests, limitedGet(t, h, "2.2.2.2:2", keyA).Code)
	assert.Equal(t, http.StatusOK, limitedGet(t, h, "1.1.1.1:1", keyB).Code)
}

func TestRateLimitXForwardedFor(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	fwd := http.Header{"X-Forwarded-For": {"203.0.113.50, 70.41.3.18"}}
	assert.Equal(t, http.StatusOK, limitedGet(t, h, "192.168.1.1:4444", fwd).Code)
	// Same forwarded client from a different proxy address is still limited.
	assert.Equal(t, http.StatusTooManyRequests, limitedGet(t, h, "192.168.1.2:5555", fwd).Code)
}
