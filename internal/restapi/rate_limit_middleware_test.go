package restapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("limits each client separately", func(t *testing.T) {
		rl := NewRateLimitMiddleware(2, time.Minute)
		defer rl.Stop()
		handler := rl.Handler(ok)

		request := func(addr string) *httptest.ResponseRecorder {
			req := httptest.NewRequest("GET", "/status", nil)
			req.RemoteAddr = addr
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			return rec
		}

		assert.Equal(t, http.StatusOK, request("10.0.0.5:50000").Code)
		assert.Equal(t, http.StatusOK, request("10.0.0.5:50001").Code)

		limited := request("10.0.0.5:50002")
		assert.Equal(t, http.StatusTooManyRequests, limited.Code)
		assert.Equal(t, "30", limited.Header().Get("Retry-After"))
		assert.Equal(t, "0", limited.Header().Get("X-RateLimit-Remaining"))
		assert.Contains(t, limited.Body.String(), `"text":"rate limit exceeded"`)

		assert.Equal(t, http.StatusOK, request("10.0.0.6:40000").Code)
	})

	t.Run("non-positive rate disables limiting", func(t *testing.T) {
		rl := NewRateLimitMiddleware(-1, time.Second)
		defer rl.Stop()
		handler := rl.Handler(ok)

		for i := 0; i < 50; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		rl := NewRateLimitMiddleware(1, time.Second)
		rl.Stop()
		rl.Stop()
	})
}
