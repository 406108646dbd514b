package ratelim

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

func TestLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Stop()

	h := rl.Limit(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	})
	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/search/foods/egg", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h(rec, req, nil)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:5678"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1234"))

	// a different client has its own bucket
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1234"))
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	rl.Stop()
	rl.Stop()
}
