package dashboard

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRateLimiterPerClient(t *testing.T) {
	l := newIPRateLimiter(rate.Every(time.Hour), 1, time.Minute)
	h := l.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/config", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1001"), "same host, other port")
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"))
	assert.Equal(t, 2, l.tracked())
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	l := newIPRateLimiter(rate.Every(time.Hour), 1, 50*time.Millisecond)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		assert.True(t, l.get(ip).Allow())
	}
	assert.False(t, l.get("10.0.0.1").Allow())
	assert.Equal(t, 3, l.tracked())

	time.Sleep(120 * time.Millisecond)
	l.ips.DeleteExpired()
	assert.Equal(t, 0, l.tracked())
	assert.True(t, l.get("10.0.0.1").Allow(), "evicted client starts with a fresh bucket")
}
