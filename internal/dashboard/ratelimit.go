package dashboard

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a client's bucket is kept after its last request.
const limiterIdleTTL = 10 * time.Minute

// ipRateLimiter keeps one token bucket per client address. Buckets idle for
// longer than the TTL are evicted.
type ipRateLimiter struct {
	mu  sync.Mutex
	ips *cache.Cache
	r   rate.Limit
	b   int
}

func newIPRateLimiter(r rate.Limit, b int, ttl time.Duration) *ipRateLimiter {
	return &ipRateLimiter{ips: cache.New(ttl, 2*ttl), r: r, b: b}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	var lim *rate.Limiter
	if v, ok := l.ips.Get(ip); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(l.r, l.b)
	}
	// Refresh the expiry on every request.
	l.ips.SetDefault(ip, lim)
	return lim
}

// tracked returns the number of client buckets held, expired ones included
// until the next cleanup.
func (l *ipRateLimiter) tracked() int {
	return l.ips.ItemCount()
}

// middleware rejects requests over the limit with 429.
func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(clientIP(r)).Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware has
// already applied any forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
