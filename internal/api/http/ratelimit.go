// internal/api/http/ratelimit.go
package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	authmw "github.com/mind-engage/cityprosperity/internal/auth/middleware"
)

// SubmitLimiter holds one token bucket per subject.
type SubmitLimiter struct {
	mu      sync.Mutex
	perSec  rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

// NewSubmitLimiter returns nil when perSec is zero, which disables limiting.
func NewSubmitLimiter(perSec float64, burst int) *SubmitLimiter {
	if perSec <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &SubmitLimiter{perSec: rate.Limit(perSec), burst: burst, buckets: map[string]*rate.Limiter{}}
}

func (l *SubmitLimiter) limiter(sub string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.buckets[sub]
	if !ok {
		lim = rate.NewLimiter(l.perSec, l.burst)
		l.buckets[sub] = lim
	}
	return lim
}

// Middleware answers 429 with Retry-After once a subject's bucket is empty.
func (l *SubmitLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := l.limiter(authmw.SubjectFromContext(r.Context())).Reserve()
		if d := res.Delay(); d > 0 {
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(d/time.Second)+1))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many submissions"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
