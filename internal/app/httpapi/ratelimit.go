package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"

	"github.com/hangarlink/market_layer/pkg/logger"
)

// rateLimiter throttles requests per caller. Keys are user ids when the
// caller is identified, remote addresses otherwise.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

func newRateLimiter(requestsPerSecond, burst int, log *logger.Logger) *rateLimiter {
	if burst <= 0 {
		burst = requestsPerSecond
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		log:      log,
	}
}

func (rl *rateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Bound memory under key churn; per-key fairness resets, which is
	// acceptable at this threshold.
	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if userID, _, err := identityFrom(r); err == nil {
			key = strconv.FormatInt(userID, 10)
		}
		if !rl.limiterFor(key).Allow() {
			rl.log.WithFields(map[string]interface{}{
				"key":    key,
				"path":   r.URL.Path,
				"method": r.Method,
			}).Warn("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
