// Package middleware provides HTTP middleware for the change log API.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/persistorai/changelog/internal/httputil"
)

// maxBuckets bounds the number of tracked clients.
const maxBuckets = 100_000

// bucketMaxAge is how long an idle limiter is kept.
const bucketMaxAge = 10 * time.Minute

// RateLimiter is a token bucket limiter keyed by the authenticated principal,
// or by client IP for anonymous requests.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rate     rate.Limit
	burst    int
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter creates a RateLimiter allowing ratePerSec requests per
// client with the given burst. Idle limiters are evicted until ctx is done.
func NewRateLimiter(ctx context.Context, ratePerSec, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(ratePerSec),
		burst:    burst,
	}
	go rl.evict(ctx)

	return rl
}

func (rl *RateLimiter) evict(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, cl := range rl.limiters {
				if now.Sub(cl.lastAccess) > bucketMaxAge {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// allow takes a token from key's limiter. When the bucket is empty it
// returns how long until a token is available; when a new client cannot be
// tracked the wait is zero.
func (rl *RateLimiter) allow(key string, now time.Time) (ok bool, wait time.Duration) {
	rl.mu.Lock()
	cl, found := rl.limiters[key]
	if !found {
		if len(rl.limiters) >= maxBuckets {
			rl.mu.Unlock()
			return false, 0
		}

		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastAccess = now
	rl.mu.Unlock()

	r := cl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if wait = r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}

	return true, 0
}

// Handler returns Gin middleware applying the limit. It must run after
// AuthMiddleware to key by principal.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(PrincipalKey)
		if key == "" {
			// SetTrustedProxies(nil) keeps ClientIP from trusting forwarded headers.
			key = "ip:" + c.ClientIP()
		}

		ok, wait := rl.allow(key, time.Now())
		switch {
		case ok:
			c.Next()
		case wait > 0:
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			httputil.RespondError(c, http.StatusTooManyRequests, httputil.CodeRateLimited, "rate limit exceeded")
		default:
			httputil.RespondError(c, http.StatusTooManyRequests, httputil.CodeRateLimited, "too many clients")
		}
	}
}
