package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"marketplace/pkg/log"
	"marketplace/pkg/utils"
)

// WindowLimiter a limiter shared across replicas
type WindowLimiter interface {
	Allow(ctx context.Context, key string) (bool, int, error)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiters token buckets per client IP. Buckets idle longer than ttl are
// dropped on the next sweep.
type ipLimiters struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	ttl      time.Duration
	lastGC   time.Time
	now      func() time.Time
}

func newIPLimiters(rps float64, burst int) *ipLimiters {
	return &ipLimiters{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

func (l *ipLimiters) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > l.ttl {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.ttl {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func reject(c *gin.Context, key string) {
	log.WithFields(map[string]interface{}{
		"key":    key,
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).Warn("Rate limit exceeded")

	c.Header("Retry-After", "1")
	utils.Error(c, utils.CodeRateLimit, "Too many requests")
}

// IPRateLimit per client IP token bucket, local to this process
func IPRateLimit(rps float64, burst int) gin.HandlerFunc {
	limiters := newIPLimiters(rps, burst)
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !limiters.allow(key) {
			reject(c, key)
			return
		}
		c.Next()
	}
}

// DistributedRateLimit per client IP sliding window shared through redis.
// When redis fails the request is let through.
func DistributedRateLimit(limiter WindowLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		ok, remaining, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.WithError(err).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			reject(c, key)
			return
		}
		c.Next()
	}
}
