package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

const defaultIdleTimeout = 10 * time.Minute

// clientLimiter is the token bucket of one client
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client token bucket to incoming requests
type RateLimiter struct {
	logger      *logrus.Logger
	limit       rate.Limit
	burst       int
	idleTimeout time.Duration

	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// client with the given burst. A non-positive rps disables limiting.
func NewRateLimiter(logger *logrus.Logger, rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		logger:      logger,
		limit:       rate.Limit(rps),
		burst:       burst,
		idleTimeout: defaultIdleTimeout,
		clients:     make(map[string]*clientLimiter),
		now:         time.Now,
	}
}

// Allow reports whether the client may issue another request now
func (rl *RateLimiter) Allow(clientID string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	now := rl.now()
	client, ok := rl.clients[clientID]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientID] = client
	}
	client.lastSeen = now
	rl.mu.Unlock()

	return client.limiter.AllowN(now, 1)
}

// Cleanup forgets clients idle for longer than the idle timeout and returns
// how many were removed
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTimeout)
	removed := 0
	for id, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

// Run removes idle clients every interval until ctx is done
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := rl.Cleanup(); removed > 0 {
				rl.logger.WithField("removed", removed).Debug("Removed idle rate limit clients")
			}
		}
	}
}

// Middleware rejects requests over the limit with 429 and an API error body
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.ClientIP()
		if rl.Allow(clientID) {
			c.Next()
			return
		}

		rl.logger.WithFields(logrus.Fields{
			"client_ip":      clientID,
			"correlation_id": c.GetString(CorrelationIDKey),
		}).Warn("Request denied: rate limit exceeded")

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, domain.NewAPIError(
			domain.ErrCodeRateLimit,
			"Too many requests",
			"",
			c.GetString(CorrelationIDKey),
		))
	}
}
