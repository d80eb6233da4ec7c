package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yigit/slotbook/internal/app/models/dto"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds the limit applied to each client IP
type RateLimiterConfig struct {
	// RequestsPerMinute is the sustained rate
	RequestsPerMinute int
	Burst             int
	// CleanupInterval is how often idle clients are forgotten
	CleanupInterval time.Duration
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	name   string
	limit  rate.Limit
	burst  int
	ttl    time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine. Stop
// must be called on shutdown.
func NewRateLimiter(name string, config RateLimiterConfig, logger zerolog.Logger) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		name:    name,
		limit:   rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		burst:   config.Burst,
		ttl:     config.CleanupInterval * 2,
		logger:  logger,
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop(config.CleanupInterval)

	return rl
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if rl.getLimiter(ip).Allow() {
			c.Next()
			return
		}

		rl.logger.Warn().
			Str("clientIP", ip).
			Str("limit", rl.name).
			Msg("Rate limit exceeded")

		c.Header("Retry-After", strconv.Itoa(rl.retryAfterSeconds()))
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeTooManyRequests, "Too many requests, please try again later").
			WithSeverity(dto.ErrorSeverityWarning)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(errorDetail))
	}
}

// ClientCount returns the number of tracked clients
func (rl *RateLimiter) ClientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cl, ok := rl.clients[ip]; ok {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients[ip] = &clientLimiter{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

// retryAfterSeconds estimates the time until one token is refilled
func (rl *RateLimiter) retryAfterSeconds() int {
	if rl.limit <= 0 {
		return 60
	}
	seconds := int(math.Ceil(1.0 / float64(rl.limit)))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup forgets clients idle for longer than twice the cleanup interval
func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, cl := range rl.clients {
		if now.Sub(cl.lastAccess) > rl.ttl {
			delete(rl.clients, ip)
		}
	}
}
