package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"sensor-fleet-server/internal/logger"
	"sensor-fleet-server/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DeviceRateLimiter holds one token bucket per device identity. The
// budget is a soft abuse guard, not a security boundary: counters are
// process-local and reset on restart.
type DeviceRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewDeviceRateLimiter creates a limiter allowing `burst` requests at
// once and a sustained `rps` refill per identity. The defaults
// (rps=1, burst=60) give 60 accepted requests per rolling minute.
func NewDeviceRateLimiter(rps float64, burst int) *DeviceRateLimiter {
	rl := &DeviceRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}

	go rl.cleanup()

	return rl
}

func (rl *DeviceRateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists = rl.limiters[key]
	if exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[key] = limiter
	return limiter
}

// cleanup removes idle limiters periodically to prevent unbounded
// growth across a churning device fleet.
func (rl *DeviceRateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for key, limiter := range rl.limiters {
			if limiter.Tokens() >= float64(rl.burst) {
				delete(rl.limiters, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware throttles by the device identifier peeked from the request
// body, falling back to the client IP when no identifier can be
// determined before authentication. Exceeding the budget fails fast
// before any registry or ingestion work runs.
func (rl *DeviceRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := deviceKey(c)

		if !rl.getLimiter(key).Allow() {
			logger.Warn("Rate limit exceeded",
				zap.String("request_id", GetRequestID(c)),
				zap.String("key", key),
				zap.String("path", c.Request.URL.Path),
			)

			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}

// deviceKey extracts the throttle identity. The body is read and
// restored so downstream binding still sees it; the request-size
// middleware bounds how much can be read here.
func deviceKey(c *gin.Context) string {
	if c.Request.Body != nil {
		body, err := io.ReadAll(c.Request.Body)
		c.Request.Body.Close()
		if err == nil {
			c.Request.Body = io.NopCloser(bytes.NewReader(body))

			var probe struct {
				DeviceID string `json:"device_id"`
			}
			if json.Unmarshal(body, &probe) == nil && probe.DeviceID != "" {
				return "device:" + probe.DeviceID
			}
		} else {
			c.Request.Body = io.NopCloser(bytes.NewReader(nil))
		}
	}

	if deviceID := c.Query("device_id"); deviceID != "" {
		return "device:" + deviceID
	}

	return "ip:" + c.ClientIP()
}
