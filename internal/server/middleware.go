package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client key.
type RateLimiter struct {
	mu        sync.Mutex
	limits    map[string]*clientLimiter
	rps       rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// key with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limits:    make(map[string]*clientLimiter),
		rps:       rate.Limit(rps),
		burst:     burst,
		idleTTL:   5 * time.Minute,
		lastSweep: time.Now(),
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > rl.idleTTL {
		for k, cl := range rl.limits {
			if now.Sub(cl.lastSeen) > rl.idleTTL {
				delete(rl.limits, k)
			}
		}
		rl.lastSweep = now
	}

	if cl, ok := rl.limits[key]; ok {
		cl.lastSeen = now
		return cl.limiter
	}

	cl := &clientLimiter{
		limiter:  rate.NewLimiter(rl.rps, rl.burst),
		lastSeen: now,
	}
	rl.limits[key] = cl
	return cl.limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				return errorJSON(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// bearerAuth accepts requests carrying "Authorization: Bearer <key>" for
// one of keys. With no keys configured every request passes.
func bearerAuth(keys []string) echo.MiddlewareFunc {
	if len(keys) == 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	secrets := make([][]byte, len(keys))
	for i, k := range keys {
		secrets[i] = []byte(k)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, token, ok := strings.Cut(header, " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="chifron"`)
				return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or malformed bearer token")
			}

			// No early exit: every key is compared.
			presented := []byte(token)
			match := 0
			for _, s := range secrets {
				match |= subtle.ConstantTimeCompare(presented, s)
			}
			if match != 1 {
				log.Warn("Rejected access key", "ip", c.RealIP(), "path", c.Path())
				return errorJSON(c, http.StatusForbidden, "FORBIDDEN", "invalid access key")
			}
			return next(c)
		}
	}
}

// requestLogger logs each request through charmbracelet/log.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"ip", v.RemoteIP,
			}
			switch {
			case v.Status >= http.StatusInternalServerError:
				log.Error("Request", append(fields, "err", v.Error)...)
			case v.Status >= http.StatusBadRequest:
				log.Warn("Request", fields...)
			default:
				log.Info("Request", fields...)
			}
			return nil
		},
	})
}
