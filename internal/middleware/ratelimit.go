package middleware

import (
	"math"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/ratelimit"
)

// RateLimit throttles a route per client address before the handler runs.
// Keys have the form <prefix>:auth:<scope>:<ip>. A rejected request gets a
// Retry-After header and apperr.ErrRateLimited. When the limiter itself
// fails the request is let through and the failure logged.
func RateLimit(l ratelimit.Limiter, prefix, scope string, log *zap.Logger) echo.MiddlewareFunc {
	if l == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(prefix, scope, c.RealIP())
			res, err := l.Allow(c.Request().Context(), key)
			if err != nil {
				log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				secs := int(math.Ceil(res.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				log.Info("rate limited", zap.String("key", key), zap.Int("retry_after", secs))
				return apperr.ErrRateLimited
			}
			return next(c)
		}
	}
}

func rateKey(prefix, scope, ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return strings.Join([]string{prefix, "auth", scope, ip}, ":")
}
