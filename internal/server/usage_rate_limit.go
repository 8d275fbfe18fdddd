package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/kilekitabu/internal/observability/logger"
	"go.uber.org/zap"
)

const rateLimitReasonUserRate = "user-rate"

// UserRateLimit throttles metered endpoints per authenticated user. It must
// run after UserAuthRequired.
func (s *Server) UserRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		userID := userIDFromContext(c)
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		result := s.limiter.AllowUser(c.Request.Context(), endpoint, userID)
		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if !result.Allowed {
			denyUserRateLimit(c, endpoint, result.RetryAfter.Seconds())
			return
		}
		c.Next()
	}
}

func denyUserRateLimit(c *gin.Context, endpoint string, retryAfter float64) {
	logger.FromContext(c.Request.Context()).Warn("user rate limit exceeded",
		zap.String("reason", rateLimitReasonUserRate),
		zap.String("endpoint", endpoint),
	)

	seconds := int(retryAfter + 0.999)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.Header("X-Rate-Limited-Reason", rateLimitReasonUserRate)
	AbortWithError(c, ErrRateLimited)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
