package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/kilekitabu/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const headerRequestID = "X-Request-Id"

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug           bool
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware writes one "http_request" line per request. The request id is
// taken from X-Request-Id or minted, echoed back and stored on the context
// so service logs can be joined to the access line.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		route := strings.TrimSpace(c.FullPath())
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		ctx := c.Request.Context()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if actorType, actorID := obscontext.ActorFromContext(ctx); actorType != "" {
			fields = append(fields, zap.String("actor_type", actorType), zap.String("actor_id", actorID))
		}
		if provider := strings.TrimSpace(c.GetString("payment_provider")); provider != "" {
			fields = append(fields, zap.String("provider", provider))
		}

		var errorType string
		if lastErr := c.Errors.Last(); lastErr != nil {
			var errorCode string
			if cfg.ErrorClassifier != nil {
				errorType, errorCode = cfg.ErrorClassifier(lastErr.Err)
			}
			fields = append(fields,
				zap.String("error_type", errorType),
				zap.String("error_code", errorCode),
			)
			if cfg.Debug {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		if ce := FromContext(ctx).Check(requestLevel(route, status, errorType), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestIDFor(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
	if requestID == "" {
		requestID = strings.TrimSpace(c.GetString("request_id"))
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header(headerRequestID, requestID)
	return requestID
}

// quietRoutes are polled by probes or the app on every screen; their
// successes and client errors only matter when debugging.
var quietRoutes = map[string]bool{
	"/health":           true,
	"/metrics":          true,
	"/api/usage/record": true,
	"/api/user/credit":  true,
}

func requestLevel(route string, status int, errorType string) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zap.ErrorLevel
	case status == http.StatusTooManyRequests:
		return zap.WarnLevel
	case quietRoutes[route] && (status < http.StatusBadRequest || errorType == "validation_error"):
		return zap.DebugLevel
	default:
		return zap.InfoLevel
	}
}
