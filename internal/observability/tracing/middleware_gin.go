package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/kilekitabu/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// untracedRoutes are probes that would drown real traffic in the sampler.
var untracedRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// GinMiddleware opens a server span per request. The span is renamed to the
// matched route after the handler runs and carries the caller resolved by
// the auth middleware and the payment provider a handler tagged.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("kilekitabu/http")
	return func(c *gin.Context) {
		if untracedRoutes[c.Request.URL.Path] {
			c.Next()
			return
		}

		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, spanName(c.Request.Method, ""), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		status := c.Writer.Status()
		span.SetName(spanName(c.Request.Method, route))

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", routeOrUnknown(route)),
			attribute.Int("http.status_code", status),
		}
		if actorType, _ := obscontext.ActorFromContext(c.Request.Context()); actorType != "" {
			attrs = append(attrs, attribute.String("kilekitabu.actor_type", actorType))
		}
		if provider := strings.TrimSpace(c.GetString("payment_provider")); provider != "" {
			attrs = append(attrs, attribute.String("payment.provider", provider))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func spanName(method, route string) string {
	name := "HTTP " + strings.ToUpper(method)
	if route != "" {
		name += " " + route
	}
	return name
}

func routeOrUnknown(route string) string {
	if strings.TrimSpace(route) == "" {
		return "unknown"
	}
	return route
}
