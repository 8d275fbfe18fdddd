package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGinMiddlewareLogsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		ErrorClassifier: func(error) (string, string) { return "upstream_error", "mpesa_down" },
	}))
	r.POST("/api/mpesa/initiate", func(c *gin.Context) {
		c.Set("payment_provider", "mpesa")
		_ = c.Error(errors.New("daraja unavailable"))
		c.Status(http.StatusBadGateway)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/mpesa/initiate", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("echoed request id = %q", got)
	}
	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 access line, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.ErrorLevel {
		t.Fatalf("level = %s, want error", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["request_id"] != "req-42" || fields["provider"] != "mpesa" || fields["error_code"] != "mpesa_down" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["route"] != "/api/mpesa/initiate" {
		t.Fatalf("route = %v", fields["route"])
	}
}

func TestGinMiddlewareMintsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a minted request id")
	}
}

func TestRequestLevel(t *testing.T) {
	cases := []struct {
		route     string
		status    int
		errorType string
		want      zapcore.Level
	}{
		{"/api/usage/record", http.StatusInternalServerError, "", zapcore.ErrorLevel},
		{"/api/usage/record", http.StatusTooManyRequests, "rate_limited", zapcore.WarnLevel},
		{"/api/usage/record", http.StatusBadRequest, "validation_error", zapcore.DebugLevel},
		{"/api/usage/record", http.StatusPaymentRequired, "insufficient_credits", zapcore.InfoLevel},
		{"/health", http.StatusOK, "", zapcore.DebugLevel},
		{"/api/mpesa/callback", http.StatusOK, "", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		if got := requestLevel(tc.route, tc.status, tc.errorType); got != tc.want {
			t.Fatalf("requestLevel(%s, %d, %s) = %s, want %s", tc.route, tc.status, tc.errorType, got, tc.want)
		}
	}
}
