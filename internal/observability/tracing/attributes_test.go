package tracing

import (
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/mpesa/initiate"),
		attribute.String("phone_number", "254712345678"),
		attribute.String("User_ID", "abc"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
}

func TestSafeErrorTruncates(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("expected nil")
	}
	long := errors.New(strings.Repeat("x", 400))
	if got := SafeError(long).Error(); len(got) != maxErrorLength {
		t.Fatalf("expected truncated message, got %d chars", len(got))
	}
}
