package context

import (
	"context"
	"testing"
)

func TestCorrelationValues(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithActor(ctx, "provider", "mpesa")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected trimmed request id, got %q", got)
	}
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Fatalf("unexpected user id %q", got)
	}
	actorType, actorID := ActorFromContext(ctx)
	if actorType != "provider" || actorID != "mpesa" {
		t.Fatalf("unexpected actor %s/%s", actorType, actorID)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}
