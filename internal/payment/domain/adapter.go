package domain

import (
	"context"
	"net/http"

	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
)

// AdapterConfig carries the provider credentials an adapter needs.
type AdapterConfig struct {
	Provider string
	Config   map[string]any
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

// PaymentAdapter verifies and normalizes one provider's webhook payloads.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*ledgerdomain.PaymentEvent, error)
}
