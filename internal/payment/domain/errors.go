package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEventIgnored     = errors.New("event_ignored")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_config")
	ErrInvalidPhone     = errors.New("invalid_phone_number")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidCurrency  = errors.New("unsupported_currency")
	ErrInvalidCard      = errors.New("invalid_card")
	ErrProviderDisabled = errors.New("provider_not_configured")
)

// ProviderError is a failed call to an upstream payment provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Body       map[string]any
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: provider returned %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
