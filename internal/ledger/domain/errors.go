package domain

import "errors"

var (
	ErrInvalidEvent      = errors.New("invalid_event")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidRates      = errors.New("invalid_rates")
	ErrAccountNotFound   = errors.New("account_not_found")
	ErrPaymentNotFound   = errors.New("payment_not_found")
	ErrAlreadyProcessed  = errors.New("payment_already_processed")
	ErrInvalidTransition = errors.New("invalid_payment_transition")
	ErrCorrelationTaken  = errors.New("checkout_request_already_linked")
	ErrUserMismatch      = errors.New("payment_user_mismatch")
)
