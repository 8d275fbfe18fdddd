package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/kilekitabu/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
	usagedomain "github.com/smallbiznis/kilekitabu/internal/usage/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type     string            `json:"type"`
	Message  string            `json:"message"`
	Provider string            `json:"provider,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
	ErrDeliveryFailed     = errors.New("notification_delivery_failed")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var providerErr *paymentdomain.ProviderError
	if errors.As(err, &providerErr) {
		return http.StatusBadGateway, errorPayload{
			Type:     "provider_error",
			Message:  providerErr.Message,
			Provider: providerErr.Provider,
		}
	}

	for _, class := range errorClasses {
		if class.match(err) {
			message := class.message
			if class.typ == "not_found" {
				message = notFoundMessage(err)
			}
			return class.status, errorPayload{Type: class.typ, Message: message}
		}
	}
	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// errorClass maps a family of sentinel errors onto one HTTP response.
type errorClass struct {
	status  int
	typ     string
	message string
	errs    []error
}

func (c errorClass) match(err error) bool {
	for _, target := range c.errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// errorClasses is checked in order; the first match wins.
var errorClasses = []errorClass{
	{http.StatusUnauthorized, "unauthorized", "unauthorized", []error{
		ErrUnauthorized,
		paymentdomain.ErrInvalidSignature,
	}},
	{http.StatusForbidden, "forbidden", "forbidden", []error{
		ErrForbidden,
		ledgerdomain.ErrUserMismatch,
	}},
	{http.StatusConflict, "conflict", "conflict", []error{
		ErrConflict,
		ledgerdomain.ErrCorrelationTaken,
		ledgerdomain.ErrInvalidTransition,
	}},
	{http.StatusNotFound, "not_found", "not found", []error{
		ErrNotFound,
		ledgerdomain.ErrPaymentNotFound,
		ledgerdomain.ErrAccountNotFound,
		notificationdomain.ErrTokenNotFound,
		paymentdomain.ErrProviderNotFound,
		gorm.ErrRecordNotFound,
	}},
	{http.StatusTooManyRequests, "rate_limited", "too many requests", []error{ErrRateLimited}},
	{http.StatusServiceUnavailable, "service_unavailable", "payment provider not configured", []error{
		paymentdomain.ErrProviderDisabled,
	}},
	{http.StatusServiceUnavailable, "service_unavailable", "service unavailable", []error{ErrServiceUnavailable}},
	{http.StatusInternalServerError, "delivery_failed", "failed to send notification", []error{ErrDeliveryFailed}},
}

var validationErrs = []error{
	ErrInvalidRequest,
	ledgerdomain.ErrInvalidAmount,
	ledgerdomain.ErrInvalidCurrency,
	ledgerdomain.ErrInvalidUser,
	ledgerdomain.ErrInvalidEvent,
	usagedomain.ErrInvalidUser,
	usagedomain.ErrInvalidAction,
	paymentdomain.ErrInvalidPhone,
	paymentdomain.ErrInvalidAmount,
	paymentdomain.ErrInvalidEmail,
	paymentdomain.ErrInvalidCurrency,
	paymentdomain.ErrInvalidPayload,
	paymentdomain.ErrInvalidProvider,
	paymentdomain.ErrInvalidEvent,
	paymentdomain.ErrInvalidCard,
	notificationdomain.ErrInvalidUser,
	notificationdomain.ErrInvalidToken,
	notificationdomain.ErrInvalidTitle,
}

// classifyErrorForLog returns the error type and code logged per request.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func isValidationError(err error) bool {
	return errorClass{errs: validationErrs}.match(err)
}

func notFoundMessage(err error) string {
	if errors.Is(err, notificationdomain.ErrTokenNotFound) {
		return "FCM token not found for user"
	}
	return "not found"
}

// validationErrorCode is the sentinel's text; domain errors are named by code.
func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch {
	case code == "invalid_request":
		return "request"
	case code == "unsupported_currency":
		return "currency"
	default:
		field, _ := strings.CutPrefix(code, "invalid_")
		if field == code {
			return ""
		}
		return field
	}
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_phone_number":
		return "Invalid phone number. Must start with +254, 254, 07, or 01"
	case "unsupported_currency":
		return "unsupported currency"
	case "invalid_amount":
		return "amount is outside the allowed range"
	case "invalid_card":
		return "invalid card details"
	default:
		return "invalid value"
	}
}
