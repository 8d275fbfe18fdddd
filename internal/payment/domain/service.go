package domain

import (
	"context"
	"net/http"
)

type WebhookService interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

// InitiateResult is returned to the app after an STK push was accepted.
type InitiateResult struct {
	PaymentID         string         `json:"payment_id"`
	Status            string         `json:"status"`
	CreditDays        int64          `json:"credit_days"`
	CheckoutRequestID string         `json:"checkout_request_id,omitempty"`
	CustomerMessage   string         `json:"customer_message,omitempty"`
	Provider          map[string]any `json:"mpesa,omitempty"`
}

// CallbackResult is the body acknowledged back to the M-Pesa gateway.
type CallbackResult struct {
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ResultCode *int   `json:"result_code,omitempty"`
	ResultDesc string `json:"result_desc,omitempty"`
}

type MpesaService interface {
	Initiate(ctx context.Context, userID, phone string, amount float64) (*InitiateResult, error)
	HandleCallback(ctx context.Context, payload []byte) CallbackResult
}

type InitializeRequest struct {
	UserID    string
	Email     string
	Amount    float64
	Currency  string
	Reference string
}

type InitializeResult struct {
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

type VerifyResult struct {
	Reference   string         `json:"reference"`
	Status      string         `json:"status"`
	Credited    bool           `json:"credited"`
	Duplicate   bool           `json:"duplicate"`
	CreditDays  int64          `json:"credit_days"`
	NewBalance  int64          `json:"new_balance"`
	Transaction map[string]any `json:"transaction"`
}

// CardDetails are raw card fields forwarded to Paystack's direct charge.
// They are never persisted or logged beyond the last four digits.
type CardDetails struct {
	Number          string `json:"number"`
	CVV             string `json:"cvv"`
	ExpirationMonth string `json:"expirationMonth"`
	ExpirationYear  string `json:"expirationYear"`
}

type CardChargeRequest struct {
	UserID    string
	Email     string
	Amount    float64
	Currency  string
	Reference string
	Card      CardDetails
}

// SubmitChargeRequest answers the PIN, OTP or phone prompt of a pending charge.
type SubmitChargeRequest struct {
	UserID    string
	Reference string
	Step      string
	Value     string
}

// Direct charge statuses returned to the app.
const (
	ChargeStatusPINRequired   = "pin_required"
	ChargeStatusOTPRequired   = "otp_required"
	ChargeStatusPhoneRequired = "phone_required"
	ChargeStatusCompleted     = "completed"
	ChargeStatusFailed        = "failed"
)

type CardChargeResult struct {
	Status        string        `json:"status"`
	Reference     string        `json:"reference"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Message       string        `json:"message,omitempty"`
	Credit        *CreditResult `json:"credit,omitempty"`
}

type PaystackService interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, userID, reference string) (*VerifyResult, error)
	ChargeCard(ctx context.Context, req CardChargeRequest) (*CardChargeResult, error)
	SubmitCharge(ctx context.Context, req SubmitChargeRequest) (*CardChargeResult, error)
}

type CaptureContextRequest struct {
	TargetOrigins       []string `json:"targetOrigins"`
	AllowedPaymentTypes []string `json:"allowedPaymentTypes"`
	AllowedCardNetworks []string `json:"allowedCardNetworks"`
	Country             string   `json:"country"`
	Locale              string   `json:"locale"`
	Amount              string   `json:"amount"`
	Currency            string   `json:"currency"`
}

type ChargeRequest struct {
	UserID         string
	TransientToken string
	Amount         float64
	Currency       string
	ReferenceCode  string
	PaymentType    string
}

type AddCreditsRequest struct {
	UserID        string
	Amount        float64
	Currency      string
	TransactionID string
	ReferenceCode string
}

type CreditResult struct {
	PaymentID        string `json:"payment_id"`
	TransactionID    string `json:"transaction_id"`
	Status           string `json:"status"`
	CreditDays       int64  `json:"credit_days"`
	NewCreditBalance int64  `json:"new_credit_balance"`
	Duplicate        bool   `json:"duplicate"`
}

type CardService interface {
	CaptureContext(ctx context.Context, req CaptureContextRequest) (string, error)
	Charge(ctx context.Context, req ChargeRequest) (*CreditResult, map[string]any, error)
	AddCredits(ctx context.Context, req AddCreditsRequest) (*CreditResult, error)
}
