package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

const DefaultBaseURL = "https://api.paystack.co"

// Transaction is the subset of a Paystack transaction the ledger reads.
// DisplayText is the prompt Paystack wants shown while a direct charge waits
// on the customer.
type Transaction struct {
	ID              json.Number     `json:"id"`
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	PaidAt          string          `json:"paid_at"`
	Channel         string          `json:"channel"`
	Metadata        json.RawMessage `json:"metadata"`
	DisplayText     string          `json:"display_text"`
	GatewayResponse string          `json:"gateway_response"`
	Raw             map[string]any  `json:"-"`
}

// Card is sent to /charge as-is and never stored or logged.
type Card struct {
	Number      string `json:"number"`
	CVV         string `json:"cvv"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
}

type ChargeParams struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	Card        Card
	Metadata    map[string]any
}

// Charge steps a pending card charge can ask for.
const (
	StepPIN   = "pin"
	StepOTP   = "otp"
	StepPhone = "phone"
)

var submitPaths = map[string]string{
	StepPIN:   "/charge/submit_pin",
	StepOTP:   "/charge/submit_otp",
	StepPhone: "/charge/submit_phone",
}

type InitializeParams struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	Metadata    map[string]any
}

type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewClient(secretKey, baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		secretKey: strings.TrimSpace(secretKey),
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.secretKey != ""
}

func (c *Client) InitializeTransaction(ctx context.Context, params InitializeParams) (*Authorization, error) {
	body := map[string]any{
		"email":     strings.TrimSpace(params.Email),
		"amount":    params.AmountMinor,
		"currency":  strings.ToUpper(strings.TrimSpace(params.Currency)),
		"reference": params.Reference,
	}
	if len(params.Metadata) > 0 {
		body["metadata"] = params.Metadata
	}

	data, err := c.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	var auth Authorization
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, &paymentdomain.ProviderError{Provider: ProviderName, Message: "decode initialize response"}
	}
	return &auth, nil
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	data, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, &paymentdomain.ProviderError{Provider: ProviderName, Message: "decode verify response"}
	}
	_ = json.Unmarshal(data, &tx.Raw)
	return &tx, nil
}

// Charge debits a card directly. The returned status is either final
// ("success", "failed") or names the next step ("send_pin", "send_otp",
// "send_phone").
func (c *Client) Charge(ctx context.Context, params ChargeParams) (*Transaction, error) {
	body := map[string]any{
		"email":     strings.TrimSpace(params.Email),
		"amount":    params.AmountMinor,
		"currency":  strings.ToUpper(strings.TrimSpace(params.Currency)),
		"reference": params.Reference,
		"card":      params.Card,
	}
	if len(params.Metadata) > 0 {
		body["metadata"] = params.Metadata
	}
	return c.transaction(ctx, "/charge", body, "decode charge response")
}

// SubmitChargeStep answers a send_pin, send_otp or send_phone status.
func (c *Client) SubmitChargeStep(ctx context.Context, step, reference, value string) (*Transaction, error) {
	path, ok := submitPaths[step]
	if !ok {
		return nil, paymentdomain.ErrInvalidPayload
	}
	return c.transaction(ctx, path, map[string]any{
		step:        value,
		"reference": strings.TrimSpace(reference),
	}, "decode submit_"+step+" response")
}

func (c *Client) transaction(ctx context.Context, path string, body any, decodeMsg string) (*Transaction, error) {
	data, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, &paymentdomain.ProviderError{Provider: ProviderName, Message: decodeMsg}
	}
	_ = json.Unmarshal(data, &tx.Raw)
	return &tx, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if !c.Enabled() {
		return nil, paymentdomain.ErrProviderDisabled
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &paymentdomain.ProviderError{Provider: ProviderName, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode >= http.StatusBadRequest || decodeErr != nil || !env.Status {
		message := strings.TrimSpace(env.Message)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &paymentdomain.ProviderError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}
	return env.Data, nil
}
