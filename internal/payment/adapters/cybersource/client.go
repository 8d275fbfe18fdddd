package cybersource

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/kilekitabu/internal/ledger/currency"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

const (
	ProviderName = "cybersource"

	paymentsPath       = "/pts/v2/payments"
	captureContextPath = "/up/v1/capture-contexts"

	StatusAuthorized = "AUTHORIZED"
	StatusCaptured   = "CAPTURED"

	PaymentTypeCard      = "CARD"
	PaymentTypeGooglePay = "GOOGLEPAY"
)

type ClientConfig struct {
	MerchantID string
	KeyID      string
	// SecretKey is the base64 shared secret issued with KeyID.
	SecretKey string
	// Host is the run environment, e.g. apitest.cybersource.com.
	Host string
	// ChargeAmountWorkaround sends 2.00 as 2.01.
	ChargeAmountWorkaround bool
	// BaseURL overrides https://<Host>.
	BaseURL string
}

// PaymentRequest charges a Unified Checkout transient token.
type PaymentRequest struct {
	TransientToken string
	Amount         float64
	Currency       string
	ReferenceCode  string
	PaymentType    string
}

// PaymentResponse keeps the fields used for crediting plus the full body.
type PaymentResponse struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Raw    map[string]any `json:"-"`
}

func (r PaymentResponse) Approved() bool {
	return r.Status == StatusAuthorized || r.Status == StatusCaptured
}

type Client struct {
	cfg    ClientConfig
	client *http.Client
	now    func() time.Time
}

func NewClient(cfg ClientConfig) *Client {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		cfg.Host = "apitest.cybersource.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.Host
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.cfg.MerchantID != "" && c.cfg.KeyID != "" && c.cfg.SecretKey != ""
}

// CaptureContext returns the JWT the Unified Checkout widget is loaded with.
func (c *Client) CaptureContext(ctx context.Context, req paymentdomain.CaptureContextRequest) (string, error) {
	if len(req.AllowedPaymentTypes) == 0 {
		req.AllowedPaymentTypes = []string{"PANENTRY", PaymentTypeGooglePay}
	}
	for i, t := range req.AllowedPaymentTypes {
		if t == PaymentTypeCard {
			req.AllowedPaymentTypes[i] = "PANENTRY"
		}
	}
	if len(req.AllowedCardNetworks) == 0 {
		req.AllowedCardNetworks = []string{"VISA", "MASTERCARD", "AMEX"}
	}
	origins := make([]string, 0, len(req.TargetOrigins))
	for _, origin := range req.TargetOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	body := map[string]any{
		"clientVersion":       "0.31",
		"targetOrigins":       origins,
		"allowedCardNetworks": req.AllowedCardNetworks,
		"allowedPaymentTypes": req.AllowedPaymentTypes,
		"country":             defaultString(req.Country, "KE"),
		"locale":              defaultString(req.Locale, "en_KE"),
		"captureMandate": map[string]any{
			"billingType":              "FULL",
			"requestEmail":             true,
			"requestPhone":             false,
			"showAcceptedNetworkIcons": true,
		},
	}
	if req.Amount != "" && req.Currency != "" {
		body["orderInformation"] = map[string]any{
			"amountDetails": map[string]any{
				"totalAmount": req.Amount,
				"currency":    strings.ToUpper(req.Currency),
			},
		}
	}

	raw, status, err := c.post(ctx, captureContextPath, body)
	if err != nil {
		return "", err
	}
	if status >= http.StatusBadRequest {
		return "", providerError(status, raw)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Pay authorizes and captures a transient token in one step.
func (c *Client) Pay(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if strings.TrimSpace(req.TransientToken) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}
	processing := map[string]any{"capture": true}
	if strings.EqualFold(req.PaymentType, PaymentTypeGooglePay) {
		processing["paymentSolution"] = "012"
	} else {
		processing["commerceIndicator"] = "internet"
	}
	reference := strings.TrimSpace(req.ReferenceCode)
	if reference == "" {
		reference = "UC_" + strconv.FormatInt(c.now().UnixMilli(), 10)
	}
	body := map[string]any{
		"clientReferenceInformation": map[string]any{"code": reference},
		"processingInformation":      processing,
		"tokenInformation":           map[string]any{"transientTokenJwt": req.TransientToken},
		"orderInformation": map[string]any{
			"amountDetails": map[string]any{
				"totalAmount": currency.ChargeAmount(req.Amount, c.cfg.ChargeAmountWorkaround),
				"currency":    strings.ToUpper(strings.TrimSpace(req.Currency)),
			},
		},
	}

	raw, status, err := c.post(ctx, paymentsPath, body)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return nil, providerError(status, raw)
	}
	var out PaymentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &paymentdomain.ProviderError{Provider: ProviderName, StatusCode: status, Message: "decode payment response"}
	}
	_ = json.Unmarshal(raw, &out.Raw)
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, int, error) {
	if !c.Enabled() {
		return nil, 0, paymentdomain.ErrProviderDisabled
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	headers, err := c.SignHeaders(http.MethodPost, path, payload, c.now())
	if err != nil {
		return nil, 0, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	req.Host = c.cfg.Host
	req.Header.Set("Content-Type", "application/json;charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, &paymentdomain.ProviderError{Provider: ProviderName, Message: err.Error()}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

// SignHeaders builds the HTTP Signature headers for a request.
func (c *Client) SignHeaders(method, path string, body []byte, at time.Time) (map[string]string, error) {
	secret, err := base64.StdEncoding.DecodeString(c.cfg.SecretKey)
	if err != nil {
		return nil, paymentdomain.ErrInvalidConfig
	}

	date := at.UTC().Format(http.TimeFormat)
	sum := sha256.Sum256(body)
	digest := "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
	signed := strings.Join([]string{
		"host: " + c.cfg.Host,
		"date: " + date,
		"request-target: " + strings.ToLower(method) + " " + path,
		"digest: " + digest,
		"v-c-merchant-id: " + c.cfg.MerchantID,
	}, "\n")

	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(signed))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	header := `keyid="` + c.cfg.KeyID + `", algorithm="HmacSHA256", ` +
		`headers="host date request-target digest v-c-merchant-id", signature="` + signature + `"`

	return map[string]string{
		"v-c-merchant-id": c.cfg.MerchantID,
		"Date":            date,
		"Digest":          digest,
		"Signature":       header,
	}, nil
}

func providerError(status int, raw []byte) error {
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	message, _ := body["message"].(string)
	if message == "" {
		message = http.StatusText(status)
	}
	return &paymentdomain.ProviderError{Provider: ProviderName, StatusCode: status, Message: message, Body: body}
}

func defaultString(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}
