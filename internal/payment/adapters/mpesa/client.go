package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

const (
	ProviderName      = "mpesa"
	transactionType   = "CustomerBuyGoodsOnline"
	maxAccountRefLen  = 12
	maxDescriptionLen = 20
	timestampLayout   = "20060102150405"
)

type ClientConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	TillNumber     string
	Passkey        string
	CallbackURL    string
	// Sandbox sends numeric fields as strings, which the sandbox expects.
	Sandbox bool
}

// STKPushResponse is Daraja's acknowledgement of a push request.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

func (r STKPushResponse) Map() map[string]any {
	return map[string]any{
		"MerchantRequestID":   r.MerchantRequestID,
		"CheckoutRequestID":   r.CheckoutRequestID,
		"ResponseCode":        r.ResponseCode,
		"ResponseDescription": r.ResponseDescription,
		"CustomerMessage":     r.CustomerMessage,
	}
}

type Client struct {
	cfg    ClientConfig
	client *http.Client
	now    func() time.Time
}

func NewClient(cfg ClientConfig) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.TillNumber == "" {
		cfg.TillNumber = cfg.ShortCode
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.cfg.ConsumerKey != "" && c.cfg.ConsumerSecret != "" &&
		c.cfg.ShortCode != "" && c.cfg.Passkey != ""
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if !c.Enabled() {
		return "", paymentdomain.ErrProviderDisabled
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", &paymentdomain.ProviderError{Provider: ProviderName, Message: "token_failed"}
	}
	return out.AccessToken, nil
}

// STKPush asks the subscriber's handset to approve a payment. amount is
// rounded to whole shillings.
func (c *Client) STKPush(ctx context.Context, amount float64, phone, accountRef, description string) (*STKPushResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().UTC().Format(timestampLayout)
	payload := map[string]any{
		"BusinessShortCode": c.numeric(c.cfg.ShortCode),
		"Password":          Password(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   transactionType,
		"Amount":            c.numeric(strconv.FormatInt(int64(math.Round(amount)), 10)),
		"PartyA":            c.numeric(phone),
		"PartyB":            c.numeric(c.cfg.TillNumber),
		"PhoneNumber":       c.numeric(phone),
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  truncate(accountRef, maxAccountRefLen),
		"TransactionDesc":   truncate(description, maxDescriptionLen),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var out STKPushResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "" && out.ResponseCode != "0" {
		return nil, &paymentdomain.ProviderError{
			Provider: ProviderName,
			Message:  out.ResponseDescription,
			Body:     out.Map(),
		}
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return &paymentdomain.ProviderError{Provider: ProviderName, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		message, _ := body["errorMessage"].(string)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &paymentdomain.ProviderError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Message:    message,
			Body:       body,
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &paymentdomain.ProviderError{Provider: ProviderName, StatusCode: resp.StatusCode, Message: "decode response"}
	}
	return nil
}

// numeric keeps sandbox values as strings and sends integers to production.
func (c *Client) numeric(value string) any {
	if c.cfg.Sandbox {
		return value
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return value
	}
	return parsed
}

func truncate(value string, max int) string {
	if len(value) > max {
		return value[:max]
	}
	return value
}
