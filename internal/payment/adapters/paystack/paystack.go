package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

const (
	ProviderName    = "paystack"
	SignatureHeader = "x-paystack-signature"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return ProviderName
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret, ok := readString(cfg.Config, "webhook_secret")
	if !ok {
		return nil, paymentdomain.ErrInvalidConfig
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	return &Adapter{webhookSecret: secret}, nil
}

type Adapter struct {
	webhookSecret string
}

// Verify checks the hex HMAC-SHA512 of the raw body.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get(SignatureHeader))
	if signature == "" {
		return paymentdomain.ErrInvalidSignature
	}
	expected := Sign(a.webhookSecret, payload)
	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

// Sign returns the signature Paystack sends for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type webhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type refundData struct {
	ID                   json.Number     `json:"id"`
	TransactionReference string          `json:"transaction_reference"`
	Reference            string          `json:"reference"`
	Amount               int64           `json:"amount"`
	Currency             string          `json:"currency"`
	Status               string          `json:"status"`
	Metadata             json.RawMessage `json:"metadata"`
	Transaction          *struct {
		Reference string          `json:"reference"`
		Metadata  json.RawMessage `json:"metadata"`
	} `json:"transaction"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*ledgerdomain.PaymentEvent, error) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	switch strings.TrimSpace(event.Event) {
	case "charge.success":
		var tx Transaction
		if err := json.Unmarshal(event.Data, &tx); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
		out, err := ChargeEvent(tx, ledgerdomain.SourceWebhook)
		if err != nil {
			return nil, err
		}
		out.RawPayload = payload
		return out, nil
	case "refund.processed":
		return parseRefund(event.Data, payload)
	default:
		// charge.dispute.create and transfer.* are logged by the caller only.
		return nil, paymentdomain.ErrEventIgnored
	}
}

// ChargeEvent maps a successful transaction onto a ledger charge.
func ChargeEvent(tx Transaction, source string) (*ledgerdomain.PaymentEvent, error) {
	reference := strings.TrimSpace(tx.Reference)
	if reference == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if tx.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	return &ledgerdomain.PaymentEvent{
		UserID:            MetadataUserID(tx.Metadata),
		ProviderReference: reference,
		Provider:          ledgerdomain.ProviderPaystack,
		PaymentMethod:     ledgerdomain.ProviderPaystack,
		Source:            source,
		AmountMinor:       tx.Amount,
		Currency:          strings.ToUpper(strings.TrimSpace(tx.Currency)),
		Kind:              ledgerdomain.EventChargeSuccess,
		OccurredAt:        parseTime(tx.PaidAt),
		ProviderData: map[string]any{
			"paystack_transaction_id": tx.ID.String(),
			"paystack_reference":      reference,
			"channel":                 tx.Channel,
		},
	}, nil
}

func parseRefund(raw json.RawMessage, payload []byte) (*ledgerdomain.PaymentEvent, error) {
	var refund refundData
	if err := json.Unmarshal(raw, &refund); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	reference := strings.TrimSpace(refund.TransactionReference)
	metadata := refund.Metadata
	if refund.Transaction != nil {
		if reference == "" {
			reference = strings.TrimSpace(refund.Transaction.Reference)
		}
		if len(metadata) == 0 {
			metadata = refund.Transaction.Metadata
		}
	}
	if reference == "" {
		reference = strings.TrimSpace(refund.Reference)
	}
	if reference == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if refund.Amount < 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}

	return &ledgerdomain.PaymentEvent{
		UserID:            MetadataUserID(metadata),
		ProviderReference: reference,
		Provider:          ledgerdomain.ProviderPaystack,
		PaymentMethod:     ledgerdomain.ProviderPaystack,
		Source:            ledgerdomain.SourceWebhook,
		AmountMinor:       refund.Amount,
		Currency:          strings.ToUpper(strings.TrimSpace(refund.Currency)),
		Kind:              ledgerdomain.EventRefund,
		OccurredAt:        time.Now().UTC(),
		RawPayload:        payload,
		ProviderData: map[string]any{
			"paystack_refund_id": refund.ID.String(),
			"refund_status":      refund.Status,
		},
	}, nil
}

// MetadataUserID reads metadata.userId. Paystack echoes metadata either as
// an object or as the JSON string it was sent as.
func MetadataUserID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil || encoded == "" {
			return ""
		}
		if err := json.Unmarshal([]byte(encoded), &meta); err != nil {
			return ""
		}
	}
	for _, key := range []string{"userId", "user_id"} {
		if value, ok := meta[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func parseTime(value string) time.Time {
	if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
		return parsed.UTC()
	}
	return time.Now().UTC()
}

func readString(config map[string]any, key string) (string, bool) {
	value, ok := config[key]
	if !ok {
		return "", false
	}
	switch cast := value.(type) {
	case string:
		return cast, true
	default:
		return "", false
	}
}
