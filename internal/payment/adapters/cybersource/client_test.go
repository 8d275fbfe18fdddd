package cybersource

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("shared-secret"))

func TestSignHeaders(t *testing.T) {
	client := NewClient(ClientConfig{MerchantID: "merchant", KeyID: "key-1", SecretKey: testSecret})
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	body := []byte(`{"a":1}`)

	headers, err := client.SignHeaders(http.MethodPost, paymentsPath, body, at)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	sum := sha256.Sum256(body)
	wantDigest := "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
	if headers["Digest"] != wantDigest {
		t.Fatalf("unexpected digest %s", headers["Digest"])
	}
	if headers["Date"] != "Mon, 10 Mar 2025 09:00:00 GMT" {
		t.Fatalf("unexpected date %s", headers["Date"])
	}

	signed := "host: apitest.cybersource.com\n" +
		"date: Mon, 10 Mar 2025 09:00:00 GMT\n" +
		"request-target: post /pts/v2/payments\n" +
		"digest: " + wantDigest + "\n" +
		"v-c-merchant-id: merchant"
	mac := hmac.New(sha256.New, []byte("shared-secret"))
	_, _ = mac.Write([]byte(signed))
	wantSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !strings.Contains(headers["Signature"], `signature="`+wantSig+`"`) {
		t.Fatalf("unexpected signature header %s", headers["Signature"])
	}
	if !strings.HasPrefix(headers["Signature"], `keyid="key-1"`) {
		t.Fatalf("missing key id in %s", headers["Signature"])
	}
}

func TestSignHeadersRejectsBadSecret(t *testing.T) {
	client := NewClient(ClientConfig{MerchantID: "m", KeyID: "k", SecretKey: "%%%"})
	if _, err := client.SignHeaders(http.MethodPost, paymentsPath, nil, time.Now()); !errors.Is(err, paymentdomain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestPayAppliesChargeAmountWorkaround(t *testing.T) {
	tests := []struct {
		name       string
		workaround bool
		want       string
	}{
		{name: "workaround on", workaround: true, want: "2.01"},
		{name: "workaround off", workaround: false, want: "2.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				raw, _ := io.ReadAll(r.Body)
				sum := sha256.Sum256(raw)
				if r.Header.Get("Digest") != "SHA-256="+base64.StdEncoding.EncodeToString(sum[:]) {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				_ = json.Unmarshal(raw, &body)
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"id":"txn-1","status":"AUTHORIZED"}`))
			}))
			defer server.Close()

			client := NewClient(ClientConfig{
				MerchantID:             "merchant",
				KeyID:                  "key",
				SecretKey:              testSecret,
				BaseURL:                server.URL,
				ChargeAmountWorkaround: tt.workaround,
			})
			resp, err := client.Pay(context.Background(), PaymentRequest{
				TransientToken: "eyJ.token",
				Amount:         2,
				Currency:       "usd",
				ReferenceCode:  "ref-1",
			})
			if err != nil {
				t.Fatalf("pay: %v", err)
			}
			if !resp.Approved() || resp.ID != "txn-1" {
				t.Fatalf("unexpected response %+v", resp)
			}
			order := body["orderInformation"].(map[string]any)["amountDetails"].(map[string]any)
			if order["totalAmount"] != tt.want || order["currency"] != "USD" {
				t.Fatalf("unexpected amount details %v", order)
			}
		})
	}
}

func TestPayProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"INVALID_REQUEST","message":"Declined - One or more fields in the request contains invalid data"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{MerchantID: "m", KeyID: "k", SecretKey: testSecret, BaseURL: server.URL})
	_, err := client.Pay(context.Background(), PaymentRequest{TransientToken: "tok", Amount: 5, Currency: "USD"})
	var providerErr *paymentdomain.ProviderError
	if !errors.As(err, &providerErr) || providerErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestCaptureContext(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != captureContextPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/jwt")
		_, _ = w.Write([]byte("eyJhbGciOiJSUzI1NiJ9.payload.sig\n"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{MerchantID: "m", KeyID: "k", SecretKey: testSecret, BaseURL: server.URL})
	jwt, err := client.CaptureContext(context.Background(), paymentdomain.CaptureContextRequest{
		TargetOrigins:       []string{" https://app.example.com ", ""},
		AllowedPaymentTypes: []string{"CARD"},
	})
	if err != nil {
		t.Fatalf("capture context: %v", err)
	}
	if jwt != "eyJhbGciOiJSUzI1NiJ9.payload.sig" {
		t.Fatalf("unexpected jwt %q", jwt)
	}
	origins := body["targetOrigins"].([]any)
	if len(origins) != 1 || origins[0] != "https://app.example.com" {
		t.Fatalf("unexpected origins %v", origins)
	}
	if types := body["allowedPaymentTypes"].([]any); types[0] != "PANENTRY" {
		t.Fatalf("expected CARD mapped to PANENTRY, got %v", types)
	}
}

func TestChargeEvent(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	event, err := ChargeEvent("user-1", "txn-1", "", 1.5, "usd", "unified_checkout", ledgerdomain.SourceDirect, at)
	if err != nil {
		t.Fatalf("charge event: %v", err)
	}
	if event.ProviderReference != "txn-1" || event.AmountMinor != 150 || event.Currency != "USD" {
		t.Fatalf("unexpected event %+v", event)
	}

	event, err = ChargeEvent("user-1", "txn-1", "UC_1", 10, "KES", "unified_checkout", ledgerdomain.SourceDirect, at)
	if err != nil {
		t.Fatalf("charge event: %v", err)
	}
	if event.ProviderReference != "UC_1" {
		t.Fatalf("expected reference code to key the payment, got %s", event.ProviderReference)
	}

	if _, err := ChargeEvent("user-1", "", "", 10, "KES", "", "", at); !errors.Is(err, paymentdomain.ErrInvalidEvent) {
		t.Fatalf("expected invalid event, got %v", err)
	}
}
