package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

func TestFormatPhoneNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "+254712345678", want: "254712345678", ok: true},
		{in: "+254112345678", want: "254112345678", ok: true},
		{in: "254712345678", want: "254712345678", ok: true},
		{in: "254112345678", want: "254112345678", ok: true},
		{in: "0712345678", want: "254712345678", ok: true},
		{in: "0112345678", want: "254112345678", ok: true},
		{in: " 0712-345 678 ", want: "254712345678", ok: true},
		{in: "0812345678"},
		{in: "25471234567"},
		{in: "071234567"},
		{in: "07123456789"},
		{in: "+255712345678"},
		{in: "07a2345678"},
		{in: ""},
	}
	for _, tt := range tests {
		got, ok := FormatPhoneNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("FormatPhoneNumber(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseCallbackSuccess(t *testing.T) {
	payload := []byte(`{"Body":{"stkCallback":{
		"MerchantRequestID":"29115-34620561-1",
		"CheckoutRequestID":"ws_CO_191220191020363925",
		"ResultCode":0,
		"ResultDesc":"The service request is processed successfully.",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":100.00},
			{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
			{"Name":"TransactionDate","Value":20191219102115},
			{"Name":"PhoneNumber","Value":254708374149},
			{"Name":"AccountReference","Value":"pay-123"}
		]}}}}`)

	cb, err := ParseCallback(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cb.Succeeded() {
		t.Fatalf("expected success")
	}
	if cb.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Fatalf("unexpected checkout id %q", cb.CheckoutRequestID)
	}
	if cb.Amount != 100 || cb.MpesaReceiptNumber != "NLJ7RT61SV" || cb.AccountReference != "pay-123" {
		t.Fatalf("unexpected metadata %+v", cb)
	}
	if cb.PhoneNumber != "254708374149" || cb.TransactionDate != "20191219102115" {
		t.Fatalf("unexpected numeric metadata %+v", cb)
	}
	data := cb.ProviderData()
	if data["mpesa_receipt_number"] != "NLJ7RT61SV" || data["phone_number"] != "254708374149" {
		t.Fatalf("unexpected provider data %v", data)
	}
}

func TestParseCallbackFailure(t *testing.T) {
	payload := []byte(`{"Body":{"stkCallback":{
		"MerchantRequestID":"1","CheckoutRequestID":"ws_CO_1",
		"ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)

	cb, err := ParseCallback(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.Succeeded() || cb.ResultCode != 1032 || cb.ResultDesc != "Request cancelled by user" {
		t.Fatalf("unexpected callback %+v", cb)
	}
}

func TestParseCallbackInvalid(t *testing.T) {
	for _, payload := range []string{`not-json`, `{}`, `{"Body":{"stkCallback":{"ResultCode":"x"}}}`} {
		if _, err := ParseCallback([]byte(payload)); !errors.Is(err, paymentdomain.ErrInvalidPayload) {
			t.Fatalf("payload %s: expected invalid payload, got %v", payload, err)
		}
	}
}

func TestSTKPush(t *testing.T) {
	var pushed map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			user, pass, ok := r.BasicAuth()
			if !ok || user != "key" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
		case "/mpesa/stkpush/v1/processrequest":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&pushed)
			_, _ = w.Write([]byte(`{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:        server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "pass",
		CallbackURL:    "https://example.com/api/mpesa/callback",
		Sandbox:        true,
	})
	client.now = func() time.Time { return time.Date(2025, 3, 10, 9, 5, 7, 0, time.UTC) }

	resp, err := client.STKPush(context.Background(), 99.6, "254712345678", "0123456789abcdef", "KileKitabu credit top up")
	if err != nil {
		t.Fatalf("stk push: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if pushed["Timestamp"] != "20250310090507" {
		t.Fatalf("unexpected timestamp %v", pushed["Timestamp"])
	}
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379pass20250310090507"))
	if pushed["Password"] != wantPassword {
		t.Fatalf("unexpected password %v", pushed["Password"])
	}
	if pushed["Amount"] != "100" || pushed["PartyB"] != "174379" {
		t.Fatalf("unexpected sandbox fields %v", pushed)
	}
	if pushed["AccountReference"] != "0123456789ab" || pushed["TransactionDesc"] != "KileKitabu credit to" {
		t.Fatalf("expected truncated reference and description, got %v / %v", pushed["AccountReference"], pushed["TransactionDesc"])
	}
	if pushed["TransactionType"] != "CustomerBuyGoodsOnline" {
		t.Fatalf("unexpected transaction type %v", pushed["TransactionType"])
	}
}

func TestSTKPushProductionSendsIntegers(t *testing.T) {
	client := NewClient(ClientConfig{ShortCode: "174379"})
	if v, ok := client.numeric("254712345678").(int64); !ok || v != 254712345678 {
		t.Fatalf("expected integer, got %#v", client.numeric("254712345678"))
	}
}

func TestSTKPushRequiresCredentials(t *testing.T) {
	client := NewClient(ClientConfig{})
	if _, err := client.STKPush(context.Background(), 10, "254712345678", "ref", "desc"); !errors.Is(err, paymentdomain.ErrProviderDisabled) {
		t.Fatalf("expected provider disabled, got %v", err)
	}
}
