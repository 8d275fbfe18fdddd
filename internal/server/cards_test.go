package server

import (
	"net/http"
	"testing"

	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/cybersource"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authHeaders = map[string]string{"Authorization": "Bearer good-token"}

func TestPayCardReportsPromptAndCredit(t *testing.T) {
	tests := []struct {
		name   string
		result *paymentdomain.CardChargeResult
		check  func(t *testing.T, body map[string]any)
	}{
		{
			name:   "pin prompt",
			result: &paymentdomain.CardChargeResult{Status: paymentdomain.ChargeStatusPINRequired, Reference: "CARD_1", Message: "Please enter your card PIN"},
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, true, body["success"])
				assert.Equal(t, "pin_required", body["status"])
				assert.NotContains(t, body, "credit_days_added")
			},
		},
		{
			name: "completed",
			result: &paymentdomain.CardChargeResult{
				Status:        paymentdomain.ChargeStatusCompleted,
				Reference:     "CARD_1",
				TransactionID: "4099",
				Credit:        &paymentdomain.CreditResult{CreditDays: 26, NewCreditBalance: 33},
			},
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "4099", body["transaction_id"])
				assert.EqualValues(t, 26, body["credit_days_added"])
				assert.EqualValues(t, 33, body["new_credit_balance"])
			},
		},
		{
			name:   "declined",
			result: &paymentdomain.CardChargeResult{Status: paymentdomain.ChargeStatusFailed, Reference: "CARD_1", Message: "Declined"},
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, "Declined", body["message"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paystack := &fakePaystack{charge: tt.result}
			s := newTestServer(t, &testDeps{paystack: paystack})

			rec := doRequest(s, http.MethodPost, "/api/cards/pay", map[string]any{
				"amount":   "1500",
				"currency": "NGN",
				"email":    "ada@example.com",
				"card": map[string]string{
					"number":          "4084084084084081",
					"cvv":             "408",
					"expirationMonth": "12",
					"expirationYear":  "2030",
				},
			}, authHeaders)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "firebase-user", paystack.lastCharge.UserID)
			assert.Equal(t, 1500.0, paystack.lastCharge.Amount)
			assert.Equal(t, "4084084084084081", paystack.lastCharge.Card.Number)
			tt.check(t, decodeBody(t, rec))
		})
	}
}

func TestPayCardMapsInvalidCard(t *testing.T) {
	s := newTestServer(t, &testDeps{paystack: &fakePaystack{err: paymentdomain.ErrInvalidCard}})

	rec := doRequest(s, http.MethodPost, "/api/cards/pay", map[string]any{
		"amount": 1500,
		"card":   map[string]string{"number": "12"},
	}, authHeaders)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "validation_error", errBody["type"])
}

func TestSubmitChargeStepRoutes(t *testing.T) {
	tests := []struct {
		path  string
		body  map[string]string
		step  string
		value string
	}{
		{path: "/api/cards/submit-pin", body: map[string]string{"pin": "1234", "reference": "CARD_1"}, step: "pin", value: "1234"},
		{path: "/api/cards/submit-otp", body: map[string]string{"otp": "123456", "reference": "CARD_1"}, step: "otp", value: "123456"},
		{path: "/api/cards/submit-phone", body: map[string]string{"phone": "08012345678", "reference": "CARD_1"}, step: "phone", value: "08012345678"},
	}

	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			paystack := &fakePaystack{charge: &paymentdomain.CardChargeResult{Status: paymentdomain.ChargeStatusOTPRequired, Reference: "CARD_1"}}
			s := newTestServer(t, &testDeps{paystack: paystack})

			rec := doRequest(s, http.MethodPost, tt.path, tt.body, authHeaders)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, paymentdomain.SubmitChargeRequest{
				UserID:    "firebase-user",
				Reference: "CARD_1",
				Step:      tt.step,
				Value:     tt.value,
			}, paystack.lastSubmit)
		})
	}
}

func TestSubmitChargeStepRequiresValue(t *testing.T) {
	paystack := &fakePaystack{}
	s := newTestServer(t, &testDeps{paystack: paystack})

	rec := doRequest(s, http.MethodPost, "/api/cards/submit-otp", map[string]string{"pin": "1234", "reference": "CARD_1"}, authHeaders)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, paystack.lastSubmit.Reference)

	rec = doRequest(s, http.MethodPost, "/api/cards/submit-pin", map[string]string{"pin": "1234"}, authHeaders)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCardRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t, &testDeps{})

	for _, path := range []string{"/api/cards/pay", "/api/cards/submit-pin", "/api/googlepay/charge"} {
		rec := doRequest(s, http.MethodPost, path, map[string]any{}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestGooglePayChargeForcesPaymentType(t *testing.T) {
	cards := &fakeCards{}
	s := newTestServer(t, &testDeps{cards: cards})

	rec := doRequest(s, http.MethodPost, "/api/googlepay/charge", map[string]any{
		"transientToken": "tt-1",
		"amount":         1,
		"currency":       "USD",
		"paymentType":    "CARD",
	}, authHeaders)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cybersource.PaymentTypeGooglePay, cards.lastCharge.PaymentType)
	assert.Equal(t, "firebase-user", cards.lastCharge.UserID)
	assert.EqualValues(t, 26, decodeBody(t, rec)["credit"].(map[string]any)["credit_days"])
}

func TestGooglePayCaptureContextOffersGooglePay(t *testing.T) {
	cards := &fakeCards{}
	s := newTestServer(t, &testDeps{cards: cards})

	rec := doRequest(s, http.MethodPost, "/api/googlepay/capture-context", map[string]any{
		"allowedPaymentTypes": []string{"PANENTRY"},
	}, authHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"PANENTRY", "GOOGLEPAY"}, cards.lastContext.AllowedPaymentTypes)

	rec = doRequest(s, http.MethodPost, "/api/googlepay/capture-context", nil, authHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, cards.lastContext.AllowedPaymentTypes)
}
