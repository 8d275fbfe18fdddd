package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/kilekitabu/internal/clock"
	"github.com/smallbiznis/kilekitabu/internal/config"
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/kilekitabu/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/kilekitabu/internal/ledger/service"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/cybersource"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/mpesa"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/paystack"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
	"github.com/smallbiznis/kilekitabu/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePusher struct {
	enabled    bool
	checkoutID string
	err        error
	refs       []string
}

func (f *fakePusher) Enabled() bool { return f.enabled }

func (f *fakePusher) STKPush(_ context.Context, _ float64, _ string, accountRef, _ string) (*mpesa.STKPushResponse, error) {
	f.refs = append(f.refs, accountRef)
	if f.err != nil {
		return nil, f.err
	}
	return &mpesa.STKPushResponse{
		CheckoutRequestID: f.checkoutID,
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

type fakeGateway struct {
	tx   *paystack.Transaction
	auth *paystack.Authorization
	err  error

	charge    *paystack.Transaction
	steps     map[string]*paystack.Transaction
	lastCard  paystack.Card
	submitted []string
}

func (f *fakeGateway) Enabled() bool { return true }

func (f *fakeGateway) InitializeTransaction(_ context.Context, params paystack.InitializeParams) (*paystack.Authorization, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &paystack.Authorization{AccessCode: "code", Reference: params.Reference, AuthorizationURL: "https://checkout.paystack.com/code"}, nil
}

func (f *fakeGateway) VerifyTransaction(_ context.Context, _ string) (*paystack.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

func (f *fakeGateway) Charge(_ context.Context, params paystack.ChargeParams) (*paystack.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastCard = params.Card
	tx := *f.charge
	tx.Reference = params.Reference
	return &tx, nil
}

func (f *fakeGateway) SubmitChargeStep(_ context.Context, step, reference, value string) (*paystack.Transaction, error) {
	f.submitted = append(f.submitted, step+"="+value)
	tx := *f.steps[step]
	tx.Reference = reference
	return &tx, nil
}

type fakeProcessor struct {
	resp *cybersource.PaymentResponse
}

func (f *fakeProcessor) Enabled() bool { return true }

func (f *fakeProcessor) CaptureContext(context.Context, paymentdomain.CaptureContextRequest) (string, error) {
	return "jwt", nil
}

func (f *fakeProcessor) Pay(context.Context, cybersource.PaymentRequest) (*cybersource.PaymentResponse, error) {
	return f.resp, nil
}

type fixture struct {
	ledger ledgerdomain.Service
	clock  *clock.FakeClock
	cfg    config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{Billing: config.BillingConfig{MinAmount: 10, MaxAmount: 1_000_000}}
	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   cfg,
		Repo:  ledgerrepo.Provide(),
		Rates: ledgerdomain.StaticRates(ledgerdomain.DefaultRates()),
		Clock: clk,
	})
	return &fixture{ledger: ledger, clock: clk, cfg: cfg}
}

func (f *fixture) mpesa(pusher STKPusher) paymentdomain.MpesaService {
	return NewMpesaService(MpesaParams{Log: zap.NewNop(), Cfg: f.cfg, Ledger: f.ledger, Client: pusher})
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	info, err := f.ledger.GetCreditInfo(context.Background(), userID)
	require.NoError(t, err)
	return info.CreditBalance
}

func stkCallback(checkoutID, accountRef string, code int, desc string) []byte {
	if code != 0 {
		return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":%q,"ResultCode":%d,"ResultDesc":%q}}}`,
			checkoutID, code, desc))
	}
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":%q,"ResultCode":0,"ResultDesc":%q,
		"CallbackMetadata":{"Item":[{"Name":"Amount","Value":100},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
		{"Name":"PhoneNumber","Value":254712345678},{"Name":"AccountReference","Value":%q}]}}}}`,
		checkoutID, desc, accountRef))
}

func TestMpesa_InitiateAndCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pusher := &fakePusher{enabled: true, checkoutID: "ws_CO_1"}
	svc := f.mpesa(pusher)

	res, err := svc.Initiate(ctx, "user-1", "0712345678", 100)
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Status)
	assert.Equal(t, int64(20), res.CreditDays)
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)
	assert.Equal(t, []string{res.PaymentID}, pusher.refs)

	payment, err := f.ledger.GetPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "254712345678", payment.PhoneE164)
	assert.Equal(t, ledgerdomain.ProviderMpesa, payment.Provider)

	out := svc.HandleCallback(ctx, stkCallback("ws_CO_1", "", 0, "The service request is processed successfully."))
	assert.Equal(t, paymentdomain.CallbackResult{Status: CallbackStatusOK}, out)
	assert.Equal(t, int64(20), f.balance(t, "user-1"))

	payment, err = f.ledger.GetPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "NLJ7RT61SV", payment.ProviderData["mpesa_receipt_number"])

	again := svc.HandleCallback(ctx, stkCallback("ws_CO_1", "", 0, "ok"))
	assert.Equal(t, paymentdomain.CallbackResult{Status: CallbackStatusOK, Message: "already_processed"}, again)
	assert.Equal(t, int64(20), f.balance(t, "user-1"))
}

func TestMpesa_CallbackFallsBackToAccountReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.mpesa(&fakePusher{enabled: true})

	res, err := svc.Initiate(ctx, "user-1", "+254712345678", 50)
	require.NoError(t, err)
	assert.Empty(t, res.CheckoutRequestID)

	out := svc.HandleCallback(ctx, stkCallback("ws_CO_unknown", res.PaymentID, 0, "ok"))
	assert.Equal(t, CallbackStatusOK, out.Status)
	assert.Equal(t, int64(10), f.balance(t, "user-1"))
}

func TestMpesa_CallbackUnknownPaymentIsIgnored(t *testing.T) {
	f := newFixture(t)
	svc := f.mpesa(&fakePusher{enabled: true})

	out := svc.HandleCallback(context.Background(), stkCallback("ws_CO_none", "nope", 0, "ok"))
	assert.Equal(t, paymentdomain.CallbackResult{Status: CallbackStatusIgnored, Reason: "payment_not_found"}, out)

	out = svc.HandleCallback(context.Background(), []byte(`{"Body":{}}`))
	assert.Equal(t, CallbackStatusIgnored, out.Status)
}

func TestMpesa_CallbackFailureCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.mpesa(&fakePusher{enabled: true, checkoutID: "ws_CO_2"})

	res, err := svc.Initiate(ctx, "user-1", "0712345678", 100)
	require.NoError(t, err)

	out := svc.HandleCallback(ctx, stkCallback("ws_CO_2", "", 1032, "Request cancelled by user"))
	assert.Equal(t, CallbackStatusFailed, out.Status)
	require.NotNil(t, out.ResultCode)
	assert.Equal(t, 1032, *out.ResultCode)
	assert.Equal(t, "Request cancelled by user", out.ResultDesc)

	payment, err := f.ledger.GetPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "Request cancelled by user", payment.FailureReason)
	assert.Equal(t, int64(0), f.balance(t, "user-1"))
}

type unlinkableLedger struct {
	ledgerdomain.Service
}

func (unlinkableLedger) AttachCheckoutRequest(context.Context, string, string) error {
	return ledgerdomain.ErrCorrelationTaken
}

func TestMpesa_UnlinkedCheckoutFailsInitiation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pusher := &fakePusher{enabled: true, checkoutID: "ws_CO_3"}
	svc := NewMpesaService(MpesaParams{Log: zap.NewNop(), Cfg: f.cfg, Ledger: unlinkableLedger{f.ledger}, Client: pusher})

	_, err := svc.Initiate(ctx, "user-1", "0712345678", 100)
	require.ErrorIs(t, err, ledgerdomain.ErrCorrelationTaken)

	require.Len(t, pusher.refs, 1)
	payment, err := f.ledger.GetPayment(ctx, pusher.refs[0])
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "checkout_request_unlinked", payment.FailureReason)

	out := svc.HandleCallback(ctx, stkCallback("ws_CO_3", pusher.refs[0][:12], 0, "ok"))
	assert.Equal(t, CallbackStatusIgnored, out.Status)
	assert.Equal(t, int64(0), f.balance(t, "user-1"))
}

func TestMpesa_STKFailureMarksPaymentFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	providerErr := &paymentdomain.ProviderError{Provider: "mpesa", StatusCode: 500, Message: "Internal Server Error"}
	pusher := &fakePusher{enabled: true, err: providerErr}
	svc := f.mpesa(pusher)

	_, err := svc.Initiate(ctx, "user-1", "0712345678", 100)
	require.Error(t, err)
	var got *paymentdomain.ProviderError
	assert.True(t, errors.As(err, &got))

	require.Len(t, pusher.refs, 1)
	payment, err := f.ledger.GetPayment(ctx, pusher.refs[0])
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.PaymentStatusFailed, payment.Status)
	assert.Equal(t, int64(0), f.balance(t, "user-1"))
}

func TestMpesa_InitiateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		svc    paymentdomain.MpesaService
		user   string
		phone  string
		amount float64
		want   error
	}{
		{name: "missing user", svc: f.mpesa(&fakePusher{enabled: true}), phone: "0712345678", amount: 100, want: ledgerdomain.ErrInvalidUser},
		{name: "below minimum", svc: f.mpesa(&fakePusher{enabled: true}), user: "u", phone: "0712345678", amount: 9, want: paymentdomain.ErrInvalidAmount},
		{name: "above maximum", svc: f.mpesa(&fakePusher{enabled: true}), user: "u", phone: "0712345678", amount: 1_000_001, want: paymentdomain.ErrInvalidAmount},
		{name: "bad phone", svc: f.mpesa(&fakePusher{enabled: true}), user: "u", phone: "12345", amount: 100, want: paymentdomain.ErrInvalidPhone},
		{name: "not configured", svc: f.mpesa(&fakePusher{}), user: "u", phone: "0712345678", amount: 100, want: paymentdomain.ErrProviderDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Initiate(ctx, tt.user, tt.phone, tt.amount)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPaystack_InitializeThenVerifyCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gateway := &fakeGateway{}
	svc := NewPaystackService(PaystackParams{Log: zap.NewNop(), Ledger: f.ledger, Gateway: gateway, Clock: f.clock})

	init, err := svc.Initialize(ctx, paymentdomain.InitializeRequest{UserID: "user-1", Email: "a@b.co", Amount: 1})
	require.NoError(t, err)
	assert.Contains(t, init.Reference, "PAYSTACK_")

	payment, err := f.ledger.GetPayment(ctx, init.Reference)
	require.NoError(t, err)
	assert.Equal(t, "USD", payment.Currency)
	assert.Equal(t, int64(26), payment.CreditDays)

	gateway.tx = &paystack.Transaction{
		Status:    "success",
		Reference: init.Reference,
		Amount:    100,
		Currency:  "USD",
		Metadata:  []byte(`{"userId":"user-1"}`),
		Raw:       map[string]any{"reference": init.Reference},
	}
	res, err := svc.Verify(ctx, "user-1", init.Reference)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.Equal(t, int64(26), res.CreditDays)

	// A webhook delivered after the poll hits the same payment.
	again, err := svc.Verify(ctx, "user-1", init.Reference)
	require.NoError(t, err)
	assert.False(t, again.Credited)
	assert.True(t, again.Duplicate)
	assert.Equal(t, int64(26), f.balance(t, "user-1"))
}

func TestPaystack_VerifyRejectsOtherUser(t *testing.T) {
	f := newFixture(t)
	gateway := &fakeGateway{tx: &paystack.Transaction{
		Status: "success", Reference: "ref", Amount: 1000, Currency: "KES",
		Metadata: []byte(`{"userId":"user-1"}`),
	}}
	svc := NewPaystackService(PaystackParams{Log: zap.NewNop(), Ledger: f.ledger, Gateway: gateway, Clock: f.clock})

	_, err := svc.Verify(context.Background(), "user-2", "ref")
	assert.ErrorIs(t, err, ledgerdomain.ErrUserMismatch)
}

func TestPaystack_InitializeValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewPaystackService(PaystackParams{Log: zap.NewNop(), Ledger: f.ledger, Gateway: &fakeGateway{}, Clock: f.clock})
	ctx := context.Background()

	_, err := svc.Initialize(ctx, paymentdomain.InitializeRequest{UserID: "u", Email: "nope", Amount: 1})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEmail)
	_, err = svc.Initialize(ctx, paymentdomain.InitializeRequest{UserID: "u", Email: "a@b.co", Amount: 0})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)
	_, err = svc.Initialize(ctx, paymentdomain.InitializeRequest{UserID: "u", Email: "a@b.co", Amount: 1, Currency: "EUR"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidCurrency)
}

func TestCard_AddCreditsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	svc := NewCardService(CardParams{Log: zap.NewNop(), Ledger: f.ledger, Processor: &fakeProcessor{}, Clock: f.clock})
	ctx := context.Background()

	req := paymentdomain.AddCreditsRequest{UserID: "user-1", Amount: 1, Currency: "USD", TransactionID: "txn-1"}
	first, err := svc.AddCredits(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "txn-1", first.PaymentID)
	assert.Equal(t, int64(26), first.CreditDays)
	assert.Equal(t, int64(26), first.NewCreditBalance)

	second, err := svc.AddCredits(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, int64(26), second.NewCreditBalance)

	_, err = svc.AddCredits(ctx, paymentdomain.AddCreditsRequest{UserID: "user-1", Amount: 1, Currency: "USD"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}

func TestCard_ChargeCreditsApprovedPayment(t *testing.T) {
	f := newFixture(t)
	processor := &fakeProcessor{resp: &cybersource.PaymentResponse{
		ID: "txn-9", Status: cybersource.StatusCaptured, Raw: map[string]any{"id": "txn-9", "status": "CAPTURED"},
	}}
	svc := NewCardService(CardParams{Log: zap.NewNop(), Ledger: f.ledger, Processor: processor, Clock: f.clock})

	credit, raw, err := svc.Charge(context.Background(), paymentdomain.ChargeRequest{
		UserID: "user-1", TransientToken: "tok", Amount: 50, Currency: "KES", ReferenceCode: "UC_1",
	})
	require.NoError(t, err)
	require.NotNil(t, credit)
	assert.Equal(t, "UC_1", credit.PaymentID)
	assert.Equal(t, int64(10), credit.CreditDays)
	assert.Equal(t, "txn-9", raw["id"])

	processor.resp = &cybersource.PaymentResponse{ID: "txn-10", Status: "DECLINED"}
	credit, _, err = svc.Charge(context.Background(), paymentdomain.ChargeRequest{
		UserID: "user-1", TransientToken: "tok", Amount: 50, Currency: "KES",
	})
	require.NoError(t, err)
	assert.Nil(t, credit)
	assert.Equal(t, int64(10), f.balance(t, "user-1"))
}

func TestPaystack_ChargeCardWalksPinAndOTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gateway := &fakeGateway{
		charge: &paystack.Transaction{Status: "send_pin"},
		steps: map[string]*paystack.Transaction{
			paystack.StepPIN: {Status: "send_otp", DisplayText: "Please enter the OTP sent to 0712"},
			paystack.StepOTP: {
				ID: "7", Status: "success", Amount: 100, Currency: "USD",
				Metadata: []byte(`{"userId":"user-1"}`),
			},
		},
	}
	svc := NewPaystackService(PaystackParams{Log: zap.NewNop(), Ledger: f.ledger, Gateway: gateway, Clock: f.clock})

	res, err := svc.ChargeCard(ctx, paymentdomain.CardChargeRequest{
		UserID: "user-1", Email: "a@b.co", Amount: 1, Currency: "usd",
		Card: paymentdomain.CardDetails{Number: "4084 0840 8408 4081", CVV: "408", ExpirationMonth: "12", ExpirationYear: "30"},
	})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.ChargeStatusPINRequired, res.Status)
	assert.Contains(t, res.Reference, "CARD_")
	assert.Equal(t, "4084084084084081", gateway.lastCard.Number)

	payment, err := f.ledger.GetPayment(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.PaymentStatusPending, payment.Status)

	_, err = svc.SubmitCharge(ctx, paymentdomain.SubmitChargeRequest{UserID: "user-2", Reference: res.Reference, Step: paystack.StepPIN, Value: "1234"})
	assert.ErrorIs(t, err, ledgerdomain.ErrUserMismatch)

	step, err := svc.SubmitCharge(ctx, paymentdomain.SubmitChargeRequest{UserID: "user-1", Reference: res.Reference, Step: paystack.StepPIN, Value: "1234"})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.ChargeStatusOTPRequired, step.Status)
	assert.Equal(t, "Please enter the OTP sent to 0712", step.Message)

	done, err := svc.SubmitCharge(ctx, paymentdomain.SubmitChargeRequest{UserID: "user-1", Reference: res.Reference, Step: paystack.StepOTP, Value: "123456"})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.ChargeStatusCompleted, done.Status)
	require.NotNil(t, done.Credit)
	assert.Equal(t, int64(26), done.Credit.CreditDays)
	assert.Equal(t, []string{"pin=1234", "otp=123456"}, gateway.submitted)

	// The charge.success webhook for the same reference must not credit again.
	gateway.tx = &paystack.Transaction{Status: "success", Reference: res.Reference, Amount: 100, Currency: "USD", Metadata: []byte(`{"userId":"user-1"}`)}
	again, err := svc.Verify(ctx, "user-1", res.Reference)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, int64(26), f.balance(t, "user-1"))
}

func TestPaystack_ChargeCardFailedMarksPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gateway := &fakeGateway{charge: &paystack.Transaction{Status: "failed", GatewayResponse: "Declined"}}
	svc := NewPaystackService(PaystackParams{Log: zap.NewNop(), Ledger: f.ledger, Gateway: gateway, Clock: f.clock})

	res, err := svc.ChargeCard(ctx, paymentdomain.CardChargeRequest{
		UserID: "user-1", Email: "a@b.co", Amount: 500, Reference: "CARD_fixed",
		Card: paymentdomain.CardDetails{Number: "4084084084084081", CVV: "408", ExpirationMonth: "1", ExpirationYear: "2030"},
	})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.ChargeStatusFailed, res.Status)
	assert.Equal(t, "Declined", res.Message)

	payment, err := f.ledger.GetPayment(ctx, "CARD_fixed")
	require.NoError(t, err)
	assert.Equal(t, "NGN", payment.Currency)
	assert.Equal(t, ledgerdomain.PaymentStatusFailed, payment.Status)
	assert.Equal(t, int64(0), f.balance(t, "user-1"))
}

func TestPaystack_ChargeCardValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewPaystackService(PaystackParams{Log: zap.NewNop(), Ledger: f.ledger, Gateway: &fakeGateway{}, Clock: f.clock})
	ctx := context.Background()
	card := paymentdomain.CardDetails{Number: "4084084084084081", CVV: "408", ExpirationMonth: "12", ExpirationYear: "30"}

	_, err := svc.ChargeCard(ctx, paymentdomain.CardChargeRequest{UserID: "u", Email: "a@b.co", Amount: 1, Card: paymentdomain.CardDetails{Number: "4084", CVV: "408", ExpirationMonth: "12", ExpirationYear: "30"}})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidCard)
	_, err = svc.ChargeCard(ctx, paymentdomain.CardChargeRequest{UserID: "u", Email: "a@b.co", Amount: 1, Currency: "EUR", Card: card})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidCurrency)
	_, err = svc.ChargeCard(ctx, paymentdomain.CardChargeRequest{UserID: "u", Email: "", Amount: 1, Card: card})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEmail)
	_, err = svc.SubmitCharge(ctx, paymentdomain.SubmitChargeRequest{UserID: "u", Reference: "CARD_1", Step: "birthday", Value: "x"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
	_, err = svc.SubmitCharge(ctx, paymentdomain.SubmitChargeRequest{UserID: "u", Reference: "missing", Step: paystack.StepOTP, Value: "1"})
	assert.ErrorIs(t, err, ledgerdomain.ErrPaymentNotFound)
}
