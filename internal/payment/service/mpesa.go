package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/smallbiznis/kilekitabu/internal/config"
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/mpesa"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	CallbackStatusOK      = "ok"
	CallbackStatusIgnored = "ignored"
	CallbackStatusFailed  = "failed"
	CallbackStatusError   = "error"

	stkDescription = "KileKitabu credit"

	failureCheckoutUnlinked = "checkout_request_unlinked"
)

// STKPusher is the slice of the Daraja client the service needs.
type STKPusher interface {
	Enabled() bool
	STKPush(ctx context.Context, amount float64, phone, accountRef, description string) (*mpesa.STKPushResponse, error)
}

type MpesaParams struct {
	fx.In

	Log    *zap.Logger
	Cfg    config.Config
	Ledger ledgerdomain.Service
	Client STKPusher
}

type MpesaService struct {
	log       *zap.Logger
	ledger    ledgerdomain.Service
	client    STKPusher
	minAmount float64
	maxAmount float64
}

func NewMpesaService(p MpesaParams) paymentdomain.MpesaService {
	return &MpesaService{
		log:       p.Log.Named("payment.mpesa"),
		ledger:    p.Ledger,
		client:    p.Client,
		minAmount: p.Cfg.Billing.MinAmount,
		maxAmount: p.Cfg.Billing.MaxAmount,
	}
}

func (s *MpesaService) Initiate(ctx context.Context, userID, phone string, amount float64) (*paymentdomain.InitiateResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if math.IsNaN(amount) || amount < s.minAmount || (s.maxAmount > 0 && amount > s.maxAmount) {
		return nil, paymentdomain.ErrInvalidAmount
	}
	phoneE164, ok := mpesa.FormatPhoneNumber(phone)
	if !ok {
		return nil, paymentdomain.ErrInvalidPhone
	}
	if s.client == nil || !s.client.Enabled() {
		return nil, paymentdomain.ErrProviderDisabled
	}

	payment, err := s.ledger.CreatePendingPayment(ctx, ledgerdomain.CreatePaymentRequest{
		UserID:        userID,
		Amount:        amount,
		Provider:      ledgerdomain.ProviderMpesa,
		PaymentMethod: ledgerdomain.ProviderMpesa,
		Source:        ledgerdomain.SourceInitiate,
		PhoneE164:     phoneE164,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.client.STKPush(ctx, amount, phoneE164, payment.PaymentID, stkDescription)
	if err != nil {
		s.log.Warn("stk push failed",
			zap.String("payment_id", payment.PaymentID),
			zap.Error(err),
		)
		if markErr := s.ledger.MarkPaymentFailed(ctx, payment.PaymentID, err.Error()); markErr != nil {
			s.log.Error("mark payment failed", zap.String("payment_id", payment.PaymentID), zap.Error(markErr))
		}
		return nil, err
	}

	if resp.CheckoutRequestID != "" {
		// Daraja truncates the account reference, so the checkout request id
		// is the only key a callback can be matched on.
		if err := s.ledger.AttachCheckoutRequest(ctx, payment.PaymentID, resp.CheckoutRequestID); err != nil {
			s.log.Error("attach checkout request",
				zap.String("payment_id", payment.PaymentID),
				zap.String("checkout_request_id", resp.CheckoutRequestID),
				zap.Error(err),
			)
			if markErr := s.ledger.MarkPaymentFailed(ctx, payment.PaymentID, failureCheckoutUnlinked); markErr != nil {
				s.log.Error("mark payment failed", zap.String("payment_id", payment.PaymentID), zap.Error(markErr))
			}
			return nil, err
		}
	}

	s.log.Info("stk push sent",
		zap.String("payment_id", payment.PaymentID),
		zap.String("user_id", userID),
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.Int64("credit_days", payment.CreditDays),
	)
	return &paymentdomain.InitiateResult{
		PaymentID:         payment.PaymentID,
		Status:            string(ledgerdomain.PaymentStatusPending),
		CreditDays:        payment.CreditDays,
		CheckoutRequestID: resp.CheckoutRequestID,
		CustomerMessage:   resp.CustomerMessage,
		Provider:          resp.Map(),
	}, nil
}

// HandleCallback settles the payment named by an STK callback. The gateway
// is always acknowledged, so every outcome is reported in the result.
func (s *MpesaService) HandleCallback(ctx context.Context, payload []byte) paymentdomain.CallbackResult {
	cb, err := mpesa.ParseCallback(payload)
	if err != nil {
		s.log.Warn("mpesa callback unreadable", zap.Error(err))
		return paymentdomain.CallbackResult{Status: CallbackStatusIgnored, Reason: "invalid_payload"}
	}

	payment, err := s.ledger.ResolvePayment(ctx, cb.CheckoutRequestID, cb.AccountReference)
	if errors.Is(err, ledgerdomain.ErrPaymentNotFound) {
		s.log.Warn("mpesa callback for unknown payment",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.String("account_reference", cb.AccountReference),
		)
		return paymentdomain.CallbackResult{Status: CallbackStatusIgnored, Reason: "payment_not_found"}
	}
	if err != nil {
		s.log.Error("resolve mpesa payment", zap.String("checkout_request_id", cb.CheckoutRequestID), zap.Error(err))
		return paymentdomain.CallbackResult{Status: CallbackStatusError, Reason: "lookup_failed"}
	}

	if payment.Status == ledgerdomain.PaymentStatusCompleted {
		return paymentdomain.CallbackResult{Status: CallbackStatusOK, Message: "already_processed"}
	}

	event := ledgerdomain.PaymentEvent{
		UserID:            payment.UserID,
		ProviderReference: payment.PaymentID,
		Provider:          ledgerdomain.ProviderMpesa,
		PaymentMethod:     ledgerdomain.ProviderMpesa,
		Source:            ledgerdomain.SourceCallback,
		AmountMinor:       int64(math.Round(payment.Amount * 100)),
		Currency:          payment.Currency,
		ProviderData:      cb.ProviderData(),
		RawPayload:        payload,
	}

	if !cb.Succeeded() {
		event.Kind = ledgerdomain.EventFailed
		event.FailureReason = cb.ResultDesc
		if _, err := s.ledger.ApplyEvent(ctx, event); err != nil {
			s.log.Error("record mpesa failure", zap.String("payment_id", payment.PaymentID), zap.Error(err))
		}
		code := cb.ResultCode
		return paymentdomain.CallbackResult{
			Status:     CallbackStatusFailed,
			ResultCode: &code,
			ResultDesc: cb.ResultDesc,
		}
	}

	event.Kind = ledgerdomain.EventChargeSuccess
	outcome, err := s.ledger.ApplyEvent(ctx, event)
	if err != nil {
		s.log.Error("credit mpesa payment", zap.String("payment_id", payment.PaymentID), zap.Error(err))
		return paymentdomain.CallbackResult{Status: CallbackStatusError, Reason: "ledger_write_failed"}
	}
	if outcome.Duplicate {
		return paymentdomain.CallbackResult{Status: CallbackStatusOK, Message: "already_processed"}
	}
	return paymentdomain.CallbackResult{Status: CallbackStatusOK}
}
