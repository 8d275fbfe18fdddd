package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/smallbiznis/kilekitabu/internal/clock"
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/paystack"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultPaystackCurrency = "USD"

var paystackCurrencies = map[string]struct{}{
	"NGN": {}, "USD": {}, "GHS": {}, "ZAR": {}, "KES": {},
}

// TransactionGateway is the slice of the Paystack client the service needs.
type TransactionGateway interface {
	Enabled() bool
	InitializeTransaction(ctx context.Context, params paystack.InitializeParams) (*paystack.Authorization, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
	Charge(ctx context.Context, params paystack.ChargeParams) (*paystack.Transaction, error)
	SubmitChargeStep(ctx context.Context, step, reference, value string) (*paystack.Transaction, error)
}

type PaystackParams struct {
	fx.In

	Log     *zap.Logger
	Ledger  ledgerdomain.Service
	Gateway TransactionGateway
	Clock   clock.Clock
}

type PaystackService struct {
	log     *zap.Logger
	ledger  ledgerdomain.Service
	gateway TransactionGateway
	clock   clock.Clock
}

func NewPaystackService(p PaystackParams) paymentdomain.PaystackService {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &PaystackService{
		log:     p.Log.Named("payment.paystack"),
		ledger:  p.Ledger,
		gateway: p.Gateway,
		clock:   clk,
	}
}

func (s *PaystackService) Initialize(ctx context.Context, req paymentdomain.InitializeRequest) (*paymentdomain.InitializeResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Email = strings.TrimSpace(req.Email)
	if req.UserID == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, paymentdomain.ErrInvalidEmail
	}
	if math.IsNaN(req.Amount) || req.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	code := strings.ToUpper(strings.TrimSpace(req.Currency))
	if code == "" {
		code = defaultPaystackCurrency
	}
	if _, ok := paystackCurrencies[code]; !ok {
		return nil, paymentdomain.ErrInvalidCurrency
	}
	if s.gateway == nil || !s.gateway.Enabled() {
		return nil, paymentdomain.ErrProviderDisabled
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = fmt.Sprintf("PAYSTACK_%d_%s", s.clock.Now().UnixMilli(), uuid.NewString()[:8])
	}

	payment, err := s.ledger.CreatePendingPayment(ctx, ledgerdomain.CreatePaymentRequest{
		PaymentID:     reference,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Currency:      code,
		Provider:      ledgerdomain.ProviderPaystack,
		PaymentMethod: ledgerdomain.ProviderPaystack,
		Source:        ledgerdomain.SourceInitiate,
	})
	if err != nil {
		return nil, err
	}

	auth, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeParams{
		Email:       req.Email,
		AmountMinor: int64(math.Round(req.Amount * 100)),
		Currency:    code,
		Reference:   payment.PaymentID,
		Metadata: map[string]any{
			"userId":      req.UserID,
			"paymentType": ledgerdomain.ProviderPaystack,
		},
	})
	if err != nil {
		if markErr := s.ledger.MarkPaymentFailed(ctx, payment.PaymentID, err.Error()); markErr != nil {
			s.log.Error("mark payment failed", zap.String("payment_id", payment.PaymentID), zap.Error(markErr))
		}
		return nil, err
	}

	s.log.Info("paystack transaction initialized",
		zap.String("reference", payment.PaymentID),
		zap.String("user_id", req.UserID),
		zap.String("currency", code),
	)
	return &paymentdomain.InitializeResult{
		AccessCode:       auth.AccessCode,
		Reference:        payment.PaymentID,
		AuthorizationURL: auth.AuthorizationURL,
	}, nil
}

// Verify polls the transaction and feeds a success into the same ledger path
// the webhook uses, so a webhook and a poll for one payment credit once.
func (s *PaystackService) Verify(ctx context.Context, userID, reference string) (*paymentdomain.VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if s.gateway == nil || !s.gateway.Enabled() {
		return nil, paymentdomain.ErrProviderDisabled
	}

	tx, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}
	result := &paymentdomain.VerifyResult{
		Reference:   reference,
		Status:      tx.Status,
		Transaction: tx.Raw,
	}

	switch strings.ToLower(strings.TrimSpace(tx.Status)) {
	case "success":
		if strings.TrimSpace(tx.Reference) == "" {
			tx.Reference = reference
		}
		event, err := paystack.ChargeEvent(*tx, ledgerdomain.SourcePoll)
		if err != nil {
			return nil, err
		}
		userID = strings.TrimSpace(userID)
		if event.UserID == "" {
			event.UserID = userID
		} else if userID != "" && event.UserID != userID {
			return nil, ledgerdomain.ErrUserMismatch
		}
		outcome, err := s.ledger.ApplyEvent(ctx, *event)
		if err != nil {
			return nil, err
		}
		result.Credited = !outcome.Duplicate
		result.Duplicate = outcome.Duplicate
		result.CreditDays = outcome.CreditDays
		result.NewBalance = outcome.NewBalance
	case "failed":
		_, err := s.ledger.ApplyEvent(ctx, ledgerdomain.PaymentEvent{
			ProviderReference: reference,
			Provider:          ledgerdomain.ProviderPaystack,
			Source:            ledgerdomain.SourcePoll,
			Kind:              ledgerdomain.EventFailed,
			FailureReason:     "paystack transaction failed",
		})
		if err != nil && !errors.Is(err, ledgerdomain.ErrPaymentNotFound) {
			return nil, err
		}
	}
	return result, nil
}
