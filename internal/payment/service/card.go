package service

import (
	"context"
	"math"
	"strings"

	"github.com/smallbiznis/kilekitabu/internal/clock"
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/cybersource"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	methodUnifiedCheckout         = "unified_checkout"
	methodUnifiedCheckoutComplete = "unified_checkout_complete"
)

// CardProcessor is the slice of the CyberSource client the service needs.
type CardProcessor interface {
	Enabled() bool
	CaptureContext(ctx context.Context, req paymentdomain.CaptureContextRequest) (string, error)
	Pay(ctx context.Context, req cybersource.PaymentRequest) (*cybersource.PaymentResponse, error)
}

type CardParams struct {
	fx.In

	Log       *zap.Logger
	Ledger    ledgerdomain.Service
	Processor CardProcessor
	Clock     clock.Clock
}

type CardService struct {
	log       *zap.Logger
	ledger    ledgerdomain.Service
	processor CardProcessor
	clock     clock.Clock
}

func NewCardService(p CardParams) paymentdomain.CardService {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &CardService{
		log:       p.Log.Named("payment.card"),
		ledger:    p.Ledger,
		processor: p.Processor,
		clock:     clk,
	}
}

func (s *CardService) CaptureContext(ctx context.Context, req paymentdomain.CaptureContextRequest) (string, error) {
	if s.processor == nil || !s.processor.Enabled() {
		return "", paymentdomain.ErrProviderDisabled
	}
	return s.processor.CaptureContext(ctx, req)
}

// Charge captures a transient token and credits the account when the
// processor approves it. A credit failure after an approved charge is
// logged and the processor response is still returned.
func (s *CardService) Charge(ctx context.Context, req paymentdomain.ChargeRequest) (*paymentdomain.CreditResult, map[string]any, error) {
	if strings.TrimSpace(req.TransientToken) == "" || strings.TrimSpace(req.Currency) == "" {
		return nil, nil, paymentdomain.ErrInvalidPayload
	}
	if math.IsNaN(req.Amount) || req.Amount <= 0 {
		return nil, nil, paymentdomain.ErrInvalidAmount
	}
	if s.processor == nil || !s.processor.Enabled() {
		return nil, nil, paymentdomain.ErrProviderDisabled
	}

	paymentType := strings.ToUpper(strings.TrimSpace(req.PaymentType))
	if paymentType == "" {
		paymentType = cybersource.PaymentTypeCard
	}
	resp, err := s.processor.Pay(ctx, cybersource.PaymentRequest{
		TransientToken: req.TransientToken,
		Amount:         req.Amount,
		Currency:       req.Currency,
		ReferenceCode:  req.ReferenceCode,
		PaymentType:    paymentType,
	})
	if err != nil {
		return nil, nil, err
	}
	if !resp.Approved() || strings.TrimSpace(req.UserID) == "" {
		s.log.Info("card charge not credited",
			zap.String("transaction_id", resp.ID),
			zap.String("status", resp.Status),
		)
		return nil, resp.Raw, nil
	}

	event, err := cybersource.ChargeEvent(req.UserID, resp.ID, req.ReferenceCode, req.Amount, req.Currency,
		methodUnifiedCheckout, ledgerdomain.SourceDirect, s.clock.Now())
	if err != nil {
		s.log.Error("build card charge event", zap.String("transaction_id", resp.ID), zap.Error(err))
		return nil, resp.Raw, nil
	}
	if paymentType == cybersource.PaymentTypeGooglePay {
		event.Provider = ledgerdomain.ProviderGooglePay
	}
	credit, err := s.credit(ctx, *event, resp.ID)
	if err != nil {
		s.log.Error("credit card payment",
			zap.String("transaction_id", resp.ID),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		return nil, resp.Raw, nil
	}
	return credit, resp.Raw, nil
}

// AddCredits credits a payment the checkout widget already completed.
func (s *CardService) AddCredits(ctx context.Context, req paymentdomain.AddCreditsRequest) (*paymentdomain.CreditResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if math.IsNaN(req.Amount) || req.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.Currency) == "" || strings.TrimSpace(req.TransactionID) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	event, err := cybersource.ChargeEvent(req.UserID, req.TransactionID, req.ReferenceCode, req.Amount, req.Currency,
		methodUnifiedCheckoutComplete, ledgerdomain.SourceDirect, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return s.credit(ctx, *event, req.TransactionID)
}

func (s *CardService) credit(ctx context.Context, event ledgerdomain.PaymentEvent, transactionID string) (*paymentdomain.CreditResult, error) {
	outcome, err := s.ledger.ApplyEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	return &paymentdomain.CreditResult{
		PaymentID:        outcome.PaymentID,
		TransactionID:    transactionID,
		Status:           string(outcome.Status),
		CreditDays:       outcome.CreditDays,
		NewCreditBalance: outcome.NewBalance,
		Duplicate:        outcome.Duplicate,
	}, nil
}
