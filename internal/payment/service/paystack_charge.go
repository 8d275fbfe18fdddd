package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/google/uuid"
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/paystack"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
	"go.uber.org/zap"
)

// Paystack's direct charge API defaults to naira.
const defaultCardChargeCurrency = "NGN"

type chargePrompt struct {
	status  string
	message string
}

var chargePrompts = map[string]chargePrompt{
	"send_pin":   {paymentdomain.ChargeStatusPINRequired, "Please provide your card PIN to complete the transaction"},
	"send_otp":   {paymentdomain.ChargeStatusOTPRequired, "Please provide the OTP sent to your phone to complete the transaction"},
	"send_phone": {paymentdomain.ChargeStatusPhoneRequired, "Please provide your phone number to complete the transaction"},
}

// ChargeCard opens a pending payment under the charge reference and sends
// the card to Paystack. The charge either settles immediately or comes back
// asking for a PIN, OTP or phone number, answered through SubmitCharge.
func (s *PaystackService) ChargeCard(ctx context.Context, req paymentdomain.CardChargeRequest) (*paymentdomain.CardChargeResult, error) {
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
		code = defaultCardChargeCurrency
	}
	if _, ok := paystackCurrencies[code]; !ok {
		return nil, paymentdomain.ErrInvalidCurrency
	}
	card, err := normalizeCard(req.Card)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil || !s.gateway.Enabled() {
		return nil, paymentdomain.ErrProviderDisabled
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = fmt.Sprintf("CARD_%d_%s", s.clock.Now().UnixMilli(), uuid.NewString()[:8])
	}
	payment, err := s.ledger.CreatePendingPayment(ctx, ledgerdomain.CreatePaymentRequest{
		PaymentID:     reference,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Currency:      code,
		Provider:      ledgerdomain.ProviderPaystack,
		PaymentMethod: ledgerdomain.ProviderPaystack,
		Source:        ledgerdomain.SourceDirect,
	})
	if err != nil {
		return nil, err
	}

	tx, err := s.gateway.Charge(ctx, paystack.ChargeParams{
		Email:       req.Email,
		AmountMinor: int64(math.Round(req.Amount * 100)),
		Currency:    code,
		Reference:   payment.PaymentID,
		Card:        card,
		Metadata: map[string]any{
			"userId":      req.UserID,
			"paymentType": "card",
		},
	})
	if err != nil {
		if markErr := s.ledger.MarkPaymentFailed(ctx, payment.PaymentID, err.Error()); markErr != nil {
			s.log.Error("mark payment failed", zap.String("payment_id", payment.PaymentID), zap.Error(markErr))
		}
		return nil, err
	}

	s.log.Info("paystack card charge attempted",
		zap.String("reference", payment.PaymentID),
		zap.String("user_id", req.UserID),
		zap.String("card_last4", card.Number[len(card.Number)-4:]),
		zap.String("status", tx.Status),
	)
	return s.settleCharge(ctx, req.UserID, payment.PaymentID, tx)
}

// SubmitCharge forwards the PIN, OTP or phone number a pending charge asked
// for. Only the user who opened the charge may continue it.
func (s *PaystackService) SubmitCharge(ctx context.Context, req paymentdomain.SubmitChargeRequest) (*paymentdomain.CardChargeResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Reference = strings.TrimSpace(req.Reference)
	req.Value = strings.TrimSpace(req.Value)
	switch {
	case req.UserID == "":
		return nil, ledgerdomain.ErrInvalidUser
	case req.Reference == "":
		return nil, paymentdomain.ErrInvalidEvent
	case req.Value == "":
		return nil, paymentdomain.ErrInvalidPayload
	}
	if req.Step != paystack.StepPIN && req.Step != paystack.StepOTP && req.Step != paystack.StepPhone {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if s.gateway == nil || !s.gateway.Enabled() {
		return nil, paymentdomain.ErrProviderDisabled
	}

	payment, err := s.ledger.GetPayment(ctx, req.Reference)
	if err != nil {
		return nil, err
	}
	if payment.UserID != req.UserID {
		return nil, ledgerdomain.ErrUserMismatch
	}

	tx, err := s.gateway.SubmitChargeStep(ctx, req.Step, req.Reference, req.Value)
	if err != nil {
		return nil, err
	}
	return s.settleCharge(ctx, req.UserID, req.Reference, tx)
}

// settleCharge turns a charge response into the app's status. A success is
// applied through the same ledger path as the webhook, so whichever arrives
// second is a duplicate.
func (s *PaystackService) settleCharge(ctx context.Context, userID, reference string, tx *paystack.Transaction) (*paymentdomain.CardChargeResult, error) {
	if strings.TrimSpace(tx.Reference) == "" {
		tx.Reference = reference
	}
	result := &paymentdomain.CardChargeResult{
		Status:        tx.Status,
		Reference:     tx.Reference,
		TransactionID: tx.ID.String(),
		Message:       strings.TrimSpace(tx.DisplayText),
	}

	status := strings.ToLower(strings.TrimSpace(tx.Status))
	if prompt, ok := chargePrompts[status]; ok {
		result.Status = prompt.status
		if result.Message == "" {
			result.Message = prompt.message
		}
		return result, nil
	}

	switch status {
	case "success":
		event, err := paystack.ChargeEvent(*tx, ledgerdomain.SourceDirect)
		if err != nil {
			return nil, err
		}
		if event.UserID == "" {
			event.UserID = userID
		} else if event.UserID != userID {
			return nil, ledgerdomain.ErrUserMismatch
		}
		outcome, err := s.ledger.ApplyEvent(ctx, *event)
		if err != nil {
			return nil, err
		}
		result.Status = paymentdomain.ChargeStatusCompleted
		result.Credit = &paymentdomain.CreditResult{
			PaymentID:        outcome.PaymentID,
			TransactionID:    result.TransactionID,
			Status:           string(outcome.Status),
			CreditDays:       outcome.CreditDays,
			NewCreditBalance: outcome.NewBalance,
			Duplicate:        outcome.Duplicate,
		}
	case "failed":
		reason := strings.TrimSpace(tx.GatewayResponse)
		if reason == "" {
			reason = "paystack charge failed"
		}
		_, err := s.ledger.ApplyEvent(ctx, ledgerdomain.PaymentEvent{
			ProviderReference: tx.Reference,
			Provider:          ledgerdomain.ProviderPaystack,
			Source:            ledgerdomain.SourceDirect,
			Kind:              ledgerdomain.EventFailed,
			FailureReason:     reason,
		})
		if err != nil && !errors.Is(err, ledgerdomain.ErrPaymentNotFound) {
			return nil, err
		}
		result.Status = paymentdomain.ChargeStatusFailed
		result.Message = reason
	default:
		if result.Message == "" {
			result.Message = "Payment is being processed"
		}
	}
	return result, nil
}

// normalizeCard strips spaces from the number and checks field shapes.
// Card data goes no further than the Paystack request.
func normalizeCard(card paymentdomain.CardDetails) (paystack.Card, error) {
	number := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, card.Number)
	out := paystack.Card{
		Number:      number,
		CVV:         strings.TrimSpace(card.CVV),
		ExpiryMonth: strings.TrimSpace(card.ExpirationMonth),
		ExpiryYear:  strings.TrimSpace(card.ExpirationYear),
	}
	if !digitsBetween(out.Number, 12, 19) || !digitsBetween(out.CVV, 3, 4) ||
		!digitsBetween(out.ExpiryMonth, 1, 2) || !digitsBetween(out.ExpiryYear, 2, 4) {
		return paystack.Card{}, paymentdomain.ErrInvalidCard
	}
	return out, nil
}

func digitsBetween(value string, minLen, maxLen int) bool {
	if len(value) < minLen || len(value) > maxLen {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
