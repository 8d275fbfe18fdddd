// Package reconcile holds the pure state transitions applied when a payment
// event reaches the ledger. Callers persist the returned state.
package reconcile

import (
	"strings"
	"time"

	"github.com/smallbiznis/kilekitabu/internal/ledger/currency"
	"github.com/smallbiznis/kilekitabu/internal/ledger/domain"
)

// Decision is the next account and payment state for one event.
// Skip means the event was already applied and nothing must be written.
type Decision struct {
	Skip       bool
	NewPayment bool
	CreditDays int64
	Account    domain.Account
	Payment    domain.Payment
}

// ApplyCharge credits the account for a successful payment.
func ApplyCharge(account domain.Account, payment domain.Payment, event domain.PaymentEvent, rates domain.Rates, now time.Time) (Decision, error) {
	if isSettled(payment.Status) {
		return Decision{Skip: true, Account: account, Payment: payment}, nil
	}
	now = now.UTC()

	amount := payment.Amount
	cur := payment.Currency
	if amount <= 0 {
		amount = event.MajorAmount()
		cur = event.Currency
	}
	amountBase := payment.AmountBase
	if amountBase <= 0 {
		amountBase = currency.Normalize(amount, cur, rates)
	}

	days := payment.CreditDays
	if days <= 0 {
		days = currency.CreditDays(amountBase, rates.DailyRate)
	}
	if days <= 0 {
		return Decision{}, domain.ErrInvalidAmount
	}

	next := account.Clone()
	next.CreditBalance += days
	next.TotalPayments += amountBase
	next.MonthlyPaid[domain.MonthKey(now)] += amountBase
	next.LastPaymentDate = &now
	next.UpdatedAt = now

	updated := payment
	updated.Amount = amount
	if strings.TrimSpace(updated.Currency) == "" {
		updated.Currency = strings.ToUpper(strings.TrimSpace(cur))
	}
	updated.AmountBase = amountBase
	updated.CreditDays = days
	updated.CreditDaysAdded = days
	updated.Status = domain.PaymentStatusCompleted
	updated.CompletedAt = &now
	updated.UpdatedAt = now
	updated.ProviderData = mergeProviderData(payment.ProviderData, event.ProviderData)

	return Decision{CreditDays: days, Account: next, Payment: updated}, nil
}

// ApplyRefund reverses credit for a refunded payment, clamping the balance
// at zero. A nil payment means the provider refunded a payment this ledger
// never recorded; the refund is still applied and a refunded record is
// produced.
func ApplyRefund(account domain.Account, payment *domain.Payment, event domain.PaymentEvent, rates domain.Rates, now time.Time) (Decision, error) {
	now = now.UTC()

	var record domain.Payment
	newPayment := payment == nil
	if newPayment {
		record = paymentFromEvent(event, rates, now)
	} else {
		record = *payment
		switch record.Status {
		case domain.PaymentStatusRefunded:
			return Decision{Skip: true, Account: account, Payment: record}, nil
		case domain.PaymentStatusCompleted:
		default:
			return Decision{}, domain.ErrInvalidTransition
		}
	}

	days := int64(0)
	if event.AmountMinor > 0 {
		days = currency.CreditDays(currency.Normalize(event.MajorAmount(), event.Currency, rates), rates.DailyRate)
	}
	if !newPayment && (days == 0 || days > record.CreditDaysAdded) {
		days = record.CreditDaysAdded
	}
	if newPayment && days == 0 {
		return Decision{}, domain.ErrInvalidAmount
	}

	next := account.Clone()
	next.CreditBalance -= days
	if next.CreditBalance < 0 {
		next.CreditBalance = 0
	}
	next.UpdatedAt = now

	record.Status = domain.PaymentStatusRefunded
	record.CreditDaysReversed = days
	record.RefundedAt = &now
	record.UpdatedAt = now
	record.ProviderData = mergeProviderData(record.ProviderData, event.ProviderData)

	return Decision{NewPayment: newPayment, CreditDays: days, Account: next, Payment: record}, nil
}

// ApplyFailure moves a pending payment to failed. Any other state is left
// untouched and reported as a skip.
func ApplyFailure(payment domain.Payment, reason string, now time.Time) Decision {
	if payment.Status != domain.PaymentStatusPending {
		return Decision{Skip: true, Payment: payment}
	}
	now = now.UTC()
	updated := payment
	updated.Status = domain.PaymentStatusFailed
	updated.FailureReason = strings.TrimSpace(reason)
	updated.FailedAt = &now
	updated.UpdatedAt = now
	return Decision{Payment: updated}
}

func isSettled(status domain.PaymentStatus) bool {
	return status == domain.PaymentStatusCompleted || status == domain.PaymentStatusRefunded
}

func paymentFromEvent(event domain.PaymentEvent, rates domain.Rates, now time.Time) domain.Payment {
	amount := event.MajorAmount()
	return domain.Payment{
		PaymentID:     event.ProviderReference,
		UserID:        event.UserID,
		Amount:        amount,
		Currency:      strings.ToUpper(strings.TrimSpace(event.Currency)),
		AmountBase:    currency.Normalize(amount, event.Currency, rates),
		Status:        domain.PaymentStatusPending,
		Provider:      event.Provider,
		PaymentMethod: event.PaymentMethod,
		Source:        event.Source,
		MonthKey:      domain.MonthKey(now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewPendingPayment builds the record created when a provider reports a
// payment the ledger has not seen before.
func NewPendingPayment(event domain.PaymentEvent, rates domain.Rates, now time.Time) domain.Payment {
	return paymentFromEvent(event, rates, now.UTC())
}

func mergeProviderData(existing map[string]any, incoming map[string]any) map[string]any {
	if len(existing) == 0 && len(incoming) == 0 {
		return existing
	}
	out := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}
