// Package metering decides whether a usage call consumes a credit day.
package metering

import (
	"time"

	"github.com/smallbiznis/kilekitabu/internal/ledger/domain"
)

type Reason string

const (
	ReasonFirstUse      Reason = "first_use"
	ReasonNewDay        Reason = "new_day"
	ReasonChargedToday  Reason = "already_charged_today"
	ReasonPaymentGrace  Reason = "payment_grace"
	ReasonMonthlyCapHit Reason = "monthly_cap"
)

type Decision struct {
	Deduct bool
	Reason Reason
}

// Decide applies the metering rules in order: at most one deduction per UTC
// day, none on a day the user paid, and none once the month's charged days
// reach the cap.
func Decide(account domain.Account, rates domain.Rates, now time.Time) Decision {
	now = now.UTC()

	reason := ReasonFirstUse
	if account.LastUsageDate != nil {
		if !account.LastUsageDate.UTC().Before(domain.DayStart(now)) {
			return Decision{Reason: ReasonChargedToday}
		}
		reason = ReasonNewDay
	}

	if account.LastPaymentDate != nil && domain.SameDay(*account.LastPaymentDate, now) {
		return Decision{Reason: ReasonPaymentGrace}
	}

	if account.MonthlyChargedDays[domain.MonthKey(now)] >= rates.MonthlyCapDays() {
		return Decision{Reason: ReasonMonthlyCapHit}
	}

	return Decision{Deduct: true, Reason: reason}
}

// Apply returns the account after one credit day is consumed. The balance
// has no floor.
func Apply(account domain.Account, now time.Time) domain.Account {
	now = now.UTC()
	next := account.Clone()
	next.CreditBalance--
	next.LastUsageDate = &now
	next.MonthlyChargedDays[domain.MonthKey(now)]++
	next.UpdatedAt = now
	return next
}
