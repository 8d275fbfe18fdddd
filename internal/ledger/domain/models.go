package domain

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentStatus is the lifecycle state of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

const (
	ProviderMpesa       = "mpesa"
	ProviderPaystack    = "paystack_card"
	ProviderCyberSource = "cybersource_unified_checkout"
	ProviderGooglePay   = "google_pay"
)

const (
	SourceInitiate = "initiate"
	SourceWebhook  = "webhook"
	SourceCallback = "callback"
	SourcePoll     = "poll"
	SourceDirect   = "direct"
)

// Account is the per-user credit ledger. Balance is measured in days of
// service and may go negative through usage metering.
type Account struct {
	UserID             string             `json:"user_id" gorm:"column:user_id;primaryKey;type:text"`
	CreditBalance      int64              `json:"credit_balance" gorm:"column:credit_balance;not null;default:0"`
	RegistrationDate   time.Time          `json:"registration_date" gorm:"column:registration_date;not null"`
	TrialResetDate     *time.Time         `json:"trial_reset_date,omitempty" gorm:"column:trial_reset_date"`
	LastUsageDate      *time.Time         `json:"last_usage_date" gorm:"column:last_usage_date"`
	LastPaymentDate    *time.Time         `json:"last_payment_date,omitempty" gorm:"column:last_payment_date"`
	TotalPayments      float64            `json:"total_payments" gorm:"column:total_payments;not null;default:0"`
	MonthlyPaid        map[string]float64 `json:"monthly_paid" gorm:"column:monthly_paid;serializer:json"`
	MonthlyChargedDays map[string]int64   `json:"monthly_charged_days" gorm:"column:monthly_charged_days;serializer:json"`
	CreatedAt          time.Time          `json:"created_at" gorm:"column:created_at;not null"`
	UpdatedAt          time.Time          `json:"updated_at" gorm:"column:updated_at;not null"`
}

func (Account) TableName() string { return "credit_accounts" }

// Clone returns a deep copy so decision functions never mutate a snapshot.
func (a Account) Clone() Account {
	out := a
	out.TrialResetDate = cloneTime(a.TrialResetDate)
	out.LastUsageDate = cloneTime(a.LastUsageDate)
	out.LastPaymentDate = cloneTime(a.LastPaymentDate)
	out.MonthlyPaid = make(map[string]float64, len(a.MonthlyPaid))
	for k, v := range a.MonthlyPaid {
		out.MonthlyPaid[k] = v
	}
	out.MonthlyChargedDays = make(map[string]int64, len(a.MonthlyChargedDays))
	for k, v := range a.MonthlyChargedDays {
		out.MonthlyChargedDays[k] = v
	}
	return out
}

// Payment is one payment attempt. PaymentID doubles as the idempotency key.
type Payment struct {
	PaymentID          string            `json:"payment_id" gorm:"column:payment_id;primaryKey;type:text"`
	UserID             string            `json:"user_id" gorm:"column:user_id;type:text;not null;index"`
	Amount             float64           `json:"amount" gorm:"column:amount;not null"`
	Currency           string            `json:"currency" gorm:"column:currency;type:text;not null"`
	AmountBase         float64           `json:"amount_base" gorm:"column:amount_base;not null;default:0"`
	CreditDays         int64             `json:"credit_days" gorm:"column:credit_days;not null;default:0"`
	Status             PaymentStatus     `json:"status" gorm:"column:status;type:text;not null"`
	Provider           string            `json:"provider" gorm:"column:provider;type:text;not null"`
	PaymentMethod      string            `json:"payment_method" gorm:"column:payment_method;type:text"`
	Source             string            `json:"source" gorm:"column:source;type:text"`
	PhoneE164          string            `json:"phone_e164,omitempty" gorm:"column:phone_e164;type:text"`
	MonthKey           string            `json:"month_key" gorm:"column:month_key;type:text"`
	CheckoutRequestID  *string           `json:"checkout_request_id,omitempty" gorm:"column:checkout_request_id;type:text;uniqueIndex"`
	CreditDaysAdded    int64             `json:"credit_days_added" gorm:"column:credit_days_added;not null;default:0"`
	CreditDaysReversed int64             `json:"credit_days_reversed" gorm:"column:credit_days_reversed;not null;default:0"`
	FailureReason      string            `json:"failure_reason,omitempty" gorm:"column:failure_reason;type:text"`
	ProviderData       datatypes.JSONMap `json:"provider_data,omitempty" gorm:"column:provider_data"`
	CreatedAt          time.Time         `json:"created_at" gorm:"column:created_at;not null"`
	UpdatedAt          time.Time         `json:"updated_at" gorm:"column:updated_at;not null"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty" gorm:"column:completed_at"`
	FailedAt           *time.Time        `json:"failed_at,omitempty" gorm:"column:failed_at"`
	RefundedAt         *time.Time        `json:"refunded_at,omitempty" gorm:"column:refunded_at"`
}

func (Payment) TableName() string { return "payments" }

// PaymentCorrelation maps a provider correlation id to the payment it belongs to.
type PaymentCorrelation struct {
	CheckoutRequestID string    `gorm:"column:checkout_request_id;primaryKey;type:text"`
	PaymentID         string    `gorm:"column:payment_id;type:text;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;not null"`
}

func (PaymentCorrelation) TableName() string { return "payment_correlations" }

type EventKind string

const (
	EventChargeSuccess EventKind = "charge_success"
	EventRefund        EventKind = "refund"
	EventFailed        EventKind = "failed"
)

// PaymentEvent is the provider-neutral money movement fed to reconciliation.
// AmountMinor is expressed in the currency's smallest unit (cents).
type PaymentEvent struct {
	UserID            string
	ProviderReference string
	Provider          string
	PaymentMethod     string
	Source            string
	AmountMinor       int64
	Currency          string
	Kind              EventKind
	FailureReason     string
	OccurredAt        time.Time
	RawPayload        []byte
	ProviderData      map[string]any
}

// MajorAmount converts the minor-unit amount to major units.
func (e PaymentEvent) MajorAmount() float64 {
	return float64(e.AmountMinor) / 100
}

// Outcome reports what reconciliation did with an event.
type Outcome struct {
	PaymentID  string        `json:"payment_id"`
	UserID     string        `json:"user_id"`
	Status     PaymentStatus `json:"status"`
	Duplicate  bool          `json:"duplicate"`
	CreditDays int64         `json:"credit_days"`
	NewBalance int64         `json:"new_balance"`
}

// CreditInfo is the account view returned to the app.
type CreditInfo struct {
	UserID             string        `json:"user_id"`
	CreditBalance      int64         `json:"credit_balance"`
	RegistrationDate   time.Time     `json:"registration_date"`
	TrialResetDate     *time.Time    `json:"trial_reset_date,omitempty"`
	LastUsageDate      *time.Time    `json:"last_usage_date"`
	LastPaymentDate    *time.Time    `json:"last_payment_date,omitempty"`
	TotalPayments      float64       `json:"total_payments"`
	IsInTrial          bool          `json:"is_in_trial"`
	TrialDaysRemaining int           `json:"trial_days_remaining"`
	BillingConfig      BillingConfig `json:"billing_config"`
}

type BillingConfig struct {
	DailyRate       float64 `json:"daily_rate_kes"`
	MonthlyCap      float64 `json:"monthly_cap_kes"`
	MaxPrepayMonths int     `json:"max_prepay_months"`
	MaxTopUp        float64 `json:"max_top_up_kes"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
