package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// CreatePaymentRequest describes a payment initiated by the app before the
// provider confirms it.
type CreatePaymentRequest struct {
	PaymentID     string
	UserID        string
	Amount        float64
	Currency      string
	Provider      string
	PaymentMethod string
	Source        string
	PhoneE164     string
	ProviderData  map[string]any
}

type Service interface {
	ApplyEvent(ctx context.Context, event PaymentEvent) (Outcome, error)
	GetCreditInfo(ctx context.Context, userID string) (*CreditInfo, error)
	CreatePendingPayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error)
	AttachCheckoutRequest(ctx context.Context, paymentID, checkoutRequestID string) error
	ResolvePayment(ctx context.Context, checkoutRequestID, accountReference string) (*Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	MarkPaymentFailed(ctx context.Context, paymentID, reason string) error
	ListAccounts(ctx context.Context, userIDs []string) ([]Account, error)
}

type Repository interface {
	FindAccount(ctx context.Context, db *gorm.DB, userID string, forUpdate bool) (*Account, error)
	InsertAccount(ctx context.Context, db *gorm.DB, account *Account) (bool, error)
	SaveAccount(ctx context.Context, db *gorm.DB, account *Account) error
	ListAccounts(ctx context.Context, db *gorm.DB, userIDs []string) ([]Account, error)

	FindPayment(ctx context.Context, db *gorm.DB, paymentID string, forUpdate bool) (*Payment, error)
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	CompletePayment(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	RefundPayment(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	FailPayment(ctx context.Context, db *gorm.DB, paymentID, reason string, failedAt time.Time) (bool, error)

	SetCheckoutRequest(ctx context.Context, db *gorm.DB, paymentID, checkoutRequestID string, at time.Time) error
	InsertCorrelation(ctx context.Context, db *gorm.DB, correlation *PaymentCorrelation) (bool, error)
	FindCorrelation(ctx context.Context, db *gorm.DB, checkoutRequestID string) (*PaymentCorrelation, error)
}

// NewAccount returns the trial bootstrap state for a user seen for the first time.
func NewAccount(userID string, now time.Time) Account {
	now = now.UTC()
	return Account{
		UserID:             userID,
		CreditBalance:      0,
		RegistrationDate:   now,
		MonthlyPaid:        map[string]float64{},
		MonthlyChargedDays: map[string]int64{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
