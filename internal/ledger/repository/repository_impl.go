package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func lockable(db *gorm.DB, forUpdate bool) *gorm.DB {
	if forUpdate {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, userID string, forUpdate bool) (*domain.Account, error) {
	var item domain.Account
	res := lockable(db.WithContext(ctx), forUpdate).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&item)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	normalizeAccount(&item)
	return &item, nil
}

func (r *repo) InsertAccount(ctx context.Context, db *gorm.DB, account *domain.Account) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(account)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SaveAccount(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	res := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("user_id = ?", account.UserID).
		Select("*").
		Omit("user_id", "created_at").
		Updates(account)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *repo) ListAccounts(ctx context.Context, db *gorm.DB, userIDs []string) ([]domain.Account, error) {
	var items []domain.Account
	q := db.WithContext(ctx).Order("user_id ASC")
	if userIDs != nil {
		if len(userIDs) == 0 {
			return []domain.Account{}, nil
		}
		q = q.Where("user_id IN ?", userIDs)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	for i := range items {
		normalizeAccount(&items[i])
	}
	return items, nil
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, paymentID string, forUpdate bool) (*domain.Payment, error) {
	var item domain.Payment
	res := lockable(db.WithContext(ctx), forUpdate).
		Where("payment_id = ?", paymentID).
		Limit(1).
		Find(&item)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "payment_id"}}, DoNothing: true}).
		Create(payment)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CompletePayment only transitions payments that are not settled yet. It
// returns false when another writer completed or refunded the row first.
func (r *repo) CompletePayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("payment_id = ? AND status IN ?", payment.PaymentID, []domain.PaymentStatus{
			domain.PaymentStatusPending,
			domain.PaymentStatusFailed,
		}).
		Updates(map[string]any{
			"status":            domain.PaymentStatusCompleted,
			"amount":            payment.Amount,
			"currency":          payment.Currency,
			"amount_base":       payment.AmountBase,
			"credit_days":       payment.CreditDays,
			"credit_days_added": payment.CreditDaysAdded,
			"provider_data":     payment.ProviderData,
			"completed_at":      payment.CompletedAt,
			"updated_at":        payment.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) RefundPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("payment_id = ? AND status = ?", payment.PaymentID, domain.PaymentStatusCompleted).
		Updates(map[string]any{
			"status":               domain.PaymentStatusRefunded,
			"credit_days_reversed": payment.CreditDaysReversed,
			"provider_data":        payment.ProviderData,
			"refunded_at":          payment.RefundedAt,
			"updated_at":           payment.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FailPayment(ctx context.Context, db *gorm.DB, paymentID, reason string, failedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("payment_id = ? AND status = ?", paymentID, domain.PaymentStatusPending).
		Updates(map[string]any{
			"status":         domain.PaymentStatusFailed,
			"failure_reason": reason,
			"failed_at":      failedAt,
			"updated_at":     failedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetCheckoutRequest(ctx context.Context, db *gorm.DB, paymentID, checkoutRequestID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("payment_id = ?", paymentID).
		Updates(map[string]any{
			"checkout_request_id": checkoutRequestID,
			"updated_at":          at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *repo) InsertCorrelation(ctx context.Context, db *gorm.DB, correlation *domain.PaymentCorrelation) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "checkout_request_id"}}, DoNothing: true}).
		Create(correlation)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindCorrelation(ctx context.Context, db *gorm.DB, checkoutRequestID string) (*domain.PaymentCorrelation, error) {
	var item domain.PaymentCorrelation
	res := db.WithContext(ctx).
		Where("checkout_request_id = ?", checkoutRequestID).
		Limit(1).
		Find(&item)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &item, nil
}

func normalizeAccount(a *domain.Account) {
	if a.MonthlyPaid == nil {
		a.MonthlyPaid = map[string]float64{}
	}
	if a.MonthlyChargedDays == nil {
		a.MonthlyChargedDays = map[string]int64{}
	}
}
