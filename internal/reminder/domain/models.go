// Package domain holds the reminder scan models.
package domain

import (
	"context"
)

// Debt is one amount a user's customer owes them. DueDate is stored as the
// free-form string the app captured and parsed at scan time.
type Debt struct {
	DebtID      string  `json:"debt_id" gorm:"column:debt_id;primaryKey;type:text"`
	UserID      string  `json:"user_id" gorm:"column:user_id;type:text;not null;index"`
	Phone       string  `json:"phone" gorm:"column:phone;type:text"`
	AccountName string  `json:"account_name" gorm:"column:account_name;type:text"`
	Description string  `json:"description" gorm:"column:description;type:text"`
	DebtAmount  float64 `json:"debt_amount" gorm:"column:debt_amount;not null;default:0"`
	DueDate     string  `json:"due_date" gorm:"column:due_date;type:text"`
	IsComplete  bool    `json:"is_complete" gorm:"column:is_complete;not null;default:false"`
}

// TableName sets the database table name.
func (Debt) TableName() string { return "user_debts" }

// Summary reports one scanner pass.
type Summary struct {
	Job               string   `json:"job"`
	UsersScanned      int      `json:"users_scanned"`
	NotificationsSent int      `json:"notifications_sent"`
	UsersNotified     []string `json:"users_notified"`
	Failures          int      `json:"failures"`
}

type Service interface {
	ScanLowCredit(ctx context.Context) (Summary, error)
	ScanDebtReminders(ctx context.Context) (Summary, error)
}

const (
	JobLowCredit     = "low_credit_reminders"
	JobDebtReminders = "debt_reminders"
)
