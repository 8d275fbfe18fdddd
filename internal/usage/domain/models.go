// Package domain contains the usage log model and metering contracts.
package domain

import "time"

// UsageLog is an append-only record of one recorded app session.
type UsageLog struct {
	UsageID         string    `json:"usage_id" gorm:"column:usage_id;primaryKey;type:text"`
	UserID          string    `json:"user_id" gorm:"column:user_id;type:text;not null;index"`
	ActionType      string    `json:"action_type" gorm:"column:action_type;type:text;not null"`
	CreditDeducted  int64     `json:"credit_deducted" gorm:"column:credit_deducted;not null"`
	RemainingCredit int64     `json:"remaining_credit" gorm:"column:remaining_credit;not null"`
	Timestamp       time.Time `json:"timestamp" gorm:"column:timestamp;not null"`
}

// TableName sets the database table name.
func (UsageLog) TableName() string { return "usage_logs" }
