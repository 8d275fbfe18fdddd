package domain

import (
	"context"
	"errors"
)

const DefaultActionType = "app_usage"

// Result is returned to the app after a usage call.
type Result struct {
	Message         string `json:"message"`
	CreditDeducted  int64  `json:"credit_deducted"`
	RemainingCredit int64  `json:"remaining_credit"`
	Reason          string `json:"reason"`
}

type Service interface {
	RecordUsage(ctx context.Context, userID, actionType string) (Result, error)
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidAction = errors.New("invalid_action_type")
)
