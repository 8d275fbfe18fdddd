package service

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/smallbiznis/kilekitabu/internal/clock"
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/kilekitabu/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	"github.com/smallbiznis/kilekitabu/internal/reminder/domain"
	"github.com/smallbiznis/kilekitabu/pkg/db/option"
	"github.com/smallbiznis/kilekitabu/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	notificationLowCredit    = "low_credit"
	notificationDebtReminder = "debt_reminder"
)

// reminderHorizons are the only days-until-due values that trigger a reminder.
var reminderHorizons = map[int]bool{3: true, 1: true}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Ledger        ledgerdomain.Service
	Notifications notificationdomain.Service
	Clock         clock.Clock
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	ledger        ledgerdomain.Service
	notifications notificationdomain.Service
	debts         repository.Repository[domain.Debt]
	clock         clock.Clock
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("reminder.service"),
		ledger:        p.Ledger,
		notifications: p.Notifications,
		debts:         repository.ProvideStore[domain.Debt](p.DB),
		clock:         p.Clock,
		obsMetrics:    p.ObsMetrics,
	}
}

// ScanLowCredit notifies every user holding both a push token and an
// account whose balance is at or below the threshold.
func (s *Service) ScanLowCredit(ctx context.Context) (domain.Summary, error) {
	summary := domain.Summary{Job: domain.JobLowCredit, UsersNotified: []string{}}

	tokens, err := s.notifications.ListTokens(ctx)
	if err != nil {
		return summary, err
	}
	if len(tokens) == 0 {
		s.log.Info("no push tokens registered", zap.String("job", summary.Job))
		return summary, nil
	}

	userIDs := make([]string, 0, len(tokens))
	for _, t := range tokens {
		userIDs = append(userIDs, t.UserID)
	}
	accounts, err := s.ledger.ListAccounts(ctx, userIDs)
	if err != nil {
		return summary, err
	}
	byUser := make(map[string]ledgerdomain.Account, len(accounts))
	for _, a := range accounts {
		byUser[a.UserID] = a
	}

	sender := s.notifications.Sender()
	for _, t := range tokens {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		account, ok := byUser[t.UserID]
		if !ok {
			continue
		}
		summary.UsersScanned++
		if account.CreditBalance > LowCreditThreshold {
			continue
		}

		title, body := LowCreditCopy(account.CreditBalance)
		data := map[string]string{
			"type":              notificationLowCredit,
			"user_id":           t.UserID,
			"credit_balance":    strconv.FormatInt(account.CreditBalance, 10),
			"timestamp":         strconv.FormatInt(s.clock.Now().Unix(), 10),
			"notification_type": "low_credit_alert",
			"click_action":      clickActionPayment,
		}
		delivered := sender.Send(ctx, t.Token, title, body, data)
		s.obsMetrics.RecordNotification(ctx, notificationLowCredit, delivered)
		if !delivered {
			summary.Failures++
			s.log.Warn("low credit notification failed", zap.String("user_id", t.UserID))
			continue
		}
		summary.NotificationsSent++
		summary.UsersNotified = append(summary.UsersNotified, t.UserID)
		s.log.Info("low credit notification sent",
			zap.String("user_id", t.UserID),
			zap.Int64("credit_balance", account.CreditBalance),
		)
	}

	s.log.Info("low credit scan finished",
		zap.Int("users_scanned", summary.UsersScanned),
		zap.Int("notifications_sent", summary.NotificationsSent),
		zap.Int("failures", summary.Failures),
	)
	return summary, nil
}

type dueDebt struct {
	ID           string  `json:"id"`
	AccountName  string  `json:"account_name"`
	AccountPhone string  `json:"account_phone"`
	Amount       float64 `json:"amount"`
	DueDate      string  `json:"due_date"`
	Description  string  `json:"description"`
	DaysUntilDue int     `json:"days_until_due"`
}

// ScanDebtReminders sends one notification per user and horizon for open
// debts falling due in exactly three days or tomorrow.
func (s *Service) ScanDebtReminders(ctx context.Context) (domain.Summary, error) {
	summary := domain.Summary{Job: domain.JobDebtReminders, UsersNotified: []string{}}

	tokens, err := s.notifications.ListTokens(ctx)
	if err != nil {
		return summary, err
	}
	if len(tokens) == 0 {
		s.log.Info("no push tokens registered", zap.String("job", summary.Job))
		return summary, nil
	}

	now := s.clock.Now().UTC()
	sender := s.notifications.Sender()
	for _, t := range tokens {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.UsersScanned++

		groups, err := s.upcomingDebts(ctx, t.UserID, now)
		if err != nil {
			summary.Failures++
			s.log.Warn("failed to load debts", zap.String("user_id", t.UserID), zap.Error(err))
			continue
		}

		notified := false
		for _, days := range sortedHorizons(groups) {
			debts := groups[days]
			total := 0.0
			for _, d := range debts {
				total += d.Amount
			}
			title, body := DebtReminderCopy(days, debts, total)
			encoded, _ := json.Marshal(debts)
			data := map[string]string{
				"type":              notificationDebtReminder,
				"user_id":           t.UserID,
				"days_until_due":    strconv.Itoa(days),
				"debt_count":        strconv.Itoa(len(debts)),
				"total_amount":      formatAmount(total),
				"timestamp":         strconv.FormatInt(now.Unix(), 10),
				"notification_type": notificationDebtReminder,
				"debts":             string(encoded),
				"click_action":      clickActionDebt,
			}

			delivered := sender.Send(ctx, t.Token, title, body, data)
			s.obsMetrics.RecordNotification(ctx, notificationDebtReminder, delivered)
			if !delivered {
				summary.Failures++
				s.log.Warn("debt reminder failed",
					zap.String("user_id", t.UserID),
					zap.Int("days_until_due", days),
				)
				continue
			}
			summary.NotificationsSent++
			notified = true
			s.log.Info("debt reminder sent",
				zap.String("user_id", t.UserID),
				zap.Int("days_until_due", days),
				zap.Int("debt_count", len(debts)),
			)
		}
		if notified {
			summary.UsersNotified = append(summary.UsersNotified, t.UserID)
		}
	}

	s.log.Info("debt reminder scan finished",
		zap.Int("users_scanned", summary.UsersScanned),
		zap.Int("notifications_sent", summary.NotificationsSent),
		zap.Int("users_notified", len(summary.UsersNotified)),
		zap.Int("failures", summary.Failures),
	)
	return summary, nil
}

func (s *Service) upcomingDebts(ctx context.Context, userID string, now time.Time) (map[int][]dueDebt, error) {
	rows, err := s.debts.Find(ctx, &domain.Debt{UserID: userID},
		option.Where("is_complete = ?", false),
		option.OrderBy("debt_id", false),
	)
	if err != nil {
		return nil, err
	}

	groups := map[int][]dueDebt{}
	for _, debt := range rows {
		due, ok := ParseDueDate(debt.DueDate)
		if !ok {
			s.log.Warn("skipping debt with unparsable due date",
				zap.String("debt_id", debt.DebtID),
				zap.String("due_date", debt.DueDate),
			)
			continue
		}
		days := DaysUntil(due, now)
		if !reminderHorizons[days] {
			continue
		}
		name := debt.AccountName
		if name == "" {
			name = "Unknown"
		}
		groups[days] = append(groups[days], dueDebt{
			ID:           debt.DebtID,
			AccountName:  name,
			AccountPhone: debt.Phone,
			Amount:       debt.DebtAmount,
			DueDate:      debt.DueDate,
			Description:  debt.Description,
			DaysUntilDue: days,
		})
	}
	return groups, nil
}

// sortedHorizons yields the furthest horizon first.
func sortedHorizons(groups map[int][]dueDebt) []int {
	out := make([]int, 0, len(groups))
	for days := range groups {
		out = append(out, days)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
