package service

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/kilekitabu/internal/clock"
	"github.com/smallbiznis/kilekitabu/internal/events"
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	usagedomain "github.com/smallbiznis/kilekitabu/internal/usage/domain"
	"github.com/smallbiznis/kilekitabu/internal/usage/metering"
	"github.com/smallbiznis/kilekitabu/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const messageRecorded = "Usage recorded"

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Ledger     ledgerdomain.Repository
	Rates      ledgerdomain.RatesSource
	Clock      clock.Clock
	GenID      *snowflake.Node     `optional:"true"`
	Publisher  events.Publisher    `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	ledger     ledgerdomain.Repository
	usagerepo  repository.Repository[usagedomain.UsageLog]
	rates      ledgerdomain.RatesSource
	clock      clock.Clock
	genID      *snowflake.Node
	publisher  events.Publisher
	obsMetrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) usagedomain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("usage.service"),

		ledger:     p.Ledger,
		usagerepo:  repository.ProvideStore[usagedomain.UsageLog](p.DB),
		rates:      p.Rates,
		clock:      p.Clock,
		genID:      p.GenID,
		publisher:  publisher,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) RecordUsage(ctx context.Context, userID, actionType string) (usagedomain.Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return usagedomain.Result{}, usagedomain.ErrInvalidUser
	}
	actionType = strings.TrimSpace(actionType)
	if actionType == "" {
		actionType = usagedomain.DefaultActionType
	}
	if len(actionType) > 64 {
		return usagedomain.Result{}, usagedomain.ErrInvalidAction
	}

	rates := s.rates.Rates()
	now := s.clock.Now().UTC()

	var (
		decision metering.Decision
		balance  int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.lockAccount(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		decision = metering.Decide(*account, rates, now)
		if !decision.Deduct {
			balance = account.CreditBalance
			return nil
		}

		next := metering.Apply(*account, now)
		if err := s.ledger.SaveAccount(ctx, tx, &next); err != nil {
			return err
		}
		entry := usagedomain.UsageLog{
			UsageID:         newUsageID(now),
			UserID:          userID,
			ActionType:      actionType,
			CreditDeducted:  1,
			RemainingCredit: next.CreditBalance,
			Timestamp:       now,
		}
		if err := s.usagerepo.WithTrx(tx).Create(ctx, &entry); err != nil {
			return err
		}
		balance = next.CreditBalance
		return nil
	})
	if err != nil {
		s.log.Error("failed to record usage", zap.String("user_id", userID), zap.Error(err))
		return usagedomain.Result{}, err
	}

	s.obsMetrics.RecordUsage(ctx, string(decision.Reason), decision.Deduct)

	result := usagedomain.Result{
		Message:         messageRecorded,
		RemainingCredit: balance,
		Reason:          string(decision.Reason),
	}
	if decision.Deduct {
		result.CreditDeducted = 1
		s.log.Info("usage deducted",
			zap.String("user_id", userID),
			zap.String("reason", string(decision.Reason)),
			zap.Int64("remaining_credit", balance),
		)
		s.publishDeducted(ctx, userID, actionType, balance, now)
	} else {
		s.log.Debug("usage not charged",
			zap.String("user_id", userID),
			zap.String("reason", string(decision.Reason)),
		)
	}
	return result, nil
}

func (s *Service) lockAccount(ctx context.Context, tx *gorm.DB, userID string, now time.Time) (*ledgerdomain.Account, error) {
	account, err := s.ledger.FindAccount(ctx, tx, userID, true)
	if err != nil || account != nil {
		return account, err
	}
	created := ledgerdomain.NewAccount(userID, now)
	inserted, err := s.ledger.InsertAccount(ctx, tx, &created)
	if err != nil {
		return nil, err
	}
	if inserted {
		return &created, nil
	}
	account, err = s.ledger.FindAccount(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ledgerdomain.ErrAccountNotFound
	}
	return account, nil
}

func (s *Service) publishDeducted(ctx context.Context, userID, actionType string, balance int64, now time.Time) {
	id := newUsageID(now)
	if s.genID != nil {
		id = s.genID.Generate().String()
	}
	err := s.publisher.Publish(ctx, events.Event{
		ID:         id,
		Type:       events.EventUsageDeducted,
		UserID:     userID,
		CreditDays: 1,
		Balance:    balance,
		OccurredAt: now,
		Payload:    map[string]any{"action_type": actionType},
	})
	if err != nil {
		s.log.Warn("failed to publish usage event", zap.String("user_id", userID), zap.Error(err))
	}
}

func newUsageID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
