package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/kilekitabu/internal/clock"
	"github.com/smallbiznis/kilekitabu/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	"github.com/smallbiznis/kilekitabu/pkg/db/option"
	"github.com/smallbiznis/kilekitabu/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const notificationTypeDirect = "direct"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Sender     domain.Sender
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	tokens     repository.Repository[domain.Token]
	sender     domain.Sender
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("notification.service"),
		tokens:     repository.ProvideStore[domain.Token](p.DB),
		sender:     p.Sender,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Sender() domain.Sender { return s.sender }

// RegisterToken stores the device token, replacing any previous one.
func (s *Service) RegisterToken(ctx context.Context, userID, token string) error {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" {
		return domain.ErrInvalidUser
	}
	if token == "" {
		return domain.ErrInvalidToken
	}

	record := domain.Token{
		UserID:    userID,
		Token:     token,
		UpdatedAt: s.clock.Now().UTC(),
	}
	if err := s.tokens.Upsert(ctx, &record, "token", "updated_at"); err != nil {
		return err
	}
	s.log.Info("push token registered", zap.String("user_id", userID))
	return nil
}

func (s *Service) Token(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", domain.ErrInvalidUser
	}
	record, err := s.tokens.FindOne(ctx, &domain.Token{UserID: userID})
	if err != nil {
		return "", err
	}
	if record == nil || record.Token == "" {
		return "", domain.ErrTokenNotFound
	}
	return record.Token, nil
}

func (s *Service) ListTokens(ctx context.Context) ([]domain.Token, error) {
	rows, err := s.tokens.Find(ctx, nil,
		option.Where("token <> ?", ""),
		option.OrderBy("user_id", false),
	)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Token, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

func (s *Service) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) (bool, error) {
	if strings.TrimSpace(title) == "" {
		return false, domain.ErrInvalidTitle
	}
	token, err := s.Token(ctx, userID)
	if err != nil {
		return false, err
	}
	delivered := s.sender.Send(ctx, token, title, body, data)
	s.obsMetrics.RecordNotification(ctx, notificationTypeDirect, delivered)
	return delivered, nil
}
