package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Ledger   ledgerdomain.Service
	Adapters *adapters.Registry
}

type Service struct {
	log      *zap.Logger
	ledger   ledgerdomain.Service
	adapters *adapters.Registry
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		log:      p.Log.Named("payment.webhook"),
		ledger:   p.Ledger,
		adapters: p.Adapters,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	adapter, err := s.adapters.NewAdapter(provider, paymentdomain.AdapterConfig{})
	if err != nil {
		return err
	}
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.log.Info("payment webhook ignored",
				zap.String("provider", provider),
				zap.String("event", eventName(payload)),
			)
			return nil
		}
		return err
	}
	if event.RawPayload == nil {
		event.RawPayload = payload
	}

	outcome, err := s.ledger.ApplyEvent(ctx, *event)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrInvalidUser) {
			s.log.Warn("payment webhook missing user mapping",
				zap.String("provider", provider),
				zap.String("reference", event.ProviderReference),
			)
		}
		return err
	}
	s.log.Info("payment webhook applied",
		zap.String("provider", provider),
		zap.String("kind", string(event.Kind)),
		zap.String("payment_id", outcome.PaymentID),
		zap.Bool("duplicate", outcome.Duplicate),
	)
	return nil
}

func eventName(payload []byte) string {
	var envelope struct {
		Event string `json:"event"`
		Type  string `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	if envelope.Event != "" {
		return envelope.Event
	}
	return envelope.Type
}
