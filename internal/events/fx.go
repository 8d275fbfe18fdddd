package events

import (
	"context"
	"strings"

	"github.com/smallbiznis/kilekitabu/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

// NewPublisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Publisher {
	if len(cfg.Events.KafkaBrokers) == 0 {
		return NopPublisher{}
	}
	topic := strings.TrimSpace(cfg.Events.LedgerTopic)
	pub := NewKafkaPublisher(cfg.Events.KafkaBrokers, topic)
	log.Named("events").Info("kafka publisher enabled",
		zap.Strings("brokers", cfg.Events.KafkaBrokers),
		zap.String("topic", topic),
	)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub
}
