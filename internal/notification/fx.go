package notification

import (
	"github.com/smallbiznis/kilekitabu/internal/notification/domain"
	"github.com/smallbiznis/kilekitabu/internal/notification/fcm"
	"github.com/smallbiznis/kilekitabu/internal/notification/service"
	"github.com/smallbiznis/kilekitabu/internal/providers/firebase"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification.service",
	fx.Provide(NewSender),
	fx.Provide(service.NewService),
)

// NewSender picks FCM delivery when a messaging client is available and the
// logging sender otherwise.
func NewSender(clients firebase.Clients, log *zap.Logger) domain.Sender {
	if clients.Messaging == nil {
		return fcm.NewLogSender(log)
	}
	return fcm.NewSender(clients.Messaging, log)
}
