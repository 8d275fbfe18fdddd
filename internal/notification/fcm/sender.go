// Package fcm delivers push notifications through Firebase Cloud Messaging.
package fcm

import (
	"context"

	"firebase.google.com/go/v4/messaging"
	"github.com/smallbiznis/kilekitabu/internal/notification/domain"
	"go.uber.org/zap"
)

// Client is the subset of the messaging client the sender needs.
type Client interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type Sender struct {
	client Client
	log    *zap.Logger
}

func NewSender(client Client, log *zap.Logger) *Sender {
	return &Sender{client: client, log: log.Named("notification.fcm")}
}

func (s *Sender) Send(ctx context.Context, token, title, body string, data map[string]string) bool {
	msg := BuildMessage(token, title, body, data)
	id, err := s.client.Send(ctx, msg)
	if err != nil {
		s.log.Warn("push delivery failed",
			zap.String("token_prefix", tokenPrefix(token)),
			zap.Error(err),
		)
		return false
	}
	s.log.Debug("push delivered", zap.String("message_id", id))
	return true
}

// BuildMessage renders the Android high-priority message the app expects.
func BuildMessage(token, title, body string, data map[string]string) *messaging.Message {
	if data == nil {
		data = map[string]string{}
	}
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Icon:  "ic_notification",
				Color: "#0C57A6",
				Sound: "default",
			},
		},
	}
}

// LogSender stands in when Firebase is not configured. It logs the message
// and reports success.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log.Named("notification.log")}
}

func (s *LogSender) Send(_ context.Context, token, title, body string, data map[string]string) bool {
	s.log.Info("push suppressed (firebase disabled)",
		zap.String("token_prefix", tokenPrefix(token)),
		zap.String("title", title),
		zap.String("body", body),
		zap.Any("data", data),
	)
	return true
}

func tokenPrefix(token string) string {
	if len(token) > 20 {
		return token[:20]
	}
	return token
}

var (
	_ domain.Sender = (*Sender)(nil)
	_ domain.Sender = (*LogSender)(nil)
)
