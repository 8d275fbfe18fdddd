// Package firebase wires the Firebase Admin SDK clients used for bearer
// token verification and push delivery.
package firebase

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/smallbiznis/kilekitabu/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Clients holds the optional Firebase clients. Both are nil when Firebase is
// not configured; callers fall back to their unauthenticated or logging modes.
type Clients struct {
	Auth      *auth.Client
	Messaging *messaging.Client
}

var Module = fx.Module("providers.firebase",
	fx.Provide(New),
)

func New(cfg config.Config, log *zap.Logger) Clients {
	log = log.Named("firebase")
	if cfg.Auth.FirebaseProjectID == "" && cfg.Auth.CredentialsFile == "" {
		log.Info("firebase not configured; push and token verification disabled")
		return Clients{}
	}

	ctx := context.Background()
	var opts []option.ClientOption
	if cfg.Auth.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Auth.CredentialsFile))
	}
	var appCfg *firebase.Config
	if cfg.Auth.FirebaseProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.Auth.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		log.Warn("firebase app init failed", zap.Error(err))
		return Clients{}
	}

	var clients Clients
	if clients.Auth, err = app.Auth(ctx); err != nil {
		log.Warn("firebase auth client init failed", zap.Error(err))
		clients.Auth = nil
	}
	if clients.Messaging, err = app.Messaging(ctx); err != nil {
		log.Warn("firebase messaging client init failed", zap.Error(err))
		clients.Messaging = nil
	}
	log.Info("firebase initialized", zap.String("project_id", cfg.Auth.FirebaseProjectID))
	return clients
}
