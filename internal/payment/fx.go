package payment

import (
	"strings"

	"github.com/smallbiznis/kilekitabu/internal/config"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/cybersource"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/mpesa"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/paystack"
	paymentservice "github.com/smallbiznis/kilekitabu/internal/payment/service"
	"github.com/smallbiznis/kilekitabu/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(NewRegistry),
	fx.Provide(NewMpesaClient),
	fx.Provide(NewPaystackClient),
	fx.Provide(NewCyberSourceClient),
	fx.Provide(paymentservice.NewMpesaService),
	fx.Provide(paymentservice.NewPaystackService),
	fx.Provide(paymentservice.NewCardService),
	fx.Provide(webhook.NewService),
)

func NewRegistry(cfg config.Config) *adapters.Registry {
	return adapters.NewRegistry(
		paystack.NewFactory(),
	).Configure(paystack.ProviderName, map[string]any{
		"webhook_secret": cfg.Paystack.WebhookSecret,
	})
}

func NewMpesaClient(cfg config.Config) paymentservice.STKPusher {
	return mpesa.NewClient(mpesa.ClientConfig{
		BaseURL:        cfg.Mpesa.BaseURL(),
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.ShortCode,
		Passkey:        cfg.Mpesa.Passkey,
		CallbackURL:    cfg.Mpesa.CallbackURL,
		Sandbox:        !strings.EqualFold(strings.TrimSpace(cfg.Mpesa.Environment), "production"),
	})
}

func NewPaystackClient(cfg config.Config) paymentservice.TransactionGateway {
	return paystack.NewClient(cfg.Paystack.SecretKey, cfg.Paystack.BaseURL)
}

func NewCyberSourceClient(cfg config.Config) paymentservice.CardProcessor {
	return cybersource.NewClient(cybersource.ClientConfig{
		MerchantID:             cfg.CyberSource.MerchantID,
		KeyID:                  cfg.CyberSource.KeyID,
		SecretKey:              cfg.CyberSource.SecretKey,
		Host:                   cfg.CyberSource.RunEnv,
		ChargeAmountWorkaround: cfg.Billing.ChargeAmountWorkaround,
	})
}
