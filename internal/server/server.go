package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/kilekitabu/internal/clock"
	"github.com/smallbiznis/kilekitabu/internal/config"
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/kilekitabu/internal/notification/domain"
	"github.com/smallbiznis/kilekitabu/internal/observability"
	obsmiddleware "github.com/smallbiznis/kilekitabu/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	obstracing "github.com/smallbiznis/kilekitabu/internal/observability/tracing"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/paystack"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
	"github.com/smallbiznis/kilekitabu/internal/providers/firebase"
	"github.com/smallbiznis/kilekitabu/internal/ratelimit"
	reminderdomain "github.com/smallbiznis/kilekitabu/internal/reminder/domain"
	usagedomain "github.com/smallbiznis/kilekitabu/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultWebhookTimeout = 30 * time.Second

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "kilekitabu"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// TokenVerifier checks a Firebase ID token and returns its claims.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	clock          clock.Clock
	ledgerSvc      ledgerdomain.Service
	usageSvc       usagedomain.Service
	mpesaSvc       paymentdomain.MpesaService
	paystackSvc    paymentdomain.PaystackService
	cardSvc        paymentdomain.CardService
	webhookSvc     paymentdomain.WebhookService
	notifySvc      notificationdomain.Service
	reminderSvc    reminderdomain.Service
	limiter        *ratelimit.Limiter
	verifier       TokenVerifier
	obsMetrics     *obsmetrics.Metrics
	webhookTimeout time.Duration
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Clock       clock.Clock
	LedgerSvc   ledgerdomain.Service
	UsageSvc    usagedomain.Service
	MpesaSvc    paymentdomain.MpesaService
	PaystackSvc paymentdomain.PaystackService
	CardSvc     paymentdomain.CardService
	WebhookSvc  paymentdomain.WebhookService
	NotifySvc   notificationdomain.Service
	ReminderSvc reminderdomain.Service
	Firebase    firebase.Clients
	Limiter     *ratelimit.Limiter  `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
	Verifier    TokenVerifier       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http"),
		clock:          p.Clock,
		ledgerSvc:      p.LedgerSvc,
		usageSvc:       p.UsageSvc,
		mpesaSvc:       p.MpesaSvc,
		paystackSvc:    p.PaystackSvc,
		cardSvc:        p.CardSvc,
		webhookSvc:     p.WebhookSvc,
		notifySvc:      p.NotifySvc,
		reminderSvc:    p.ReminderSvc,
		limiter:        p.Limiter,
		verifier:       p.Verifier,
		obsMetrics:     p.ObsMetrics,
		webhookTimeout: defaultWebhookTimeout,
	}
	if svc.verifier == nil && p.Firebase.Auth != nil {
		svc.verifier = p.Firebase.Auth
	}
	if svc.clock == nil {
		svc.clock = clock.SystemClock{}
	}

	svc.registerAccountRoutes()
	svc.registerPaymentRoutes()
	svc.registerNotificationRoutes()
	svc.registerCronRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAccountRoutes() {
	api := s.engine.Group("/api")

	api.GET("/user/credit", s.UserAuthRequired(), s.GetCreditInfo)
	api.POST("/usage/record", s.UserAuthRequired(), s.UserRateLimit(), s.RecordUsage)
}

func (s *Server) registerPaymentRoutes() {
	api := s.engine.Group("/api")

	// -------- M-Pesa --------
	api.POST("/mpesa/initiate", s.UserAuthRequired(), s.UserRateLimit(), s.InitiateMpesa)
	api.POST("/mpesa/callback", s.MpesaCallback)

	// -------- Paystack --------
	api.POST("/paystack/initialize", s.UserAuthRequired(), s.InitializePaystack)
	api.GET("/paystack/verify/:reference", s.UserAuthRequired(), s.VerifyPaystack)
	api.GET("/cards/verify/:reference", s.UserAuthRequired(), s.VerifyPaystack)
	api.POST("/paystack/webhook", s.HandlePaystackWebhook)

	// -------- Direct card charge --------
	cards := api.Group("/cards", s.UserAuthRequired())
	{
		cards.POST("/pay", s.UserRateLimit(), s.PayCard)
		cards.POST("/submit-pin", s.SubmitChargeStep(paystack.StepPIN))
		cards.POST("/submit-otp", s.SubmitChargeStep(paystack.StepOTP))
		cards.POST("/submit-phone", s.SubmitChargeStep(paystack.StepPhone))
	}

	// -------- Payment Webhooks --------
	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)

	// -------- Unified Checkout --------
	uc := api.Group("/unified-checkout", s.UserAuthRequired())
	{
		uc.POST("/capture-context", s.CaptureContext)
		uc.POST("/charge", s.ChargeCard)
		uc.POST("/add-credits", s.AddCardCredits)
	}

	// -------- Google Pay --------
	gp := api.Group("/googlepay", s.UserAuthRequired())
	{
		gp.POST("/capture-context", s.GooglePayCaptureContext)
		gp.POST("/charge", s.GooglePayCharge)
	}
}

func (s *Server) registerNotificationRoutes() {
	notifications := s.engine.Group("/api/notifications")

	notifications.POST("/register-token", s.RegisterToken)
	notifications.POST("/send", s.SendNotification)
}

func (s *Server) registerCronRoutes() {
	cron := s.engine.Group("/api/cron", s.CronAuthRequired())

	cron.GET("/notifications/low-credit", s.CronLowCredit)
	cron.GET("/notifications/debt-reminders", s.CronDebtReminders)
	cron.GET("/notifications/all", s.CronAllNotifications)
}
