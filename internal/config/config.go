package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint  string
	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Billing     BillingConfig
	Auth        AuthConfig
	Mpesa       MpesaConfig
	Paystack    PaystackConfig
	CyberSource CyberSourceConfig
	Scheduler   SchedulerConfig
	RateLimit   RateLimitConfig
	Events      EventsConfig

	CronSecretKey string
}

// BillingConfig carries the environment defaults for ledger rates.
// rates.yml, when present, takes precedence (see RatesHolder).
type BillingConfig struct {
	BaseCurrency           string
	DailyRate              float64
	FreeTrialDays          int
	MonthlyCap             float64
	MaxPrepayMonths        int
	USDToBaseRate          float64
	OtherCurrencyRate      float64
	MinAmount              float64
	MaxAmount              float64
	ChargeAmountWorkaround bool
	ResetUsersOnLogin      bool
}

type AuthConfig struct {
	AllowUnauthTest   bool
	FirebaseProjectID string
	CredentialsFile   string
}

type MpesaConfig struct {
	Environment    string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

// BaseURL resolves the Daraja host for the configured environment.
func (c MpesaConfig) BaseURL() string {
	if strings.EqualFold(strings.TrimSpace(c.Environment), "production") {
		return "https://api.safaricom.co.ke"
	}
	return "https://sandbox.safaricom.co.ke"
}

func (c MpesaConfig) Enabled() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.ShortCode != "" && c.Passkey != ""
}

type PaystackConfig struct {
	SecretKey     string
	PublicKey     string
	WebhookSecret string
	BaseURL       string
}

type CyberSourceConfig struct {
	MerchantID string
	KeyID      string
	SecretKey  string
	RunEnv     string
}

func (c CyberSourceConfig) Enabled() bool {
	return c.MerchantID != "" && c.KeyID != "" && c.SecretKey != ""
}

// ObservabilityConfig is read here so every env variable has one loader; the
// observability package projects it into logger, tracing and metrics config.
type ObservabilityConfig struct {
	LogLevel         string
	LogFormat        string
	DeployEnv        string
	ServiceVersion   string
	OtelEnabled      bool
	OtelEndpoint     string
	OtelProtocol     string
	OtelSamplingRate float64
}

type SchedulerConfig struct {
	Enabled     bool
	RunInterval time.Duration
	EnabledJobs []string
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	UsageRate     float64
	UsageBurst    int
}

type EventsConfig struct {
	KafkaBrokers []string
	LedgerTopic  string
}

const defaultCronSecret = "your-secret-key-here"

// CronGuardEnabled reports whether cron endpoints must present the secret.
func (c Config) CronGuardEnabled() bool {
	key := strings.TrimSpace(c.CronSecretKey)
	return key != "" && key != defaultCronSecret
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	paystackSecret := strings.TrimSpace(getenv("PAYSTACK_SECRET_KEY", ""))

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "kilekitabu"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Observability: ObservabilityConfig{
			LogLevel:         strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:        strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			DeployEnv:        strings.TrimSpace(os.Getenv("DEPLOYMENT_ENV")),
			ServiceVersion:   strings.TrimSpace(os.Getenv("SERVICE_VERSION")),
			OtelEnabled:      getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:     strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
			OtelProtocol:     otlpProtocol(),
			OtelSamplingRate: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "kilekitabu"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Billing: BillingConfig{
			BaseCurrency:           strings.ToUpper(getenv("BASE_CURRENCY", "KES")),
			DailyRate:              getenvFloat("DAILY_RATE", 5),
			FreeTrialDays:          int(getenvInt64("FREE_TRIAL_DAYS", 14)),
			MonthlyCap:             getenvFloat("MONTHLY_CAP_KES", 150),
			MaxPrepayMonths:        int(getenvInt64("MAX_PREPAY_MONTHS", 12)),
			USDToBaseRate:          getenvFloat("USD_TO_KES_RATE", 130),
			OtherCurrencyRate:      getenvFloat("OTHER_CURRENCY_RATE", 0.15),
			MinAmount:              getenvFloat("MIN_AMOUNT", 10),
			MaxAmount:              getenvFloat("MAX_AMOUNT", 1_000_000),
			ChargeAmountWorkaround: getenvBool("CHARGE_AMOUNT_WORKAROUND", true),
			ResetUsersOnLogin:      getenvBool("RESET_USERS_ON_LOGIN", false),
		},
		Auth: AuthConfig{
			AllowUnauthTest:   getenvBool("ALLOW_UNAUTH_TEST", false),
			FirebaseProjectID: strings.TrimSpace(getenv("FIREBASE_PROJECT_ID", "")),
			CredentialsFile:   strings.TrimSpace(getenv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		},
		Mpesa: MpesaConfig{
			Environment:    getenv("MPESA_ENV", "sandbox"),
			ConsumerKey:    strings.TrimSpace(getenv("MPESA_CONSUMER_KEY", "")),
			ConsumerSecret: strings.TrimSpace(getenv("MPESA_CONSUMER_SECRET", "")),
			ShortCode:      strings.TrimSpace(getenv("MPESA_SHORTCODE", "")),
			Passkey:        strings.TrimSpace(getenv("MPESA_PASSKEY", "")),
			CallbackURL:    strings.TrimSpace(getenv("MPESA_CALLBACK_URL", "")),
		},
		Paystack: PaystackConfig{
			SecretKey:     paystackSecret,
			PublicKey:     strings.TrimSpace(getenv("PAYSTACK_PUBLIC_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("PAYSTACK_WEBHOOK_SECRET", paystackSecret)),
			BaseURL:       getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		},
		CyberSource: CyberSourceConfig{
			MerchantID: strings.TrimSpace(getenv("CYBERSOURCE_MERCHANT_ID", "")),
			KeyID:      strings.TrimSpace(getenv("CYBERSOURCE_KEY_ID", "")),
			SecretKey:  strings.TrimSpace(getenv("CYBERSOURCE_SECRET_KEY", "")),
			RunEnv:     getenv("CYBERSOURCE_RUN_ENV", "apitest.cybersource.com"),
		},
		Scheduler: SchedulerConfig{
			Enabled:     getenvBool("SCHEDULER_ENABLED", false),
			RunInterval: getenvDuration("SCHEDULER_RUN_INTERVAL", time.Hour),
			EnabledJobs: parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:       int(getenvInt64("REDIS_DB", 0)),
			UsageRate:     getenvFloat("RATE_LIMIT_USAGE_RATE", 1),
			UsageBurst:    int(getenvInt64("RATE_LIMIT_USAGE_BURST", 10)),
		},
		Events: EventsConfig{
			KafkaBrokers: parseList(getenv("KAFKA_BROKERS", "")),
			LedgerTopic:  getenv("KAFKA_LEDGER_TOPIC", "ledger.events"),
		},
		CronSecretKey: strings.TrimSpace(getenv("CRON_SECRET_KEY", "")),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// otlpProtocol prefers the traces-specific protocol over the shared one.
func otlpProtocol() string {
	protocol := getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))
	return strings.ToLower(strings.TrimSpace(protocol))
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
