package config

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var defaultRatesPaths = []string{
	"/var/lib/kilekitabu/config", // volume-mounted config
	"/etc/kilekitabu",
	".",
}

// RatesHolder serves the current billing rates. Values come from rates.yml
// when present and fall back to the environment otherwise.
type RatesHolder struct {
	current atomic.Value // holds ledgerdomain.Rates
}

func NewRatesHolder(cfg Config, log *zap.Logger) (*RatesHolder, error) {
	return newRatesHolder(cfg, log, defaultRatesPaths...)
}

func newRatesHolder(cfg Config, log *zap.Logger, paths ...string) (*RatesHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.rates")

	v := viper.New()
	v.SetConfigName("rates")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("KILEKITABU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := RatesFromBilling(cfg.Billing)
	v.SetDefault("rates.baseCurrency", defaults.BaseCurrency)
	v.SetDefault("rates.dailyRate", defaults.DailyRate)
	v.SetDefault("rates.monthlyCap", defaults.MonthlyCap)
	v.SetDefault("rates.usdToBase", defaults.USDToBase)
	v.SetDefault("rates.otherCurrencyRate", defaults.OtherCurrencyRate)
	v.SetDefault("rates.freeTrialDays", defaults.FreeTrialDays)
	v.SetDefault("rates.maxPrepayMonths", defaults.MaxPrepayMonths)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	rates, err := decodeRates(v)
	if err != nil {
		return nil, err
	}

	holder := &RatesHolder{}
	holder.current.Store(rates)

	if !fileFound {
		return holder, nil
	}

	log.Info("rates loaded", zap.String("file", v.ConfigFileUsed()))
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRates(v)
		if err != nil {
			log.Warn("rates reload ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("rates reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// decodeRates goes through Unmarshal rather than UnmarshalKey so that
// defaults fill keys missing from a partial file.
func decodeRates(v *viper.Viper) (ledgerdomain.Rates, error) {
	var wrapper struct {
		Rates ledgerdomain.Rates `mapstructure:"rates"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return ledgerdomain.Rates{}, err
	}
	rates := wrapper.Rates
	rates.BaseCurrency = strings.ToUpper(strings.TrimSpace(rates.BaseCurrency))
	if err := rates.Validate(); err != nil {
		return ledgerdomain.Rates{}, err
	}
	return rates, nil
}

// Rates returns the current immutable snapshot.
func (h *RatesHolder) Rates() ledgerdomain.Rates {
	return h.current.Load().(ledgerdomain.Rates)
}

func RatesFromBilling(b BillingConfig) ledgerdomain.Rates {
	return ledgerdomain.Rates{
		BaseCurrency:      b.BaseCurrency,
		DailyRate:         b.DailyRate,
		MonthlyCap:        b.MonthlyCap,
		USDToBase:         b.USDToBaseRate,
		OtherCurrencyRate: b.OtherCurrencyRate,
		FreeTrialDays:     b.FreeTrialDays,
		MaxPrepayMonths:   b.MaxPrepayMonths,
	}
}
