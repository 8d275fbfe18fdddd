package domain

import (
	"fmt"
	"math"
	"strings"
)

// Rates is the immutable billing configuration snapshot used by
// reconciliation and metering.
type Rates struct {
	BaseCurrency      string  `mapstructure:"baseCurrency"`
	DailyRate         float64 `mapstructure:"dailyRate"`
	MonthlyCap        float64 `mapstructure:"monthlyCap"`
	USDToBase         float64 `mapstructure:"usdToBase"`
	OtherCurrencyRate float64 `mapstructure:"otherCurrencyRate"`
	FreeTrialDays     int     `mapstructure:"freeTrialDays"`
	MaxPrepayMonths   int     `mapstructure:"maxPrepayMonths"`
}

// DefaultRates mirrors the production tariff.
func DefaultRates() Rates {
	return Rates{
		BaseCurrency:      "KES",
		DailyRate:         5,
		MonthlyCap:        150,
		USDToBase:         130,
		OtherCurrencyRate: 0.15,
		FreeTrialDays:     14,
		MaxPrepayMonths:   12,
	}
}

// MonthlyCapDays is the number of usage days chargeable per calendar month.
func (r Rates) MonthlyCapDays() int64 {
	if r.DailyRate <= 0 {
		return 0
	}
	return int64(math.Floor(r.MonthlyCap / r.DailyRate))
}

// MaxTopUp is the largest single prepayment, in base currency.
func (r Rates) MaxTopUp() float64 {
	return r.MonthlyCap * float64(r.MaxPrepayMonths)
}

func (r Rates) BillingConfig() BillingConfig {
	return BillingConfig{
		DailyRate:       r.DailyRate,
		MonthlyCap:      r.MonthlyCap,
		MaxPrepayMonths: r.MaxPrepayMonths,
		MaxTopUp:        r.MaxTopUp(),
	}
}

func (r Rates) Validate() error {
	if strings.TrimSpace(r.BaseCurrency) == "" {
		return fmt.Errorf("%w: base currency is required", ErrInvalidRates)
	}
	if r.DailyRate <= 0 {
		return fmt.Errorf("%w: daily rate must be positive", ErrInvalidRates)
	}
	if r.MonthlyCap < r.DailyRate {
		return fmt.Errorf("%w: monthly cap below daily rate", ErrInvalidRates)
	}
	if r.USDToBase <= 0 || r.OtherCurrencyRate <= 0 {
		return fmt.Errorf("%w: exchange rates must be positive", ErrInvalidRates)
	}
	if r.FreeTrialDays < 0 || r.MaxPrepayMonths <= 0 {
		return fmt.Errorf("%w: trial and prepay bounds out of range", ErrInvalidRates)
	}
	return nil
}

// RatesSource yields the current rates snapshot.
type RatesSource interface {
	Rates() Rates
}

// StaticRates is a fixed RatesSource.
type StaticRates Rates

func (s StaticRates) Rates() Rates { return Rates(s) }
