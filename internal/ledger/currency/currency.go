// Package currency converts provider amounts into the base currency and
// credit days.
package currency

import (
	"math"
	"strconv"
	"strings"

	"github.com/smallbiznis/kilekitabu/internal/ledger/domain"
)

// RateFunc converts a non-base, non-USD amount into the base currency.
type RateFunc func(amount float64, currency string, rates domain.Rates) float64

// PlaceholderRate applies the flat fallback multiplier to every other
// currency. Replace it once real per-currency rates exist.
var PlaceholderRate RateFunc = func(amount float64, _ string, rates domain.Rates) float64 {
	return amount * rates.OtherCurrencyRate
}

// Normalize returns amount expressed in the base currency.
func Normalize(amount float64, currency string, rates domain.Rates) float64 {
	code := strings.ToUpper(strings.TrimSpace(currency))
	base := strings.ToUpper(strings.TrimSpace(rates.BaseCurrency))
	switch {
	case code == "" || code == base:
		return amount
	case code == "USD":
		return amount * rates.USDToBase
	default:
		return PlaceholderRate(amount, code, rates)
	}
}

// CreditDays is max(1, floor(amountBase/dailyRate)) for positive amounts.
func CreditDays(amountBase, dailyRate float64) int64 {
	if amountBase <= 0 || dailyRate <= 0 {
		return 0
	}
	days := int64(math.Floor(amountBase / dailyRate))
	if days < 1 {
		return 1
	}
	return days
}

// ChargeAmount formats the amount sent to the card processor. With the
// workaround on, 2.00 is sent as 2.01 because the processor rejects it.
func ChargeAmount(amount float64, workaround bool) string {
	if workaround && math.Abs(amount-2) < 0.001 {
		return "2.01"
	}
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
