package currency

import (
	"math"
	"testing"

	"github.com/smallbiznis/kilekitabu/internal/ledger/domain"
)

func TestNormalize(t *testing.T) {
	rates := domain.DefaultRates()
	cases := []struct {
		name     string
		amount   float64
		currency string
		want     float64
	}{
		{name: "base", amount: 100, currency: "KES", want: 100},
		{name: "base lowercase", amount: 100, currency: "kes", want: 100},
		{name: "usd", amount: 2, currency: "USD", want: 260},
		{name: "other", amount: 100, currency: "NGN", want: 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.amount, tc.currency, rates)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Normalize(%v, %s) = %v, want %v", tc.amount, tc.currency, got, tc.want)
			}
		})
	}
}

func TestNormalizeUsesPlaceholderRate(t *testing.T) {
	original := PlaceholderRate
	t.Cleanup(func() { PlaceholderRate = original })

	PlaceholderRate = func(amount float64, currency string, _ domain.Rates) float64 {
		if currency != "EUR" {
			t.Fatalf("unexpected currency %s", currency)
		}
		return amount * 140
	}
	if got := Normalize(1, "eur", domain.DefaultRates()); got != 140 {
		t.Fatalf("expected swapped strategy, got %v", got)
	}
}

func TestCreditDays(t *testing.T) {
	cases := []struct {
		amount float64
		rate   float64
		want   int64
	}{
		{amount: 12, rate: 5, want: 2},
		{amount: 1, rate: 5, want: 1},
		{amount: 10, rate: 5, want: 2},
		{amount: 150, rate: 5, want: 30},
		{amount: 0, rate: 5, want: 0},
		{amount: -5, rate: 5, want: 0},
	}
	for _, tc := range cases {
		if got := CreditDays(tc.amount, tc.rate); got != tc.want {
			t.Fatalf("CreditDays(%v, %v) = %d, want %d", tc.amount, tc.rate, got, tc.want)
		}
	}
}

func TestChargeAmount(t *testing.T) {
	if got := ChargeAmount(2, true); got != "2.01" {
		t.Fatalf("expected workaround amount, got %s", got)
	}
	if got := ChargeAmount(2.0004, true); got != "2.01" {
		t.Fatalf("expected workaround within tolerance, got %s", got)
	}
	if got := ChargeAmount(2, false); got != "2.00" {
		t.Fatalf("expected plain amount with toggle off, got %s", got)
	}
	if got := ChargeAmount(3.5, true); got != "3.50" {
		t.Fatalf("expected two decimals, got %s", got)
	}
}
