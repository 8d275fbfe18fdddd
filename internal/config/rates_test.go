package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{Billing: BillingConfig{
		BaseCurrency:      "KES",
		DailyRate:         5,
		FreeTrialDays:     14,
		MonthlyCap:        150,
		MaxPrepayMonths:   12,
		USDToBaseRate:     130,
		OtherCurrencyRate: 0.15,
	}}
}

func TestRatesHolderFallsBackToEnvironment(t *testing.T) {
	holder, err := newRatesHolder(testConfig(), zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	rates := holder.Rates()
	require.Equal(t, ledgerdomain.DefaultRates(), rates)
	require.EqualValues(t, 30, rates.MonthlyCapDays())
	require.InDelta(t, 1800, rates.MaxTopUp(), 0.0001)
}

func TestRatesHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte("rates:\n  dailyRate: 10\n  monthlyCap: 200\n  freeTrialDays: 7\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rates.yml"), body, 0o600))

	holder, err := newRatesHolder(testConfig(), zap.NewNop(), dir)
	require.NoError(t, err)

	rates := holder.Rates()
	require.Equal(t, 10.0, rates.DailyRate)
	require.Equal(t, 200.0, rates.MonthlyCap)
	require.Equal(t, 7, rates.FreeTrialDays)
	require.Equal(t, 130.0, rates.USDToBase)
	require.EqualValues(t, 20, rates.MonthlyCapDays())
}

func TestRatesHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte("rates:\n  dailyRate: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rates.yml"), body, 0o600))

	_, err := newRatesHolder(testConfig(), zap.NewNop(), dir)
	if !errors.Is(err, ledgerdomain.ErrInvalidRates) {
		t.Fatalf("expected ErrInvalidRates, got %v", err)
	}
}

func TestCronGuardEnabled(t *testing.T) {
	cases := map[string]bool{
		"":                     false,
		"your-secret-key-here": false,
		"  ":                   false,
		"s3cret":               true,
	}
	for key, want := range cases {
		cfg := Config{CronSecretKey: key}
		if got := cfg.CronGuardEnabled(); got != want {
			t.Fatalf("CronGuardEnabled(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestLoadTrialResetIsOptIn(t *testing.T) {
	t.Setenv("RESET_USERS_ON_LOGIN", "")
	require.False(t, Load().Billing.ResetUsersOnLogin)

	t.Setenv("RESET_USERS_ON_LOGIN", "true")
	require.True(t, Load().Billing.ResetUsersOnLogin)
}
