package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subledger/pkg/config"
	"github.com/dmitrymomot/subledger/pkg/money"
)

func TestAppConfigDefaults(t *testing.T) {
	for _, key := range []string{"BASE_CURRENCY", "DISPLAY_RATES", "STORE_DRIVER"} {
		// t.Setenv restores the original value on cleanup.
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	var cfg AppConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, driverFile, cfg.StoreDriver)
	assert.Equal(t, "UAH", cfg.BaseCurrency)

	rates, err := money.ParseRates(cfg.BaseCurrency, cfg.DisplayRates)
	require.NoError(t, err)
	assert.Equal(t, "UAH", rates.Base())
	assert.Equal(t, []string{"EUR", "UAH", "USD"}, rates.Currencies())

	usd, err := rates.Convert(money.Money{Amount: 100, Currency: "USD"}, "UAH")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), usd.Amount)
}

func TestAppConfigDisplayRatesOverride(t *testing.T) {
	t.Setenv("BASE_CURRENCY", "USD")
	t.Setenv("DISPLAY_RATES", "EUR:1.1, GBP:1.25")

	var cfg AppConfig
	require.NoError(t, config.Load(&cfg))

	rates, err := money.ParseRates(cfg.BaseCurrency, cfg.DisplayRates)
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR", "GBP", "USD"}, rates.Currencies())
}
