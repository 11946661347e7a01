package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subledger/pkg/config"
)

type serverConfig struct {
	Name    string        `env:"CFG_TEST_NAME" envDefault:"default"`
	Port    int           `env:"CFG_TEST_PORT" envDefault:"8080"`
	Timeout time.Duration `env:"CFG_TEST_TIMEOUT" envDefault:"5s"`
	Rates   string        `env:"CFG_TEST_RATES"`
}

type requiredConfig struct {
	Secret string `env:"CFG_TEST_REQUIRED,required"`
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("CFG_TEST_NAME")
	os.Unsetenv("CFG_TEST_PORT")

	var cfg serverConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoad_EnvironmentValues(t *testing.T) {
	t.Setenv("CFG_TEST_NAME", "ledger")
	t.Setenv("CFG_TEST_TIMEOUT", "250ms")

	var cfg serverConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "ledger", cfg.Name)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
}

func TestLoad_NotCached(t *testing.T) {
	t.Setenv("CFG_TEST_NAME", "first")
	var first serverConfig
	require.NoError(t, config.Load(&first))

	t.Setenv("CFG_TEST_NAME", "second")
	var second serverConfig
	require.NoError(t, config.Load(&second))

	assert.Equal(t, "first", first.Name)
	assert.Equal(t, "second", second.Name)
}

func TestLoad_EnvFile(t *testing.T) {
	// Pre-set variables are registered for cleanup by t.Setenv, then removed so
	// the file can provide them.
	t.Setenv("CFG_TEST_NAME", "")
	t.Setenv("CFG_TEST_RATES", "")
	t.Setenv("CFG_TEST_PORT", "7070")
	os.Unsetenv("CFG_TEST_NAME")
	os.Unsetenv("CFG_TEST_RATES")

	var cfg serverConfig
	require.NoError(t, config.Load(&cfg, config.WithEnvFiles("testdata/.env.test")))
	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, "USD:40,EUR:45", cfg.Rates)
	assert.Equal(t, 7070, cfg.Port, "process environment wins over the file")
}

func TestLoad_MissingEnvFile(t *testing.T) {
	var cfg serverConfig
	err := config.Load(&cfg, config.WithEnvFiles("testdata/.env.missing"))
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
}

func TestLoad_Prefix(t *testing.T) {
	t.Setenv("APP_CFG_TEST_NAME", "prefixed")

	var cfg serverConfig
	require.NoError(t, config.Load(&cfg, config.WithPrefix("APP_")))
	assert.Equal(t, "prefixed", cfg.Name)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("CFG_TEST_REQUIRED")

	var cfg requiredConfig
	err := config.Load(&cfg)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
	assert.Panics(t, func() { config.MustLoad(&cfg) })
}

func TestLoad_NilPointer(t *testing.T) {
	assert.ErrorIs(t, config.Load[serverConfig](nil), config.ErrNilPointer)
}
