package main

import (
	"github.com/dmitrymomot/subledger/pkg/httpserver"
	"github.com/dmitrymomot/subledger/pkg/logger"
)

// Store drivers accepted by STORE_DRIVER.
const (
	driverFile     = "file"
	driverMemory   = "memory"
	driverPostgres = "postgres"
	driverRedis    = "redis"
	driverMongo    = "mongo"
	driverS3       = "s3"
)

// AppConfig is the process configuration. The store backend's own section
// is loaded in openBackend once the driver is known.
type AppConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"subledger"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"file"`

	WebhookSecret  string  `env:"WEBHOOK_SECRET"`
	PlansSeedFile  string  `env:"PLANS_SEED_FILE"`
	SuccessRate    float64 `env:"SIMULATOR_SUCCESS_RATE" envDefault:"0.8"`
	SimulatorSeed  uint64  `env:"SIMULATOR_SEED"`
	BaseCurrency   string  `env:"BASE_CURRENCY" envDefault:"UAH"`
	DisplayRates   string  `env:"DISPLAY_RATES" envDefault:"USD:40,EUR:45"`
	MetricsEnabled bool    `env:"METRICS_ENABLED" envDefault:"true"`

	Log  logger.Config
	HTTP httpserver.Config
}
