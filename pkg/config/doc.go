// Package config loads application configuration from environment variables
// into tagged structs.
//
// It wraps github.com/joho/godotenv (dotenv files) and
// github.com/caarlos0/env/v11 (struct tags):
//
//	type AppConfig struct {
//		Env      string        `env:"APP_ENV" envDefault:"development"`
//		Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`
//		Database struct {
//			URL string `env:"PG_CONN_URL,required"`
//		}
//	}
//
//	var cfg AppConfig
//	config.MustLoad(&cfg)
//
// Values from the real environment take precedence over dotenv files. Load
// keeps no state between calls; the binary loads its configuration once in
// main and hands the parts to the components that need them.
package config
