package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option configures a Load call.
type Option func(*loadOptions)

type loadOptions struct {
	envFiles []string
	prefix   string
}

// WithEnvFiles reads the given dotenv files before parsing. Variables already
// present in the process environment win. Missing files are an error.
func WithEnvFiles(paths ...string) Option {
	return func(o *loadOptions) {
		o.envFiles = append(o.envFiles, paths...)
	}
}

// WithPrefix prepends prefix to every env tag, e.g. "BILLING_".
func WithPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.prefix = prefix
	}
}

// Load parses environment variables into the configuration struct v based on
// its `env` and `envDefault` tags.
//
// Without WithEnvFiles it reads ./.env when the file exists. Nothing is cached:
// every call parses the current environment, so callers load once at startup
// and pass the values down.
//
//	type ServerConfig struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg ServerConfig
//	if err := config.Load(&cfg); err != nil {
//		// Handle error
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(o.envFiles) == 0 {
		// The default .env file is optional.
		if err := loadEnvFiles([]string{".env"}, true); err != nil {
			return err
		}
	} else if err := loadEnvFiles(o.envFiles, false); err != nil {
		return err
	}

	if err := env.ParseWithOptions(v, env.Options{Prefix: o.prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
// This is useful for configurations that are required for the application to start.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}

func loadEnvFiles(paths []string, optional bool) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.Join(ErrLoadingEnvFile, fmt.Errorf("%s: %w", path, err))
		}
	}
	return nil
}
