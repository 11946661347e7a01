package recordstore

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// Option configures a Collection.
type Option func(*options)

type options struct {
	newID  func() string
	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		newID:  NewID,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithIDGenerator replaces the default UUIDv7 generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewID returns a UUIDv7: a millisecond timestamp prefix followed by random bits,
// so ids sort by creation time.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
