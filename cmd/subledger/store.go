package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/subledger/pkg/config"
	"github.com/dmitrymomot/subledger/pkg/httpserver"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
	"github.com/dmitrymomot/subledger/pkg/recordstore/filestore"
	"github.com/dmitrymomot/subledger/pkg/recordstore/mongostore"
	"github.com/dmitrymomot/subledger/pkg/recordstore/pgstore"
	"github.com/dmitrymomot/subledger/pkg/recordstore/redisstore"
	"github.com/dmitrymomot/subledger/pkg/recordstore/s3store"
)

var errUnknownDriver = errors.New("unknown store driver")

// backend is an opened record store backend with its readiness check and
// cleanup.
type backend struct {
	recordstore.Backend
	check httpserver.Check
	close func(context.Context) error
}

func noClose(context.Context) error { return nil }

// openBackend connects the backend selected by driver, loading only that
// backend's configuration.
func openBackend(ctx context.Context, driver string, log *slog.Logger) (backend, error) {
	switch driver {
	case driverMemory:
		return backend{
			Backend: recordstore.NewMemoryBackend(),
			check:   httpserver.Check{Name: driverMemory, Fn: func(context.Context) error { return nil }},
			close:   noClose,
		}, nil

	case driverFile:
		var cfg filestore.Config
		if err := config.Load(&cfg); err != nil {
			return backend{}, err
		}
		b, err := filestore.New(cfg)
		if err != nil {
			return backend{}, err
		}
		return backend{
			Backend: b,
			check:   httpserver.Check{Name: driverFile, Fn: func(context.Context) error { return nil }},
			close:   noClose,
		}, nil

	case driverPostgres:
		var cfg pgstore.Config
		if err := config.Load(&cfg); err != nil {
			return backend{}, err
		}
		pool, err := pgstore.Connect(ctx, cfg)
		if err != nil {
			return backend{}, err
		}
		if err := pgstore.Migrate(ctx, pool, cfg, log); err != nil {
			pool.Close()
			return backend{}, err
		}
		return backend{
			Backend: pgstore.New(pool),
			check:   httpserver.Check{Name: driverPostgres, Fn: pgstore.Healthcheck(pool)},
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case driverRedis:
		var cfg redisstore.Config
		if err := config.Load(&cfg); err != nil {
			return backend{}, err
		}
		client, err := redisstore.Connect(ctx, cfg)
		if err != nil {
			return backend{}, err
		}
		return backend{
			Backend: redisstore.New(client, cfg.KeyPrefix),
			check:   httpserver.Check{Name: driverRedis, Fn: redisstore.Healthcheck(client)},
			close:   func(context.Context) error { return client.Close() },
		}, nil

	case driverMongo:
		var cfg mongostore.Config
		if err := config.Load(&cfg); err != nil {
			return backend{}, err
		}
		client, err := mongostore.Connect(ctx, cfg)
		if err != nil {
			return backend{}, err
		}
		return backend{
			Backend: mongostore.New(mongostore.SnapshotCollection(client, cfg)),
			check:   httpserver.Check{Name: driverMongo, Fn: mongostore.Healthcheck(client)},
			close:   client.Disconnect,
		}, nil

	case driverS3:
		var cfg s3store.Config
		if err := config.Load(&cfg); err != nil {
			return backend{}, err
		}
		b, err := s3store.New(ctx, cfg)
		if err != nil {
			return backend{}, err
		}
		return backend{
			Backend: b,
			check: httpserver.Check{Name: driverS3, Fn: func(ctx context.Context) error {
				_, err := b.Load(ctx, "healthz")
				return err
			}},
			close: noClose,
		}, nil
	}
	return backend{}, fmt.Errorf("%w: %q", errUnknownDriver, driver)
}
