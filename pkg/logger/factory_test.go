package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subledger/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json by default", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Info("hello")
		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("level filters", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithLevel(slog.LevelWarn))
		log.Info("dropped")
		assert.Zero(t, buf.Len())
	})

	t.Run("static attrs", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithAttr(logger.Component("ledger")))
		log.Info("x")
		assert.Equal(t, "ledger", decode(t, buf)["component"])
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
	})
}

func TestWithConfig(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf), logger.WithConfig(logger.Config{Level: "debug", Format: "TEXT"}))
	log.Debug("visible")
	assert.Contains(t, buf.String(), "level=DEBUG")

	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("loud"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("WARN"))
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	t.Run("development", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("development", "subledger"))
		log.Debug("msg")
		assert.Contains(t, buf.String(), "service=subledger")
		assert.Contains(t, buf.String(), "env=development")
	})

	t.Run("production", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("production", "subledger"))
		log.Debug("hidden")
		assert.Zero(t, buf.Len())
		log.Info("shown")
		assert.Equal(t, "production", decode(t, buf)["env"])
	})
}

func TestContextAttrs(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf))

	ctx := logger.WithAttrs(context.Background(), logger.SubscriptionID("sub-1"))
	ctx = logger.WithAttrs(ctx, logger.EventType("payment_processed"))
	log.InfoContext(ctx, "handled", logger.Error(errors.New("boom")))

	entry := decode(t, buf)
	assert.Equal(t, "sub-1", entry["subscription_id"])
	assert.Equal(t, "payment_processed", entry["event_type"])
	assert.Equal(t, "boom", entry["error"])
	assert.Len(t, logger.AttrsFromContext(ctx), 2)
	assert.Nil(t, logger.AttrsFromContext(context.Background()))
}

func TestContextExtractors(t *testing.T) {
	t.Parallel()

	type key struct{}
	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf), logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
		v, ok := ctx.Value(key{}).(string)
		return logger.RequestID(v), ok
	}))

	log.InfoContext(context.WithValue(context.Background(), key{}, "req-42"), "x")
	assert.Equal(t, "req-42", decode(t, buf)["request_id"])
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() { logger.Discard().Info("nothing") })
}
