package logger

import (
	"context"
	"log/slog"
)

type ctxAttrsKey struct{}

// WithAttrs returns a context carrying attrs; loggers built by New add them to
// every record logged with that context.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	existing, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxAttrsKey{}, merged)
}

// AttrsFromContext returns the attributes attached with WithAttrs.
func AttrsFromContext(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	return attrs
}

func contextAttrs(ctx context.Context) (slog.Attr, bool) {
	attrs := AttrsFromContext(ctx)
	if len(attrs) == 0 {
		return slog.Attr{}, false
	}
	// An empty group key inlines the attributes.
	return slog.Attr{Key: "", Value: slog.GroupValue(attrs...)}, true
}
