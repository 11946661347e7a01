// Package logger builds log/slog loggers with environment presets and
// context-carried attributes.
//
//	log := logger.New(
//	    logger.WithConfig(cfg.Log),
//	    logger.WithAttr(logger.Component("api")),
//	)
//
//	ctx = logger.WithAttrs(ctx, logger.SubscriptionID(sub.ID))
//	log.InfoContext(ctx, "subscription activated") // carries subscription_id
//
// Attribute helpers (SubscriptionID, TransactionID, EventType, ...) keep key
// names consistent across packages.
package logger
