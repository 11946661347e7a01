// Package httpserver runs an http.Handler with timeouts, structured logging
// and graceful shutdown.
//
// Run blocks until the context is cancelled or SIGINT/SIGTERM arrives, then
// calls http.Server.Shutdown bounded by the shutdown timeout. Listen errors
// are wrapped with ErrStart and shutdown errors with ErrShutdown.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// HealthCheckHandler serves a JSON liveness/readiness probe from named checks.
package httpserver
