// Package httpserver wraps net/http with graceful shutdown, configurable
// timeouts and health-check handlers.
//
// Run blocks until the context is cancelled or Shutdown is called, then
// drains in-flight requests within the shutdown timeout. Signal handling is
// the caller's job (signal.NotifyContext pairs well with Run). Construction
// uses functional options (WithAddr, WithReadTimeout, WithLogger, ...) or
// NewFromConfig for environment-driven setup.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", slog.String("error", err.Error()))
//	}
//
// Startup failures are wrapped with ErrStart, shutdown failures with
// ErrShutdown; inspect them with errors.Is.
package httpserver
