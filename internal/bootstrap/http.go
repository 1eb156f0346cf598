package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coverdesk/portal-gate/config"
	httpx "github.com/coverdesk/portal-gate/internal/http"
	"github.com/coverdesk/portal-gate/internal/observability/statsd"
)

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
	Metrics  statsd.Sink
}

// buildHTTPHandler wraps the router as Recover -> RequestID -> Logging -> Metrics -> router.
func buildHTTPHandler(cfg httpHandlerConfig) http.Handler {
	h := httpx.NewRouter(cfg.Services)

	h = httpx.Metrics(httpx.MetricsOptions{Sink: cfg.Metrics})(h)
	h = httpx.Logging(cfg.Logger)(h)
	h = httpx.RequestID()(h)
	h = httpx.Recover(cfg.Logger)(h)

	return h
}

func newServer(handler http.Handler, cfg config.HTTPConfig) *http.Server {
	// An empty Addr would bind :http.
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// serveHTTP blocks until the server stops. A graceful shutdown is not an error.
func serveHTTP(ctx context.Context, logger *slog.Logger, server *http.Server) error {
	logger.InfoContext(ctx, "starting HTTP server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// The parent context is usually already cancelled by the signal.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.Context), timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}
	return nil
}
