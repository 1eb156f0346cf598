package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/coverdesk/portal-gate/config"
	"github.com/coverdesk/portal-gate/internal/domain/access"
	httpx "github.com/coverdesk/portal-gate/internal/http"
	"github.com/coverdesk/portal-gate/internal/navigation"
	"github.com/coverdesk/portal-gate/internal/observability/prom"
	"github.com/coverdesk/portal-gate/internal/observability/statsd"
)

// App owns every long-lived dependency of the gate process.
type App struct {
	cfg     config.AppConfig
	logger  *slog.Logger
	handler http.Handler
	toasts  *ToastRuntime
	redis   redis.UniversalClient
	statsd  *statsd.Client
}

// NewApp wires configuration into a ready-to-serve application.
// On error every dependency opened so far is closed.
func NewApp(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (app *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app = &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			err = errors.Join(err, app.Close())
			app = nil
		}
	}()

	var promSink *prom.Sink
	if cfg.Observability.Metrics.Prometheus {
		promSink, err = prom.New(cfg.Observability.Metrics.Prefix)
		if err != nil {
			return app, fmt.Errorf("prometheus: %w", err)
		}
	}
	if cfg.Observability.Metrics.IsEnabled() {
		format, ferr := statsd.ParseTagFormat(cfg.Observability.Metrics.TagFormat)
		if ferr != nil {
			return app, ferr
		}
		app.statsd, err = statsd.NewClient(statsd.Config{
			Enabled:    true,
			Address:    cfg.Observability.Metrics.StatsdAddress,
			Prefix:     cfg.Observability.Metrics.Prefix,
			TagFormat:  format,
			Logger:     logger,
			GlobalTags: map[string]string{"env": string(cfg.Env)},
		})
		if err != nil {
			return app, fmt.Errorf("statsd: %w", err)
		}
	}
	var sink statsd.Sink
	if promSink != nil {
		sink = statsd.Multi(app.statsd, promSink)
	} else {
		sink = statsd.Multi(app.statsd)
	}

	if RedisConfigured(cfg.Redis) {
		app.redis, err = ConnectRedis(ctx, RedisConnectConfig{Redis: cfg.Redis, Logger: logger})
		if err != nil {
			return app, err
		}
	}

	policy, err := loadPolicy(cfg.Gate)
	if err != nil {
		return app, err
	}

	sessions, err := BuildSessionService(ctx, AuthConfig{
		Auth:        cfg.Auth,
		Revocation:  cfg.Revocation,
		RedisClient: app.redis,
		Metrics:     sink,
		Logger:      logger,
	})
	if err != nil {
		return app, err
	}

	app.toasts, err = BuildToasts(cfg.Observability.Notifications, logger)
	if err != nil {
		return app, fmt.Errorf("toasts: %w", err)
	}

	upstreamURL, err := cfg.HTTP.Upstream()
	if err != nil {
		return app, err
	}
	if upstreamURL == nil {
		logger.WarnContext(ctx, "UPSTREAM_URL not set; admitted page requests will answer 502")
	}

	if cfg.Auth.Bypass {
		logger.WarnContext(ctx, "AUTH_BYPASS enabled; the route gate admits every request", "env", cfg.Env)
	}

	services := httpx.RouterServices{
		Sessions: sessions,
		Policy:   policy,
		Events:   app.toasts.Bus,
		Gate: httpx.GateConfig{
			Bypass:           cfg.Auth.Bypass,
			LoginPath:        cfg.Gate.LoginPath,
			UnauthorizedPath: cfg.Gate.UnauthorizedPath,
			CallbackParam:    cfg.Gate.CallbackParam,
		},
		CookieName:   cfg.Auth.SessionCookie,
		CookieDomain: cfg.HTTP.CookieDomain,
		Logger:       logger,
		Readiness:    app.readinessChecks(),
		AuthRateLimit: httpx.RateLimitOptions{
			Limit:             rate.Limit(cfg.HTTP.AuthRateLimit),
			Burst:             cfg.HTTP.AuthRateBurst,
			TrustForwardedFor: cfg.HTTP.TrustForwardedFor,
		},
	}
	if promSink != nil {
		services.MetricsHandler = promSink.Handler()
	}
	if upstreamURL != nil {
		services.Upstream = httpx.NewUpstreamProxy(upstreamURL, logger)
	}

	app.handler = buildHTTPHandler(httpHandlerConfig{
		Logger:   logger,
		Services: services,
		Metrics:  sink,
	})
	return app, nil
}

func loadPolicy(cfg config.GateConfig) (*access.Policy, error) {
	if cfg.RoutesFile == "" {
		return navigation.Default()
	}
	policy, err := navigation.LoadFile(cfg.RoutesFile)
	if err != nil {
		return nil, fmt.Errorf("load routes file: %w", err)
	}
	return policy, nil
}

func (a *App) readinessChecks() map[string]httpx.ReadinessCheck {
	if a.redis == nil {
		return nil
	}
	return map[string]httpx.ReadinessCheck{
		"redis": func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
	}
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	server := newServer(a.handler, a.cfg.HTTP)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveHTTP(gctx, a.logger, server) })
	g.Go(func() error { return a.toasts.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(ShutdownConfig{
			Context: gctx,
			Server:  server,
			Timeout: a.cfg.HTTP.ShutdownTimeout,
			Logger:  a.logger,
		})
	})
	return g.Wait()
}

// Close releases the bus, Redis, and StatsD connections.
func (a *App) Close() error {
	var errs []error
	if a.toasts != nil {
		a.toasts.Bus.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.statsd != nil {
		if err := a.statsd.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close statsd: %w", err))
		}
	}
	return errors.Join(errs...)
}
