package bootstrap

import (
	"context"
	"log/slog"

	"github.com/coverdesk/portal-gate/config"
	"github.com/coverdesk/portal-gate/internal/notify"
	obsnotify "github.com/coverdesk/portal-gate/internal/observability/notify"
	"github.com/coverdesk/portal-gate/internal/observability/notify/slack"
)

// ToastRuntime is the application's toast bus plus any background forwarders.
type ToastRuntime struct {
	Bus        *notify.Bus
	forwarders []*obsnotify.Forwarder
}

// Run drives every forwarder until ctx is cancelled.
func (r *ToastRuntime) Run(ctx context.Context) error {
	done := make(chan error, len(r.forwarders))
	for _, f := range r.forwarders {
		f := f
		go func() { done <- f.Run(ctx) }()
	}
	for range r.forwarders {
		if err := <-done; err != nil {
			return err
		}
	}
	return nil
}

// BuildToasts creates the bus, subscribes the log sink, and attaches the
// Slack forwarder when configured.
func BuildToasts(cfg config.ObservabilityNotificationsConfig, logger *slog.Logger) (*ToastRuntime, error) {
	rt := &ToastRuntime{Bus: notify.NewBus()}
	rt.Bus.Subscribe(logToast(logger))

	if !cfg.Slack.Enabled {
		return rt, nil
	}
	client, err := slack.NewClient(slack.Config{
		WebhookURL: cfg.Slack.WebhookURL,
		Channel:    cfg.Slack.Channel,
		Username:   cfg.Slack.Username,
		Timeout:    cfg.Timeout,
		RetryLimit: cfg.RetryLimit,
		PortalURL:  cfg.Slack.PortalURL,
	})
	if err != nil {
		rt.Bus.Close()
		return nil, err
	}
	sink := obsnotify.NewBreakerSink(client, obsnotify.BreakerOptions{
		Name:     "slack",
		Failures: cfg.BreakerFailures,
		Cooldown: cfg.BreakerCooldown,
		Logger:   logger,
	})
	fwd, err := obsnotify.NewForwarder(sink, obsnotify.ForwarderOptions{
		MinKind: notify.Kind(cfg.Slack.MinKind),
		Logger:  logger,
	})
	if err != nil {
		rt.Bus.Close()
		return nil, err
	}
	rt.Bus.Subscribe(fwd.Listen)
	rt.forwarders = append(rt.forwarders, fwd)
	logger.Info("slack toast forwarding enabled", "min_kind", cfg.Slack.MinKind)
	return rt, nil
}

func logToast(logger *slog.Logger) notify.Listener {
	return func(ctx context.Context, t notify.Toast) {
		level := slog.LevelInfo
		switch t.Kind {
		case notify.KindWarning:
			level = slog.LevelWarn
		case notify.KindError:
			level = slog.LevelError
		}
		logger.Log(ctx, level, "toast",
			"kind", t.Kind,
			"title", t.Title,
			"path", t.Path)
	}
}
