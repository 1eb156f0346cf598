package config

import (
	"strings"
	"time"
)

const defaultObservabilityName = "portal-gate"

// ObservabilityConfig groups configuration that controls metrics and toast fan-out.
type ObservabilityConfig struct {
	Metrics       ObservabilityMetricsConfig
	Notifications ObservabilityNotificationsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Notifications.Sanitize()
}

// ObservabilityMetricsConfig controls emission of metrics to StatsD and Prometheus.
type ObservabilityMetricsConfig struct {
	Enabled       bool   `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string `env:"OBSERVABILITY_METRICS_PREFIX"         envDefault:"portal_gate"`
	// TagFormat is dogstatsd, telegraf, or none.
	TagFormat string `env:"OBSERVABILITY_METRICS_TAG_FORMAT" envDefault:"dogstatsd"`
	// Prometheus exposes the same series on GET /metrics. It is independent of StatsD.
	Prometheus bool `env:"OBSERVABILITY_METRICS_PROMETHEUS" envDefault:"false"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
}

// IsEnabled returns true when StatsD emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// ObservabilityNotificationsConfig controls forwarding of guard toasts to chat.
type ObservabilityNotificationsConfig struct {
	Enabled    bool          `env:"OBSERVABILITY_NOTIFICATIONS_ENABLED"     envDefault:"false"`
	Timeout    time.Duration `env:"OBSERVABILITY_NOTIFICATIONS_TIMEOUT"     envDefault:"5s"`
	RetryLimit int           `env:"OBSERVABILITY_NOTIFICATIONS_RETRY_LIMIT" envDefault:"3"`
	// BreakerFailures consecutive delivery failures pause forwarding for BreakerCooldown.
	BreakerFailures uint32                  `env:"OBSERVABILITY_NOTIFICATIONS_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration           `env:"OBSERVABILITY_NOTIFICATIONS_BREAKER_COOLDOWN" envDefault:"1m"`
	Slack           SlackNotificationConfig `envPrefix:"OBSERVABILITY_NOTIFICATIONS_SLACK_"`
}

// Sanitize normalises notification configuration values.
func (c *ObservabilityNotificationsConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = time.Minute
	}

	c.Slack.sanitize()

	if !c.Enabled || c.Slack.WebhookURL == "" {
		c.Slack.Enabled = false
	}
}

// SlackNotificationConfig controls Slack webhook fan-out of guard toasts.
type SlackNotificationConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	WebhookURL string `env:"WEBHOOK_URL"`
	Channel    string `env:"CHANNEL"`
	Username   string `env:"USERNAME"    envDefault:"portal-gate"`
	// MinKind is the least severe toast kind forwarded: info, warning, or error.
	MinKind string `env:"MIN_KIND" envDefault:"warning"`
	// PortalURL prefixes toast paths to build links.
	PortalURL string `env:"PORTAL_URL"`
}

func (c *SlackNotificationConfig) sanitize() {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.Channel = strings.TrimSpace(c.Channel)
	c.PortalURL = strings.TrimSpace(c.PortalURL)
	if c.Username == "" {
		c.Username = defaultObservabilityName
	}
	switch k := strings.ToLower(strings.TrimSpace(c.MinKind)); k {
	case "info", "warning", "error":
		c.MinKind = k
	default:
		c.MinKind = "warning"
	}
}
