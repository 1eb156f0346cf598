package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain is the domain for session and CSRF cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// UpstreamURL is the frontend renderer admitted requests are proxied to.
	UpstreamURL string `env:"UPSTREAM_URL"`

	// AuthRateLimit is the sustained requests per second each client may send to
	// the sign-out and dev-login endpoints. Zero disables limiting.
	AuthRateLimit float64 `env:"HTTP_AUTH_RATE_LIMIT" envDefault:"1"`
	AuthRateBurst int     `env:"HTTP_AUTH_RATE_BURST" envDefault:"10"`
	// TrustForwardedFor keys rate limits by X-Forwarded-For. Enable only behind a proxy that sets it.
	TrustForwardedFor bool `env:"HTTP_TRUST_FORWARDED_FOR" envDefault:"false"`

	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT"     envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.Addr = strings.TrimSpace(h.Addr)
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	h.CookieDomain = strings.TrimSpace(h.CookieDomain)
	h.UpstreamURL = strings.TrimSpace(h.UpstreamURL)
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
	if h.AuthRateLimit < 0 {
		h.AuthRateLimit = 0
	}
	if h.AuthRateBurst <= 0 {
		h.AuthRateBurst = 10
	}
}

// Validate checks the upstream URL when one is configured.
func (h *HTTPConfig) Validate() error {
	if h.UpstreamURL == "" {
		return nil
	}
	_, err := h.Upstream()
	return err
}

// Upstream parses UpstreamURL. It returns nil, nil when no upstream is configured.
func (h *HTTPConfig) Upstream() (*url.URL, error) {
	if h.UpstreamURL == "" {
		return nil, nil
	}
	u, err := url.Parse(h.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("UPSTREAM_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("UPSTREAM_URL must be an http(s) URL, got %q", h.UpstreamURL)
	}
	return u, nil
}
