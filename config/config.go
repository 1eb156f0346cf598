package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppEnv names the deployment environment.
type AppEnv string

const (
	EnvDevelopment AppEnv = "development"
	EnvTest        AppEnv = "test"
	EnvStaging     AppEnv = "staging"
	EnvProduction  AppEnv = "production"
)

// UnmarshalText implements encoding.TextUnmarshaler for AppEnv.
func (e *AppEnv) UnmarshalText(text []byte) error {
	v := AppEnv(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case EnvDevelopment, EnvTest, EnvStaging, EnvProduction:
		*e = v
		return nil
	default:
		return fmt.Errorf("invalid AppEnv: %q (valid options: development, test, staging, production)", v)
	}
}

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: session verification and dev login
//   - gate.go: redirect targets and the route table override
//   - http.go: HTTP server and upstream renderer
//   - redis.go: Redis connection and token revocation
//   - observability.go: metrics and toast fan-out
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Env is the deployment environment; production forbids the gate bypass.
	Env AppEnv `env:"APP_ENV" envDefault:"development"`

	Auth AuthConfig
	Gate GateConfig
	HTTP HTTPConfig

	Redis      RedisConfig `envPrefix:"REDIS_"`
	Revocation RevocationConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.Gate.Sanitize()
	c.HTTP.Sanitize()
	c.Revocation.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// IsProduction reports whether the deployment is production.
func (c *AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate reports every configuration problem at once. Call after Sanitize.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Auth.Bypass && c.IsProduction() {
		errs = append(errs, errors.New("AUTH_BYPASS must not be enabled when APP_ENV=production"))
	}
	if c.Auth.Mode == AuthModeMock && c.IsProduction() {
		errs = append(errs, errors.New("AUTH_MODE=mock must not be used when APP_ENV=production"))
	}
	errs = append(errs,
		c.Auth.Validate(),
		c.Gate.Validate(),
		c.HTTP.Validate(),
	)
	if c.Revocation.Enabled && c.Redis.URI == "" && !c.Redis.UseSentinel && !c.Redis.UseCluster {
		errs = append(errs, errors.New("REVOCATION_ENABLED requires a Redis connection"))
	}
	return errors.Join(errs...)
}
