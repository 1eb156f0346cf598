package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthMode selects how session tokens are verified.
type AuthMode string

const (
	// AuthModeJWT verifies HMAC-signed session tokens minted by the login app.
	AuthModeJWT AuthMode = "jwt"
	// AuthModeOIDC verifies ID tokens against the IdP's published keys.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock verifies local tokens and enables dev login (development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch AuthMode(v) {
	case AuthModeJWT, AuthModeOIDC, AuthModeMock:
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: jwt, oidc, mock)", v)
	}
}

// JWTConfig controls HMAC session token verification and minting.
type JWTConfig struct {
	Secret    string        `env:"SECRET"`
	Algorithm string        `env:"ALGORITHM" envDefault:"HS256"`
	Issuer    string        `env:"ISSUER"`
	Audience  string        `env:"AUDIENCE"`
	Leeway    time.Duration `env:"LEEWAY"    envDefault:"30s"`
	TTL       time.Duration `env:"TTL"       envDefault:"8h"`
}

// OIDCConfig contains OIDC verification settings (used when Mode=oidc).
type OIDCConfig struct {
	ClientID     string        `env:"CLIENT_ID"`
	DiscoveryURL string        `env:"DISCOVERY_URL"`
	Timeout      time.Duration `env:"TIMEOUT"       envDefault:"30s"`
}

// GroupConfig maps IdP groups onto portal roles when no role claim is present.
type GroupConfig struct {
	AdminGroup   string `env:"ADMIN_GROUP"`
	AgentGroup   string `env:"AGENT_GROUP"`
	SupportGroup string `env:"SUPPORT_GROUP"`
	PartnerGroup string `env:"PARTNER_GROUP"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	Subject string `env:"SUBJECT" envDefault:"dev-user"`
	Email   string `env:"EMAIL"   envDefault:"dev@example.com"`
	Name    string `env:"NAME"    envDefault:"Dev User"`
	Role    string `env:"ROLE"    envDefault:"admin"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which session verifier to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"jwt"`

	// Bypass disables the request gate. Rejected in production by Validate.
	Bypass bool `env:"AUTH_BYPASS" envDefault:"false"`

	// SessionCookie is the cookie carrying the session token.
	SessionCookie string `env:"AUTH_SESSION_COOKIE" envDefault:"portal_session"`

	// RoleClaim is a JMESPath expression locating the role in token claims.
	RoleClaim string `env:"AUTH_ROLE_CLAIM" envDefault:"role"`

	JWT     JWTConfig     `envPrefix:"AUTH_JWT_"`
	OIDC    OIDCConfig    `envPrefix:"AUTH_OIDC_"`
	Groups  GroupConfig   `envPrefix:"AUTH_"`
	DevAuth DevAuthConfig `envPrefix:"AUTH_DEV_"`
}

// Sanitize trims values and restores defaults cleared by blank env vars.
func (a *AuthConfig) Sanitize() {
	a.SessionCookie = strings.TrimSpace(a.SessionCookie)
	if a.SessionCookie == "" {
		a.SessionCookie = "portal_session"
	}
	a.RoleClaim = strings.TrimSpace(a.RoleClaim)
	a.JWT.Issuer = strings.TrimSpace(a.JWT.Issuer)
	a.JWT.Audience = strings.TrimSpace(a.JWT.Audience)
	if a.JWT.Leeway < 0 {
		a.JWT.Leeway = 0
	}
	a.OIDC.ClientID = strings.TrimSpace(a.OIDC.ClientID)
	a.OIDC.DiscoveryURL = strings.TrimSpace(a.OIDC.DiscoveryURL)
	if a.OIDC.Timeout <= 0 {
		a.OIDC.Timeout = 30 * time.Second
	}
}

// Validate checks that the selected mode has what it needs.
func (a *AuthConfig) Validate() error {
	switch a.Mode {
	case AuthModeJWT:
		if a.JWT.Secret == "" {
			return errors.New("AUTH_JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case AuthModeOIDC:
		if a.OIDC.ClientID == "" || a.OIDC.DiscoveryURL == "" {
			return errors.New("AUTH_OIDC_CLIENT_ID and AUTH_OIDC_DISCOVERY_URL are required when AUTH_MODE=oidc")
		}
	case AuthModeMock:
		// An empty secret is replaced with a per-process random one.
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", a.Mode)
	}
	return nil
}
