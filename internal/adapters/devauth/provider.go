package devauth

// Package devauth provides a config-driven development identity for AUTH_MODE=mock.

import (
	"context"
	"errors"
	"fmt"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/ports"
)

// Config controls the dev identity.
// Subject and Email are required; Role defaults to the fallback role.
type Config struct {
	Subject string
	Email   string
	Name    string
	Role    string
}

// Provider signs in as a fixed development identity, optionally overriding its role.
// It never talks to an IdP; tokens are minted by the configured issuer.
type Provider struct {
	identity domainauth.Identity
	issuer   ports.TokenIssuer
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config, issuer ports.TokenIssuer) (*Provider, error) {
	if cfg.Subject == "" {
		return nil, errors.New("dev auth: Subject is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if issuer == nil {
		return nil, errors.New("dev auth: token issuer is required")
	}
	role := domainauth.FallbackRole
	if cfg.Role != "" {
		r, ok := domainauth.ParseRole(cfg.Role)
		if !ok {
			return nil, fmt.Errorf("dev auth: unknown role %q", cfg.Role)
		}
		role = r
	}
	return &Provider{
		identity: domainauth.Identity{
			Subject: cfg.Subject,
			Email:   cfg.Email,
			Name:    cfg.Name,
			Role:    role,
		},
		issuer: issuer,
	}, nil
}

// Identity returns the configured identity.
func (p *Provider) Identity() domainauth.Identity { return p.identity }

// SignIn mints a token for the dev identity. A non-empty role replaces the configured one
// and must name a known role.
func (p *Provider) SignIn(ctx context.Context, role string) (string, domainauth.Claims, error) {
	id := p.identity
	if role != "" {
		r, ok := domainauth.ParseRole(role)
		if !ok {
			return "", domainauth.Claims{}, fmt.Errorf("dev auth: unknown role %q", role)
		}
		id.Role = r
	}
	token, claims, err := p.issuer.Issue(ctx, id)
	if err != nil {
		return "", domainauth.Claims{}, fmt.Errorf("dev auth: issue token: %w", err)
	}
	return token, claims, nil
}
