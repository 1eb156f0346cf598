package oidc

// Package oidc verifies IdP-issued ID tokens presented as session tokens.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/coverdesk/portal-gate/internal/adapters/jwtsession"
	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/ports"
)

var _ ports.SessionVerifier = (*Verifier)(nil)

// VerifierConfig holds configuration for the OIDC verifier.
type VerifierConfig struct {
	ClientID     string
	DiscoveryURL string
	// RoleClaim is a JMESPath expression evaluated against the ID token claims.
	RoleClaim string
	// Mapper derives a role from group membership when RoleClaim yields nothing. Optional.
	Mapper     ports.RoleMapper
	HTTPClient *http.Client // Optional, defaults to a 30s-timeout client
	// Now overrides the verifier clock; tests only.
	Now func() time.Time
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// Verifier implements ports.SessionVerifier against an OIDC provider's JWKS.
type Verifier struct {
	verifier  *gooidc.IDTokenVerifier
	roleClaim string
	mapper    ports.RoleMapper
}

// NewVerifier fetches the discovery document once and prepares an ID token verifier.
// The HTTP client is retained for later JWKS refreshes.
func NewVerifier(ctx context.Context, config VerifierConfig) (*Verifier, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	roleClaim := strings.TrimSpace(config.RoleClaim)
	if roleClaim == "" {
		roleClaim = jwtsession.DefaultRoleClaim
	}

	// Detach from the caller's cancellation: the key set outlives startup.
	ctx = context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(ctx, issuerFromDiscoveryURL(config.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Verifier{
		verifier:  op.Verifier(&gooidc.Config{ClientID: config.ClientID, Now: config.Now}),
		roleClaim: roleClaim,
		mapper:    config.Mapper,
	}, nil
}

func issuerFromDiscoveryURL(u string) string {
	issuer := strings.TrimSuffix(u, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	return strings.TrimSuffix(issuer, ".well-known/openid-configuration")
}

// Verify checks the ID token signature, issuer, audience, and expiry and returns its claims.
func (v *Verifier) Verify(ctx context.Context, token string) (domainauth.Claims, error) {
	if token == "" {
		return domainauth.Claims{}, domainauth.ErrNoToken
	}
	idTok, err := v.verifier.Verify(ctx, token)
	if err != nil {
		var expired *gooidc.TokenExpiredError
		if errors.As(err, &expired) {
			return domainauth.Claims{}, fmt.Errorf("%w: %w", domainauth.ErrSessionExpired, err)
		}
		return domainauth.Claims{}, fmt.Errorf("%w: verify id_token: %w", domainauth.ErrInvalidToken, err)
	}

	var raw map[string]any
	if claimsErr := idTok.Claims(&raw); claimsErr != nil {
		return domainauth.Claims{}, fmt.Errorf("%w: parse id_token claims: %w", domainauth.ErrInvalidToken, claimsErr)
	}
	var shaped idTokenClaims
	if claimsErr := idTok.Claims(&shaped); claimsErr != nil {
		return domainauth.Claims{}, fmt.Errorf("%w: parse id_token claims: %w", domainauth.ErrInvalidToken, claimsErr)
	}

	c := mapIDTokenClaims(shaped)
	c.Subject = firstNonEmpty(idTok.Subject, c.Subject)
	c.ExpiresAt = idTok.Expiry.UTC()
	c.Role = jwtsession.RoleFromPayload(raw, v.roleClaim)
	if c.Role == "" && v.mapper != nil {
		c.Role = v.mapper.Map(c.Groups)
	}
	return c, nil
}

// idTokenClaims represents a superset of OIDC and AD/ADFS claim shapes.
type idTokenClaims struct {
	Sub            string   `json:"sub"`
	SamAccountName string   `json:"samaccountname"`
	Email          string   `json:"email"`
	Mail           string   `json:"mail"`
	Name           string   `json:"name"`
	GivenName      string   `json:"given_name"`
	FamilyName     string   `json:"family_name"`
	Groups         []string `json:"groups"`
	MemberOf       []string `json:"memberof"`
	JTI            string   `json:"jti"`
}

// mapIDTokenClaims maps raw id token claims into domain claims using precedence rules.
func mapIDTokenClaims(c idTokenClaims) domainauth.Claims {
	name := c.Name
	if name == "" {
		name = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}
	groups := c.Groups
	if len(groups) == 0 {
		groups = c.MemberOf
	}
	return domainauth.Claims{
		Subject: firstNonEmpty(c.Sub, c.SamAccountName),
		Email:   firstNonEmpty(c.Email, c.Mail),
		Name:    name,
		Groups:  groups,
		TokenID: c.JTI,
	}
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
