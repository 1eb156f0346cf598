// Package jwtsession verifies and issues HMAC-signed session tokens.
package jwtsession

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/ports"
)

const (
	// DefaultRoleClaim locates the role claim in the token payload.
	DefaultRoleClaim = "role"
	// DefaultTTL is the lifetime of tokens minted by Issuer.
	DefaultTTL = 8 * time.Hour
	// MinSecretLength is the shortest accepted signing secret, in bytes.
	MinSecretLength = 32
)

var (
	_ ports.SessionVerifier = (*Verifier)(nil)
	_ ports.TokenIssuer     = (*Issuer)(nil)

	plainClaim = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Config holds the shared settings for Verifier and Issuer.
type Config struct {
	Secret    []byte
	Algorithm string // HS256 (default), HS384, or HS512
	Issuer    string
	Audience  string
	Leeway    time.Duration
	TTL       time.Duration
	// RoleClaim is a JMESPath expression evaluated against the decoded payload,
	// e.g. "role" or "realm_access.roles".
	RoleClaim string
	// Mapper derives a role from the "groups" claim when RoleClaim yields nothing. Optional.
	Mapper ports.RoleMapper
	// Now overrides the clock; tests only.
	Now func() time.Time
}

func (c Config) normalized() (Config, jwt.SigningMethod, error) {
	if len(c.Secret) < MinSecretLength {
		return c, nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if c.Algorithm == "" {
		c.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(strings.ToUpper(c.Algorithm)).(*jwt.SigningMethodHMAC)
	if !ok {
		return c, nil, fmt.Errorf("unsupported jwt algorithm %q", c.Algorithm)
	}
	c.RoleClaim = strings.TrimSpace(c.RoleClaim)
	if c.RoleClaim == "" {
		c.RoleClaim = DefaultRoleClaim
	}
	if _, err := jmespath.Compile(c.RoleClaim); err != nil {
		return c, nil, fmt.Errorf("invalid role claim expression %q: %w", c.RoleClaim, err)
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c, method, nil
}

// Verifier checks HMAC-signed session tokens.
type Verifier struct {
	cfg    Config
	parser *jwt.Parser
}

// NewVerifier validates cfg and returns a Verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	cfg, method, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

// Verify parses token and returns its claims. The role claim is returned raw.
func (v *Verifier) Verify(_ context.Context, token string) (domainauth.Claims, error) {
	if token == "" {
		return domainauth.Claims{}, domainauth.ErrNoToken
	}
	mc := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, mc, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domainauth.Claims{}, fmt.Errorf("%w: %w", domainauth.ErrSessionExpired, err)
		}
		return domainauth.Claims{}, fmt.Errorf("%w: %w", domainauth.ErrInvalidToken, err)
	}
	return claimsFromMap(mc, v.cfg.RoleClaim, v.cfg.Mapper)
}

func claimsFromMap(mc jwt.MapClaims, roleExpr string, mapper ports.RoleMapper) (domainauth.Claims, error) {
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return domainauth.Claims{}, fmt.Errorf("%w: missing subject", domainauth.ErrInvalidToken)
	}
	c := domainauth.Claims{
		Subject: sub,
		Email:   stringClaim(mc, "email"),
		Name:    stringClaim(mc, "name"),
		TokenID: stringClaim(mc, "jti"),
		Groups:  stringsClaim(mc["groups"]),
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time.UTC()
	}
	c.Role = RoleFromPayload(map[string]any(mc), roleExpr)
	if c.Role == "" && mapper != nil {
		c.Role = mapper.Map(c.Groups)
	}
	return c, nil
}

// RoleFromPayload evaluates expr against payload and returns the role claim:
// a string result as-is, the first string of a list, and "" for anything else.
func RoleFromPayload(payload map[string]any, expr string) string {
	res, err := jmespath.Search(expr, payload)
	if err != nil {
		return ""
	}
	switch v := res.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				return s
			}
		}
	}
	return ""
}

func stringClaim(mc jwt.MapClaims, key string) string {
	s, _ := mc[key].(string)
	return s
}

func stringsClaim(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case string:
		return []string{t}
	default:
		return nil
	}
}

// Issuer signs session tokens. It backs development login and the admin CLI.
type Issuer struct {
	cfg    Config
	method jwt.SigningMethod
}

// NewIssuer validates cfg and returns an Issuer. The role claim must be a plain
// top-level name so issued tokens round-trip through Verifier.
func NewIssuer(cfg Config) (*Issuer, error) {
	cfg, method, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	if !plainClaim.MatchString(cfg.RoleClaim) {
		return nil, fmt.Errorf("cannot issue tokens for nested role claim %q", cfg.RoleClaim)
	}
	return &Issuer{cfg: cfg, method: method}, nil
}

// Issue signs a token for id, valid for the configured TTL.
func (i *Issuer) Issue(_ context.Context, id domainauth.Identity) (string, domainauth.Claims, error) {
	if id.Subject == "" {
		return "", domainauth.Claims{}, errors.New("identity subject is required")
	}
	now := i.cfg.Now()
	exp := now.Add(i.cfg.TTL)
	jti := uuid.NewString()

	mc := jwt.MapClaims{
		"sub":            id.Subject,
		"iat":            jwt.NewNumericDate(now),
		"nbf":            jwt.NewNumericDate(now),
		"exp":            jwt.NewNumericDate(exp),
		"jti":            jti,
		i.cfg.RoleClaim: string(id.Role),
	}
	if id.Email != "" {
		mc["email"] = id.Email
	}
	if id.Name != "" {
		mc["name"] = id.Name
	}
	if i.cfg.Issuer != "" {
		mc["iss"] = i.cfg.Issuer
	}
	if i.cfg.Audience != "" {
		mc["aud"] = i.cfg.Audience
	}

	signed, err := jwt.NewWithClaims(i.method, mc).SignedString(i.cfg.Secret)
	if err != nil {
		return "", domainauth.Claims{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, domainauth.Claims{
		Subject:   id.Subject,
		Email:     id.Email,
		Name:      id.Name,
		Role:      string(id.Role),
		TokenID:   jti,
		ExpiresAt: exp.UTC().Truncate(time.Second),
	}, nil
}
