package bootstrap

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coverdesk/portal-gate/config"
	"github.com/coverdesk/portal-gate/internal/adapters/authroles"
	"github.com/coverdesk/portal-gate/internal/adapters/devauth"
	"github.com/coverdesk/portal-gate/internal/adapters/jwtsession"
	"github.com/coverdesk/portal-gate/internal/adapters/oidc"
	redisadapter "github.com/coverdesk/portal-gate/internal/adapters/redis"
	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	httpx "github.com/coverdesk/portal-gate/internal/http"
	"github.com/coverdesk/portal-gate/internal/observability/metrics"
	"github.com/coverdesk/portal-gate/internal/observability/statsd"
	"github.com/coverdesk/portal-gate/internal/ports"
	"github.com/coverdesk/portal-gate/internal/service"
)

// AuthConfig contains configuration for the session service.
type AuthConfig struct {
	Auth       config.AuthConfig
	Revocation config.RevocationConfig
	// RedisClient backs revocation when Revocation.Enabled. Optional otherwise.
	RedisClient redis.UniversalClient
	// Metrics receives session resolution counters. Optional.
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// BuildSessionService creates the session service for the configured auth mode.
// Unlike the request gate it fails loudly: a gate without a verifier cannot run.
func BuildSessionService(ctx context.Context, cfg AuthConfig) (httpx.SessionService, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	roleMapper := authroles.StaticRoleMapper{
		AdminGroup:   cfg.Auth.Groups.AdminGroup,
		AgentGroup:   cfg.Auth.Groups.AgentGroup,
		SupportGroup: cfg.Auth.Groups.SupportGroup,
		PartnerGroup: cfg.Auth.Groups.PartnerGroup,
	}

	opts := service.SessionServiceOptions{}
	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		v, err := jwtsession.NewVerifier(jwtConfig(cfg.Auth, []byte(cfg.Auth.JWT.Secret), roleMapper))
		if err != nil {
			return nil, fmt.Errorf("jwt verifier: %w", err)
		}
		opts.Verifier = v

	case config.AuthModeOIDC:
		v, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
			ClientID:     cfg.Auth.OIDC.ClientID,
			DiscoveryURL: cfg.Auth.OIDC.DiscoveryURL,
			RoleClaim:    cfg.Auth.RoleClaim,
			Mapper:       roleMapper,
			HTTPClient:   &http.Client{Timeout: cfg.Auth.OIDC.Timeout},
		})
		if err != nil {
			return nil, fmt.Errorf("oidc verifier: %w", err)
		}
		opts.Verifier = v

	case config.AuthModeMock:
		v, dev, err := buildDevAuth(cfg.Auth, roleMapper, logger)
		if err != nil {
			return nil, err
		}
		opts.Verifier = v
		opts.Dev = dev

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}

	if cfg.Revocation.Enabled {
		if cfg.RedisClient == nil {
			return nil, errors.New("revocation enabled but redis client not configured")
		}
		opts.Revocations = redisadapter.NewRevocationStore(cfg.RedisClient,
			redisadapter.WithPrefix(cfg.Revocation.Prefix))
	}

	svc := service.NewSessionService(opts)
	logger.InfoContext(ctx, "session service ready",
		"mode", cfg.Auth.Mode,
		"revocation", opts.Revocations != nil,
		"dev_login", svc.DevLoginEnabled())

	if cfg.Metrics == nil {
		return svc, nil
	}
	return &meteredSessions{SessionService: svc, sink: cfg.Metrics}, nil
}

func jwtConfig(auth config.AuthConfig, secret []byte, mapper ports.RoleMapper) jwtsession.Config {
	return jwtsession.Config{
		Secret:    secret,
		Algorithm: auth.JWT.Algorithm,
		Issuer:    auth.JWT.Issuer,
		Audience:  auth.JWT.Audience,
		Leeway:    auth.JWT.Leeway,
		TTL:       auth.JWT.TTL,
		RoleClaim: auth.RoleClaim,
		Mapper:    mapper,
	}
}

// buildDevAuth pairs a verifier and an issuer on one secret. Without a
// configured secret a random one is used, so dev tokens die with the process.
func buildDevAuth(
	auth config.AuthConfig,
	mapper ports.RoleMapper,
	logger *slog.Logger,
) (*jwtsession.Verifier, *devauth.Provider, error) {
	secret := []byte(auth.JWT.Secret)
	if len(secret) == 0 {
		secret = make([]byte, jwtsession.MinSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, nil, fmt.Errorf("generate dev secret: %w", err)
		}
		logger.Warn("AUTH_MODE=mock without AUTH_JWT_SECRET; dev sessions end on restart")
	}

	jc := jwtConfig(auth, secret, mapper)
	verifier, err := jwtsession.NewVerifier(jc)
	if err != nil {
		return nil, nil, fmt.Errorf("dev verifier: %w", err)
	}
	issuer, err := jwtsession.NewIssuer(jc)
	if err != nil {
		return nil, nil, fmt.Errorf("dev issuer: %w", err)
	}
	prov, err := devauth.NewProvider(devauth.Config{
		Subject: auth.DevAuth.Subject,
		Email:   auth.DevAuth.Email,
		Name:    auth.DevAuth.Name,
		Role:    auth.DevAuth.Role,
	}, issuer)
	if err != nil {
		return nil, nil, err
	}
	return verifier, prov, nil
}

// meteredSessions counts session resolutions by result.
type meteredSessions struct {
	*service.SessionService
	sink statsd.Sink
}

func (m *meteredSessions) Resolve(ctx context.Context, token string) (*domainauth.Session, error) {
	start := time.Now()
	sess, err := m.SessionService.Resolve(ctx, token)
	metrics.EmitSessionResolve(m.sink, metrics.SessionMetric{
		Duration: time.Since(start),
		Err:      err,
		Class:    sessionErrorClass(err),
	})
	return sess, err
}

func sessionErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domainauth.ErrNoToken):
		return "no_token"
	case errors.Is(err, domainauth.ErrSessionExpired):
		return "expired"
	case errors.Is(err, domainauth.ErrSessionRevoked):
		return "revoked"
	case errors.Is(err, domainauth.ErrInvalidToken):
		return "invalid"
	default:
		return ""
	}
}
