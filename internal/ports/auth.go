package ports

// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
)

// SessionVerifier checks a session token's signature and returns its decoded claims.
// Any failure means the caller has no session; callers must not retry.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (domainauth.Claims, error)
}

// TokenIssuer signs session tokens for an identity.
// Only development login and operator tooling issue tokens; production tokens come from the IdP.
type TokenIssuer interface {
	Issue(ctx context.Context, id domainauth.Identity) (token string, claims domainauth.Claims, err error)
}

// RevocationStore records session tokens that were signed out before expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RoleMapper maps provider groups to a raw role claim.
// An empty result means no group matched.
type RoleMapper interface {
	Map(groups []string) string
}
