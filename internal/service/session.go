package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/ports"
)

// ErrDevLoginDisabled is returned by DevLogin outside AUTH_MODE=mock.
var ErrDevLoginDisabled = errors.New("development login is disabled")

// fallbackRevocationTTL bounds revocation records for tokens without an expiry claim.
const fallbackRevocationTTL = 24 * time.Hour

// DevSigner mints tokens for the development identity.
type DevSigner interface {
	SignIn(ctx context.Context, role string) (string, domainauth.Claims, error)
}

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Verifier    ports.SessionVerifier // Required
	Revocations ports.RevocationStore // Optional: enables sign-out before expiry
	Dev         DevSigner             // Optional: enables DevLogin
}

// SessionService turns presented session tokens into sessions.
// Every call makes a single verification attempt; failures are never retried.
type SessionService struct {
	verifier    ports.SessionVerifier
	revocations ports.RevocationStore
	dev         DevSigner
	now         func() time.Time
}

// NewSessionService constructs a SessionService. It panics without a verifier.
func NewSessionService(opts SessionServiceOptions) *SessionService {
	if opts.Verifier == nil {
		panic("SessionVerifier is required")
	}
	return &SessionService{
		verifier:    opts.Verifier,
		revocations: opts.Revocations,
		dev:         opts.Dev,
		now:         time.Now,
	}
}

// Resolve verifies token and returns the session with its role normalized.
// Unknown role claims degrade to the fallback role rather than failing.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domainauth.Session, error) {
	if token == "" {
		return nil, domainauth.ErrNoToken
	}
	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	sess := domainauth.SessionFromClaims(claims)
	if sess.Expired(s.now()) {
		return nil, domainauth.ErrSessionExpired
	}
	if s.revocations != nil && sess.TokenID != "" {
		revoked, revErr := s.revocations.IsRevoked(ctx, sess.TokenID)
		if revErr != nil {
			return nil, fmt.Errorf("check revocation: %w", revErr)
		}
		if revoked {
			return nil, domainauth.ErrSessionRevoked
		}
	}
	return &sess, nil
}

// Logout revokes token until it would have expired. Tokens that do not verify,
// carry no token id, or arrive without a revocation store need no action.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" || s.revocations == nil {
		return nil
	}
	claims, err := s.verifier.Verify(ctx, token)
	if err != nil || claims.TokenID == "" {
		return nil //nolint:nilerr // an unverifiable token is already signed out
	}
	until := claims.ExpiresAt
	if until.IsZero() {
		until = s.now().Add(fallbackRevocationTTL)
	}
	if revErr := s.revocations.Revoke(ctx, claims.TokenID, until); revErr != nil {
		return fmt.Errorf("revoke session: %w", revErr)
	}
	return nil
}

// DevLoginResult is a freshly minted development session.
type DevLoginResult struct {
	Token   string
	Session domainauth.Session
}

// DevLogin mints a token for the development identity. An empty role keeps the configured one.
func (s *SessionService) DevLogin(ctx context.Context, role string) (*DevLoginResult, error) {
	if s.dev == nil {
		return nil, ErrDevLoginDisabled
	}
	token, claims, err := s.dev.SignIn(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("dev login: %w", err)
	}
	return &DevLoginResult{Token: token, Session: domainauth.SessionFromClaims(claims)}, nil
}

// DevLoginEnabled reports whether DevLogin can succeed.
func (s *SessionService) DevLoginEnabled() bool { return s.dev != nil }
