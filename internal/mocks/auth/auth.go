package auth

// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionVerifier = (*StaticVerifier)(nil)
	_ ports.TokenIssuer     = (*StaticVerifier)(nil)
	_ ports.RevocationStore = (*MemoryRevocationStore)(nil)
	_ ports.RoleMapper      = RoleMapperFunc(nil)
)

// StaticVerifier accepts only tokens it has been told about.
// Issue registers a deterministic token, so it doubles as an issuer.
type StaticVerifier struct {
	VerifyFunc func(ctx context.Context, token string) (domainauth.Claims, error)

	mu     sync.Mutex
	tokens map[string]domainauth.Claims
	issued int
	// TTL applies to issued tokens; defaults to one hour.
	TTL time.Duration
}

// NewStaticVerifier creates an empty StaticVerifier.
func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{tokens: make(map[string]domainauth.Claims)}
}

// Add registers token with the given claims.
func (v *StaticVerifier) Add(token string, c domainauth.Claims) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tokens == nil {
		v.tokens = make(map[string]domainauth.Claims)
	}
	v.tokens[token] = c
}

// AddRole registers token for a subject with the given raw role claim, valid for an hour.
func (v *StaticVerifier) AddRole(token, subject, role string) {
	v.Add(token, domainauth.Claims{
		Subject:   subject,
		Role:      role,
		TokenID:   "jti-" + token,
		ExpiresAt: time.Now().Add(time.Hour),
	})
}

func (v *StaticVerifier) Verify(ctx context.Context, token string) (domainauth.Claims, error) {
	if v.VerifyFunc != nil {
		return v.VerifyFunc(ctx, token)
	}
	if token == "" {
		return domainauth.Claims{}, domainauth.ErrNoToken
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.tokens[token]
	if !ok {
		return domainauth.Claims{}, domainauth.ErrInvalidToken
	}
	return c, nil
}

// Issue mints "token-<n>" for id and registers it.
func (v *StaticVerifier) Issue(_ context.Context, id domainauth.Identity) (string, domainauth.Claims, error) {
	if id.Subject == "" {
		return "", domainauth.Claims{}, errors.New("identity subject is required")
	}
	ttl := v.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	v.mu.Lock()
	v.issued++
	n := v.issued
	v.mu.Unlock()

	token := fmt.Sprintf("token-%d", n)
	c := domainauth.Claims{
		Subject:   id.Subject,
		Email:     id.Email,
		Name:      id.Name,
		Role:      string(id.Role),
		TokenID:   fmt.Sprintf("jti-%d", n),
		ExpiresAt: time.Now().Add(ttl),
	}
	v.Add(token, c)
	return token, c, nil
}

// MemoryRevocationStore is an in-memory revocation store for unit tests.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	// Err, when set, is returned by every call.
	Err error
}

// NewMemoryRevocationStore creates a new in-memory revocation store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

func (m *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if m.Err != nil {
		return m.Err
	}
	if tokenID == "" {
		return errors.New("token ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = make(map[string]time.Time)
	}
	m.revoked[tokenID] = until
	return nil
}

func (m *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[tokenID]
	return ok && time.Now().Before(until), nil
}

// Len returns the number of recorded revocations.
func (m *MemoryRevocationStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.revoked)
}

// RoleMapperFunc adapts a function to ports.RoleMapper.
type RoleMapperFunc func(groups []string) string

func (f RoleMapperFunc) Map(groups []string) string { return f(groups) }
