package auth

// Package auth contains domain-level types for roles and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role represents an application's authorization role.
// Canonical form is lowercase; compare roles only after NormalizeRole or ParseRole.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAgent   Role = "agent"
	RoleSupport Role = "support"
	RolePartner Role = "partner"
)

// FallbackRole is assigned to any role claim outside the known set.
const FallbackRole = RoleSupport

// AllRoles returns the closed role set in canonical order.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleAgent, RoleSupport, RolePartner}
}

// ParseRole returns the canonical role for raw and whether it was recognised.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleAgent:
		return RoleAgent, true
	case RoleSupport:
		return RoleSupport, true
	case RolePartner:
		return RolePartner, true
	default:
		return "", false
	}
}

// NormalizeRole maps untrusted input onto the closed role set.
// Unknown and empty values degrade to FallbackRole; it never fails.
func NormalizeRole(raw string) Role {
	if r, ok := ParseRole(raw); ok {
		return r
	}
	return FallbackRole
}

// NormalizeRolePtr is NormalizeRole for optional input; nil yields FallbackRole.
func NormalizeRolePtr(raw *string) Role {
	if raw == nil {
		return FallbackRole
	}
	return NormalizeRole(*raw)
}

// Claims is the decoded payload of a verified session token.
// Role is the raw claim value; it has not been normalized yet.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	Role      string
	Groups    []string
	TokenID   string
	ExpiresAt time.Time
}

// Identity represents a principal for which a session token is issued.
// Only the development issuer and the admin CLI construct identities.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Role    Role
}

// Session is the gate's read-only view of an authenticated request.
type Session struct {
	Subject   string    `json:"subject"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Role      Role      `json:"role"`
	RawRole   string    `json:"-"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry at now.
// A zero ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SessionFromClaims builds a Session, normalizing the role claim.
func SessionFromClaims(c Claims) Session {
	return Session{
		Subject:   c.Subject,
		Email:     c.Email,
		Name:      c.Name,
		Role:      NormalizeRole(c.Role),
		RawRole:   c.Role,
		TokenID:   c.TokenID,
		ExpiresAt: c.ExpiresAt,
	}
}
