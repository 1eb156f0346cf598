package httpx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
)

func TestGetUserSessionFromContext(t *testing.T) {
	// absent
	if s, ok := GetUserSessionFromContext(context.Background()); assert.False(t, ok) {
		assert.Nil(t, s)
	}

	// present
	sess := &domainauth.Session{Subject: "u-1", Role: domainauth.RoleAgent}
	ctx := SetSessionInContext(context.Background(), sess)
	s, ok := GetUserSessionFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, sess, s)
	assert.Same(t, sess, GetSessionFromContext(ctx))
}

func TestSetSessionInContext_NilKeepsContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, SetSessionInContext(ctx, nil))
	assert.Nil(t, GetSessionFromContext(ctx))
}

func TestCallerRole(t *testing.T) {
	_, ok := CallerRole(context.Background())
	assert.False(t, ok)

	ctx := SetSessionInContext(context.Background(), &domainauth.Session{Subject: "u-1", Role: domainauth.Role(" Agent ")})
	role, ok := CallerRole(ctx)
	assert.True(t, ok)
	assert.Equal(t, domainauth.RoleAgent, role)

	ctx = SetSessionInContext(context.Background(), &domainauth.Session{Subject: "u-2", Role: domainauth.Role("superuser")})
	role, _ = CallerRole(ctx)
	assert.Equal(t, domainauth.FallbackRole, role)
}
