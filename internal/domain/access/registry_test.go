package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	apperrors "github.com/coverdesk/portal-gate/internal/errors"
)

func roles(rs ...domainauth.Role) []domainauth.Role { return rs }

func adminOnlyRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]Entry{
		{Prefix: "/admin-only", Roles: roles(domainauth.RoleAdmin)},
		{Prefix: "/claims", Roles: roles(domainauth.RoleAdmin, domainauth.RoleAgent, domainauth.RoleSupport)},
		{Prefix: "/partner", Roles: roles(domainauth.RolePartner, domainauth.RoleAdmin, domainauth.RoleAgent)},
	})
	require.NoError(t, err)
	return reg
}

func TestRegistry_Decide_AdminOnlyPrefix(t *testing.T) {
	reg := adminOnlyRegistry(t)

	tests := []struct {
		name string
		path string
		role domainauth.Role
		want Decision
	}{
		{"exact prefix admin", "/admin-only", domainauth.RoleAdmin, Allow},
		{"exact prefix agent", "/admin-only", domainauth.RoleAgent, Deny},
		{"subpath admin", "/admin-only/sub", domainauth.RoleAdmin, Allow},
		{"subpath agent", "/admin-only/sub/deeper", domainauth.RoleAgent, Deny},
		{"sibling with shared string prefix is unguarded", "/admin-only-other", domainauth.RoleAgent, Allow},
		{"trailing slash", "/admin-only/", domainauth.RoleSupport, Deny},
		{"dot segments cannot escape", "/public/../admin-only", domainauth.RolePartner, Deny},
		{"double slash", "//admin-only//x", domainauth.RoleAgent, Deny},
		{"partner portal", "/partner/quotes", domainauth.RolePartner, Allow},
		{"partner outside portal", "/claims/42", domainauth.RolePartner, Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Decide(tt.path, tt.role))
		})
	}
}

func TestRegistry_Decide_UnmatchedAllowsEveryRole(t *testing.T) {
	reg := adminOnlyRegistry(t)
	for _, p := range []string{"/", "", "/login", "/unauthorized", "/healthz", "/claimsx", "/admin"} {
		for _, r := range append(domainauth.AllRoles(), domainauth.Role("ghost")) {
			assert.Equal(t, Allow, reg.Decide(p, r), "path %q role %q", p, r)
		}
	}
}

func TestRegistry_Decide_Deterministic(t *testing.T) {
	reg := adminOnlyRegistry(t)
	first := reg.Decide("/admin-only/x", domainauth.RoleAgent)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, reg.Decide("/admin-only/x", domainauth.RoleAgent))
	}
}

func TestRegistry_MatchFirstWins(t *testing.T) {
	reg := adminOnlyRegistry(t)

	e, ok := reg.Match("/claims/7/notes")
	require.True(t, ok)
	assert.Equal(t, "/claims", e.Prefix)

	_, ok = reg.Match("/claimsroom")
	assert.False(t, ok)
}

func TestNewRegistry_Validation(t *testing.T) {
	admin := roles(domainauth.RoleAdmin)
	tests := []struct {
		name    string
		entries []Entry
		field   string
	}{
		{"relative prefix", []Entry{{Prefix: "admin", Roles: admin}}, "routes[0].path"},
		{"root prefix", []Entry{{Prefix: "/", Roles: admin}}, "routes[0].path"},
		{"duplicate", []Entry{{Prefix: "/a", Roles: admin}, {Prefix: "/a/", Roles: admin}}, "routes[1].path"},
		{"shadowed", []Entry{{Prefix: "/a", Roles: admin}, {Prefix: "/a/b", Roles: admin}}, "routes[1].path"},
		{"no roles", []Entry{{Prefix: "/a"}}, "routes[0].roles"},
		{"unknown role", []Entry{{Prefix: "/a", Roles: roles("root")}}, "routes[0].roles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(tt.entries)
			require.Error(t, err)
			assert.Nil(t, reg)
			assert.True(t, apperrors.IsValidation(err))
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestNewRegistry_NarrowBeforeBroadIsAccepted(t *testing.T) {
	reg, err := NewRegistry([]Entry{
		{Prefix: "/settings/billing", Roles: roles(domainauth.RoleAdmin)},
		{Prefix: "/settings", Roles: roles(domainauth.RoleAdmin, domainauth.RoleAgent)},
	})
	require.NoError(t, err)

	assert.Equal(t, Deny, reg.Decide("/settings/billing", domainauth.RoleAgent))
	assert.Equal(t, Allow, reg.Decide("/settings/profile", domainauth.RoleAgent))
}

func TestNewRegistry_CanonicalizesEntries(t *testing.T) {
	reg, err := NewRegistry([]Entry{
		{Prefix: " /reports/ ", Roles: roles("Admin", "AGENT", "admin")},
	})
	require.NoError(t, err)

	entries := reg.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "/reports", entries[0].Prefix)
	assert.Equal(t, roles(domainauth.RoleAdmin, domainauth.RoleAgent), entries[0].Roles)

	entries[0].Roles[0] = domainauth.RolePartner
	assert.Equal(t, Deny, reg.Decide("/reports", domainauth.RolePartner), "Entries must return a copy")
}

func TestMustRegistry_Panics(t *testing.T) {
	assert.Panics(t, func() { MustRegistry([]Entry{{Prefix: "nope"}}) })
}

func TestNilRegistryAllows(t *testing.T) {
	var reg *Registry
	assert.Equal(t, Allow, reg.Decide("/anything", domainauth.RoleSupport))
	assert.Nil(t, reg.Entries())
}

func TestCanonicalPath(t *testing.T) {
	assert.Equal(t, "/", CanonicalPath(""))
	assert.Equal(t, "/a", CanonicalPath("a"))
	assert.Equal(t, "/a/b", CanonicalPath("/a/./b/"))
	assert.Equal(t, "/", CanonicalPath("/../.."))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "deny", Deny.String())
}
