package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/coverdesk/portal-gate/internal/domain/access"
	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/mocks"
)

func gateRegistry(t *testing.T) *access.Registry {
	t.Helper()
	reg, err := access.NewRegistry([]access.Entry{
		{Prefix: "/admin-only", Roles: []domainauth.Role{domainauth.RoleAdmin}},
		{Prefix: "/claims", Roles: []domainauth.Role{domainauth.RoleAdmin, domainauth.RoleAgent, domainauth.RoleSupport}},
	})
	require.NoError(t, err)
	return reg
}

type nextRecorder struct {
	called  bool
	session *domainauth.Session
}

func (n *nextRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.called = true
	n.session = GetSessionFromContext(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func TestAccessGate_UnguardedPathSkipsResolution(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockSessionResolver(ctrl)
	// No EXPECT: any call to Resolve fails the test.

	next := &nextRecorder{}
	h := AccessGate(GateOptions{Registry: gateRegistry(t), Sessions: resolver})(next)

	for _, p := range []string{"/", "/about", "/admin-only-other", "/claimsx"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, p, nil)
		req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "tok"})
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code, p)
	}
	assert.True(t, next.called)
	assert.Nil(t, next.session)
}

func TestAccessGate_ResolvesOnceAndAttachesSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockSessionResolver(ctrl)
	sess := &domainauth.Session{Subject: "u-1", Role: domainauth.RoleAgent}
	resolver.EXPECT().Resolve(gomock.Any(), "tok").Return(sess, nil).Times(1)

	next := &nextRecorder{}
	h := AccessGate(GateOptions{Registry: gateRegistry(t), Sessions: resolver})(next)

	req := httptest.NewRequest(http.MethodGet, "/claims/12", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Same(t, sess, next.session)
}

func TestAccessGate_ResolveErrorRedirectsToLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockSessionResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "tok").Return(nil, errors.New("redis down"))

	next := &nextRecorder{}
	h := AccessGate(GateOptions{Registry: gateRegistry(t), Sessions: resolver})(next)

	req := httptest.NewRequest(http.MethodGet, "/admin-only/reports?year=2026", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fadmin-only%2Freports%3Fyear%3D2026", rec.Header().Get("Location"))
	assert.False(t, next.called)
}

func TestAccessGate_CanonicalizesBeforeDeciding(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockSessionResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "tok").
		Return(&domainauth.Session{Subject: "u-2", Role: domainauth.RoleSupport}, nil).
		AnyTimes()

	next := &nextRecorder{}
	h := AccessGate(GateOptions{Registry: gateRegistry(t), Sessions: resolver})(next)

	for _, p := range []string{"/claims/../admin-only", "/admin-only/", "/claims/./../admin-only/x"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = p
		req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "tok"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "/unauthorized", rec.Header().Get("Location"), p)
	}
	assert.False(t, next.called)
}

func TestAccessGate_RawRoleIsNormalized(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockSessionResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "tok").
		Return(&domainauth.Session{Subject: "u-3", Role: domainauth.Role(" ADMIN ")}, nil)

	next := &nextRecorder{}
	h := AccessGate(GateOptions{Registry: gateRegistry(t), Sessions: resolver})(next)

	req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	req.Header.Set("Authorization", "bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.True(t, next.called)
}

func TestAccessGate_RequiresResolverUnlessBypassed(t *testing.T) {
	assert.Panics(t, func() { AccessGate(GateOptions{Registry: gateRegistry(t)}) })
	assert.NotPanics(t, func() { AccessGate(GateOptions{Registry: gateRegistry(t), Bypass: true}) })
}

func TestSessionToken(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		auth   string
		want   string
	}{
		{"cookie", "c-tok", "", "c-tok"},
		{"cookie wins over header", "c-tok", "Bearer h-tok", "c-tok"},
		{"bearer", "", "Bearer h-tok", "h-tok"},
		{"bearer case-insensitive", "", "BEARER h-tok", "h-tok"},
		{"basic ignored", "", "Basic abc", ""},
		{"bare scheme", "", "Bearer ", ""},
		{"none", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "sid", Value: tt.cookie})
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			assert.Equal(t, tt.want, sessionToken(req, "sid"))
		})
	}
}

func TestSafeRedirectPath(t *testing.T) {
	tests := map[string]string{
		"":                    "/",
		"/claims?id=1":        "/claims?id=1",
		"https://evil.test/":  "/",
		"//evil.test/x":       "/",
		`/\evil.test`:         "/",
		"claims":              "/",
		"javascript:alert(1)": "/",
		"/partner/quotes#top": "/partner/quotes#top",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeRedirectPath(in), in)
	}
}
