package httpx

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coverdesk/portal-gate/internal/domain/access"
	authmocks "github.com/coverdesk/portal-gate/internal/mocks/auth"
	"github.com/coverdesk/portal-gate/internal/navigation"
	"github.com/coverdesk/portal-gate/internal/service"
)

// upstreamRecorder stands in for the frontend renderer.
type upstreamRecorder struct {
	mu    sync.Mutex
	paths []string
	roles []string
}

func (u *upstreamRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	role := ""
	if s, ok := GetUserSessionFromContext(r.Context()); ok {
		role = string(s.Role)
	}
	u.mu.Lock()
	u.paths = append(u.paths, r.URL.RequestURI())
	u.roles = append(u.roles, role)
	u.mu.Unlock()
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<html>rendered</html>"))
}

func (u *upstreamRecorder) served() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...)
}

type testEnv struct {
	verifier    *authmocks.StaticVerifier
	revocations *authmocks.MemoryRevocationStore
	sessions    *service.SessionService
	policy      *access.Policy
	upstream    *upstreamRecorder
	handler     http.Handler
}

func newTestEnv(t *testing.T, gate GateConfig) *testEnv {
	t.Helper()
	policy, err := navigation.Default()
	require.NoError(t, err)

	env := &testEnv{
		verifier:    authmocks.NewStaticVerifier(),
		revocations: authmocks.NewMemoryRevocationStore(),
		policy:      policy,
		upstream:    &upstreamRecorder{},
	}
	env.verifier.AddRole("admin-token", "u-admin", "admin")
	env.verifier.AddRole("agent-token", "u-agent", "agent")
	env.verifier.AddRole("support-token", "u-support", "support")
	env.verifier.AddRole("partner-token", "u-partner", "partner")
	env.verifier.AddRole("odd-token", "u-odd", "superuser")

	env.sessions = service.NewSessionService(service.SessionServiceOptions{
		Verifier:    env.verifier,
		Revocations: env.revocations,
	})
	env.handler = NewRouter(RouterServices{
		Sessions: env.sessions,
		Policy:   policy,
		Upstream: env.upstream,
		Gate:     gate,
	})
	return env
}

type reqOpts struct {
	token  string
	bearer string
	htmx   bool
	accept string
}

func (e *testEnv) do(method, target string, o reqOpts) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if o.token != "" {
		req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: o.token})
	}
	if o.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+o.bearer)
	}
	if o.htmx {
		req.Header.Set("Hx-Request", "true")
	}
	if o.accept != "" {
		req.Header.Set("Accept", o.accept)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}
