package httpx

import (
	"log/slog"
	"net/http"

	"github.com/coverdesk/portal-gate/internal/domain/access"
	"github.com/coverdesk/portal-gate/internal/notify"
)

// GateConfig carries the redirect targets and bypass flag shared by the
// request gate, the client guard, and the auth handlers.
type GateConfig struct {
	Bypass           bool
	LoginPath        string
	UnauthorizedPath string
	CallbackParam    string
}

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Sessions SessionService
	Policy   *access.Policy
	// Events receives client guard toasts. Optional.
	Events notify.Publisher
	// Upstream serves every request that is not a gate API route. Nil answers 502.
	Upstream     http.Handler
	Gate         GateConfig
	CookieName   string
	CookieDomain string
	Logger       *slog.Logger
	// Readiness names the dependency probes served on /readyz.
	Readiness map[string]ReadinessCheck
	// MetricsHandler is served on GET /metrics when set.
	MetricsHandler http.Handler
	// AuthRateLimit throttles sign-out and dev-login per client. Zero Limit disables it.
	AuthRateLimit RateLimitOptions
}

// NewRouter creates and configures a new HTTP router with browser middleware.
func NewRouter(services RouterServices) http.Handler {
	if services.Sessions == nil {
		panic("httpx: NewRouter requires a session service")
	}
	if services.Policy == nil {
		panic("httpx: NewRouter requires an access policy")
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readinessHandler(services.Readiness))
	if services.MetricsHandler != nil {
		mux.Handle("GET /metrics", services.MetricsHandler)
	}

	authHandlers := &AuthHandlers{
		Svc:           services.Sessions,
		CookieName:    services.CookieName,
		CookieDomain:  services.CookieDomain,
		LoginPath:     services.Gate.LoginPath,
		CallbackParam: services.Gate.CallbackParam,
		Logger:        logger,
	}
	registerAuthRoutes(mux, authHandlers,
		CSRFProtection(CSRFOptions{CookieDomain: services.CookieDomain}),
		RateLimit(services.AuthRateLimit))

	navHandlers := &NavHandlers{
		Policy: services.Policy,
		ClientGuard: &access.ClientGuard{
			Registry:         services.Policy.Registry(),
			LoginPath:        services.Gate.LoginPath,
			UnauthorizedPath: services.Gate.UnauthorizedPath,
			CallbackParam:    services.Gate.CallbackParam,
			Events:           services.Events,
		},
	}
	registerNavRoutes(mux, navHandlers, OptionalSession(services.Sessions, services.CookieName))

	upstream := services.Upstream
	if upstream == nil {
		upstream = NewUpstreamProxy(nil, logger)
	}
	gate := AccessGate(GateOptions{
		Registry:         services.Policy.Registry(),
		Sessions:         services.Sessions,
		Bypass:           services.Gate.Bypass,
		LoginPath:        services.Gate.LoginPath,
		UnauthorizedPath: services.Gate.UnauthorizedPath,
		CallbackParam:    services.Gate.CallbackParam,
		CookieName:       services.CookieName,
	})
	mux.Handle("/", gate(upstream))

	return BrowserDetection()(mux)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, csrf, limit func(http.Handler) http.Handler) {
	mux.Handle("GET /api/auth/session", csrf(http.HandlerFunc(h.Session)))
	mux.Handle("POST /api/auth/signout", limit(csrf(http.HandlerFunc(h.SignOut))))
	mux.Handle("GET /api/auth/dev-login", limit(http.HandlerFunc(h.DevLogin)))
}

func registerNavRoutes(mux *http.ServeMux, h *NavHandlers, withSession func(http.Handler) http.Handler) {
	mux.Handle("GET /api/navigation", withSession(http.HandlerFunc(h.Navigation)))
	mux.Handle("GET /api/guard", withSession(http.HandlerFunc(h.Guard)))
}
