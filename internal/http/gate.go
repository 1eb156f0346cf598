package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/coverdesk/portal-gate/internal/domain/access"
	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/observability/metrics"
)

// DefaultSessionCookie is the cookie carrying the session token.
const DefaultSessionCookie = "portal_session"

// SessionResolver turns a presented session token into a verified session.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*domainauth.Session, error)
}

// GateOptions configures AccessGate.
type GateOptions struct {
	Registry *access.Registry
	Sessions SessionResolver
	// Bypass disables the gate entirely. Only honoured outside production.
	Bypass           bool
	LoginPath        string
	UnauthorizedPath string
	CallbackParam    string
	CookieName       string
}

func (o GateOptions) withDefaults() GateOptions {
	if o.LoginPath == "" {
		o.LoginPath = access.DefaultLoginPath
	}
	if o.UnauthorizedPath == "" {
		o.UnauthorizedPath = access.DefaultUnauthorizedPath
	}
	if o.CallbackParam == "" {
		o.CallbackParam = access.DefaultCallbackParam
	}
	if o.CookieName == "" {
		o.CookieName = DefaultSessionCookie
	}
	return o
}

// AccessGate returns a middleware that admits a request to a guarded path only
// when its session carries a permitted role. Unguarded paths pass through untouched.
// Missing or unverifiable sessions are sent to the login page with the original
// path and query as callback; verified sessions lacking the role are sent to the
// unauthorized page.
func AccessGate(opts GateOptions) func(http.Handler) http.Handler {
	if opts.Sessions == nil && !opts.Bypass {
		panic("httpx: AccessGate requires a SessionResolver")
	}
	opts = opts.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Bypass {
				next.ServeHTTP(w, r)
				return
			}
			if _, guarded := opts.Registry.Match(r.URL.Path); !guarded {
				next.ServeHTTP(w, r)
				return
			}

			token := sessionToken(r, opts.CookieName)
			if token == "" {
				redirectToLogin(w, r, opts)
				return
			}
			session, err := opts.Sessions.Resolve(r.Context(), token)
			if err != nil || session == nil {
				redirectToLogin(w, r, opts)
				return
			}

			role := domainauth.NormalizeRole(string(session.Role))
			if opts.Registry.Decide(r.URL.Path, role) == access.Deny {
				markGateOutcome(r.Context(), metrics.OutcomeDenied)
				redirectTo(w, r, opts.UnauthorizedPath)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), session)))
		})
	}
}

// redirectToLogin sends the caller to the login page carrying the original
// path and query so it can return after signing in.
func redirectToLogin(w http.ResponseWriter, r *http.Request, opts GateOptions) {
	markGateOutcome(r.Context(), metrics.OutcomeLogin)
	callback := safeRedirectPath(access.CallbackTarget(r.URL.Path, r.URL.RawQuery))
	redirectTo(w, r, access.LoginLocation(opts.LoginPath, opts.CallbackParam, callback))
}

// redirectTo issues a 303, or an Hx-Redirect with 200 for htmx so the browser
// navigates instead of swapping the redirect target into the page.
func redirectTo(w http.ResponseWriter, r *http.Request, location string) {
	if IsHTMX(r) {
		SetHXRedirect(w, location)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// sessionToken reads the session cookie, falling back to a bearer token.
func sessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	// Browsers treat "//host" and "/\host" as scheme-relative.
	if strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, `/\`) {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
