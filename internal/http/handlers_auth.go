package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coverdesk/portal-gate/internal/domain/access"
	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/service"
)

// SessionService defines the session operations the HTTP layer needs.
type SessionService interface {
	SessionResolver
	Logout(ctx context.Context, token string) error
	DevLogin(ctx context.Context, role string) (*service.DevLoginResult, error)
	DevLoginEnabled() bool
}

// AuthHandlers provides HTTP handlers for session inspection and sign-out.
type AuthHandlers struct {
	Svc           SessionService
	CookieName    string
	CookieDomain  string
	LoginPath     string
	CallbackParam string
	Logger        *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) cookieName() string {
	if h.CookieName == "" {
		return DefaultSessionCookie
	}
	return h.CookieName
}

func (h *AuthHandlers) loginPath() string {
	if h.LoginPath == "" {
		return access.DefaultLoginPath
	}
	return h.LoginPath
}

func (h *AuthHandlers) callbackParam() string {
	if h.CallbackParam == "" {
		return access.DefaultCallbackParam
	}
	return h.CallbackParam
}

// sessionUser is the public projection of a session.
type sessionUser struct {
	Subject string          `json:"subject"`
	Email   string          `json:"email,omitempty"`
	Name    string          `json:"name,omitempty"`
	Role    domainauth.Role `json:"role"`
}

// Session returns the current authentication status.
// GET /api/auth/session.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"authenticated": false}
	if csrf := GetCSRFToken(r); csrf != "" {
		body["csrf_token"] = csrf
	}

	token := sessionToken(r, h.cookieName())
	if token == "" {
		WriteJSON(w, http.StatusOK, body)
		return
	}

	session, err := h.Svc.Resolve(r.Context(), token)
	if err != nil {
		// Session is invalid, expired, or revoked; clear the cookie
		h.clearCookie(w, r, h.cookieName())
		body["reason"] = sessionFailureReason(err)
		WriteJSON(w, http.StatusOK, body)
		return
	}

	body["authenticated"] = true
	body["user"] = sessionUser{
		Subject: session.Subject,
		Email:   session.Email,
		Name:    session.Name,
		Role:    session.Role,
	}
	body["expires_at"] = session.ExpiresAt
	WriteJSON(w, http.StatusOK, body)
}

func sessionFailureReason(err error) string {
	switch {
	case errors.Is(err, domainauth.ErrSessionExpired):
		return "expired"
	case errors.Is(err, domainauth.ErrSessionRevoked):
		return "revoked"
	case errors.Is(err, domainauth.ErrInvalidToken):
		return "invalid"
	default:
		return "unavailable"
	}
}

// SignOut revokes the presented session and clears the cookie.
// POST /api/auth/signout.
func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r, h.cookieName()); token != "" {
		if err := h.Svc.Logout(r.Context(), token); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}

	h.clearCookie(w, r, h.cookieName())

	// Where the user wanted to be after signing back in
	callback := r.FormValue(h.callbackParam())
	location := h.loginPath()
	if callback != "" {
		location = access.LoginLocation(h.loginPath(), h.callbackParam(), safeRedirectPath(callback))
	}

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": location,
		})
		return
	}

	http.Redirect(w, r, location, http.StatusFound)
}

// DevLogin mints a development session and redirects to the callback.
// GET /api/auth/dev-login?role=<role>&callbackUrl=<path>.
func (h *AuthHandlers) DevLogin(w http.ResponseWriter, r *http.Request) {
	if !h.Svc.DevLoginEnabled() {
		http.NotFound(w, r)
		return
	}

	res, err := h.Svc.DevLogin(r.Context(), strings.TrimSpace(r.URL.Query().Get("role")))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "dev_login_failed", Err: err})
		return
	}

	h.setSessionCookie(w, r, res.Token, res.Session.ExpiresAt)
	h.logger().InfoContext(r.Context(), "dev login",
		"subject", res.Session.Subject,
		"role", string(res.Session.Role))

	http.Redirect(w, r, safeRedirectPath(r.URL.Query().Get(h.callbackParam())), http.StatusFound)
}

// clearCookie clears a cookie by setting it to expire immediately.
// It mirrors key attributes (Secure, Path, Domain, SameSite) used when setting cookies
// to maximize compatibility across browsers during deletion.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isForwardedHTTPS(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// setSessionCookie writes the session cookie based on the token's expiry.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	c := &http.Cookie{
		Name:     h.cookieName(),
		Value:    token,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isForwardedHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	}
	if !expiresAt.IsZero() {
		c.MaxAge = int(time.Until(expiresAt).Seconds())
	}
	http.SetCookie(w, c)
}
