package httpx

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	// DefaultCSRFCookieName is the cookie holding the double-submit token.
	DefaultCSRFCookieName = "portal_csrf"
	// DefaultCSRFHeaderName is the header the shell echoes the token in (canonical form).
	DefaultCSRFHeaderName = "X-Csrf-Token"
	// DefaultCSRFFormField is the form field accepted for plain form posts.
	DefaultCSRFFormField = "csrf_token"

	csrfTokenBytes = 32
	csrfCookieTTL  = 12 * 3600
)

// CSRFOptions configures CSRFProtection.
type CSRFOptions struct {
	CookieName   string
	HeaderName   string
	CookieDomain string
}

// CSRFProtection guards state-changing session endpoints with the
// double-submit cookie pattern. A token cookie is issued on first contact;
// unsafe methods must echo it in the header or the csrf_token form field.
func CSRFProtection(opts CSRFOptions) func(http.Handler) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCSRFCookieName
	}
	if opts.HeaderName == "" {
		opts.HeaderName = DefaultCSRFHeaderName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(opts.CookieName); err == nil {
				token = c.Value
			}

			if token == "" {
				generated, err := generateCSRFToken()
				if err != nil {
					http.Error(w, "unable to generate CSRF token", http.StatusInternalServerError)
					return
				}
				token = generated
				http.SetCookie(w, &http.Cookie{
					Name:     opts.CookieName,
					Value:    token,
					Path:     "/",
					Domain:   opts.CookieDomain,
					HttpOnly: false, // the shell reads it to echo the header
					Secure:   isForwardedHTTPS(r),
					SameSite: http.SameSiteStrictMode,
					MaxAge:   csrfCookieTTL,
				})
				// The client has not seen a fresh token yet.
				if requiresCSRFValidation(r.Method) {
					WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "csrf_failed", Err: errCSRF})
					return
				}
			}

			r = r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, token))

			if requiresCSRFValidation(r.Method) && !validCSRFToken(r, token, opts.HeaderName) {
				WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "csrf_failed", Err: errCSRF})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

var errCSRF = errors.New("csrf token validation failed")

// requiresCSRFValidation returns true if the HTTP method requires CSRF validation.
// Safe methods (GET, HEAD, OPTIONS, TRACE) are exempt.
func requiresCSRFValidation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

// generateCSRFToken fails closed: there is no fallback to a predictable token.
func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("csrf token generation failed: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// isForwardedHTTPS reports TLS directly or via a comma-separated X-Forwarded-Proto.
func isForwardedHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}

// validCSRFToken compares in constant time against the header, then the form field.
func validCSRFToken(r *http.Request, cookieToken, headerName string) bool {
	if cookieToken == "" {
		return false
	}
	if h := r.Header.Get(headerName); h != "" {
		return subtle.ConstantTimeCompare([]byte(h), []byte(cookieToken)) == 1
	}
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return false
		}
		if f := r.FormValue(DefaultCSRFFormField); f != "" {
			return subtle.ConstantTimeCompare([]byte(f), []byte(cookieToken)) == 1
		}
	}
	return false
}

// csrfTokenKey is an unexported context key type for CSRF token storage.
type csrfTokenKey struct{}

// GetCSRFToken returns the request's CSRF token, if CSRFProtection ran.
func GetCSRFToken(r *http.Request) string {
	if token, ok := r.Context().Value(csrfTokenKey{}).(string); ok {
		return token
	}
	return ""
}
