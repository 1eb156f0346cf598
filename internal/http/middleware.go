package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/observability/metrics"
	"github.com/coverdesk/portal-gate/internal/observability/statsd"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, note := withRequestNote(r)
			ww := wrapResponseWriter(w)
			next.ServeHTTP(ww, r)
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			}
			if loc := redirectLocation(ww); loc != "" {
				attrs = append(attrs, slog.String("location", loc))
			}
			if id := GetRequestID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if s := note.getSession(); s != nil {
				attrs = append(attrs, slog.String("role", string(domainauth.NormalizeRole(string(s.Role)))))
			}
			logger.InfoContext(r.Context(), "http", attrs...)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func wrapResponseWriter(w http.ResponseWriter) *respWriter {
	if rw, ok := w.(*respWriter); ok {
		return rw
	}
	const defaultHTTPStatus = 200
	return &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController (flushing for proxied streams).
func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func redirectLocation(w http.ResponseWriter) string {
	if loc := w.Header().Get("Location"); loc != "" {
		return loc
	}
	return w.Header().Get("Hx-Redirect")
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// MetricsOptions configures the Metrics middleware.
type MetricsOptions struct {
	Sink statsd.Sink
}

// Metrics returns a middleware that counts requests by gate outcome. Only
// redirects AccessGate issued count as login or denied; the same redirect
// coming from the upstream renderer is a served response.
func Metrics(opts MetricsOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if opts.Sink == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, note := withRequestNote(r)
			ww := wrapResponseWriter(w)
			next.ServeHTTP(ww, r)
			metrics.EmitRequest(opts.Sink, metrics.RequestMetric{
				Method:   r.Method,
				Status:   ww.status,
				Outcome:  requestOutcome(ww.status, note.getGateOutcome()),
				Duration: time.Since(start),
			})
		})
	}
}

func requestOutcome(status int, gateOutcome string) string {
	switch {
	case gateOutcome != "":
		return gateOutcome
	case status >= http.StatusInternalServerError:
		return metrics.OutcomeError
	default:
		return metrics.OutcomeServed
	}
}

// OptionalSession returns a middleware that attaches the caller's session to the
// request context when a valid token is presented. Requests without a valid
// session continue anonymously.
func OptionalSession(sessions SessionResolver, cookieName string) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions == nil {
				next.ServeHTTP(w, r)
				return
			}
			if token := sessionToken(r, cookieName); token != "" {
				if s, err := sessions.Resolve(r.Context(), token); err == nil && s != nil {
					r = r.WithContext(SetSessionInContext(r.Context(), s))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// browserRequestKey is an unexported context key type for browser request detection.
type browserRequestKey struct{}

// BrowserDetection returns a middleware that detects browser requests vs API requests.
// It sets a context value that can be used by downstream handlers to determine
// whether to return HTML or JSON responses.
func BrowserDetection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			isBrowser := isBrowserRequest(r)
			ctx := context.WithValue(r.Context(), browserRequestKey{}, isBrowser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsBrowserRequest returns true if the current request is from a browser.
func IsBrowserRequest(r *http.Request) bool {
	if val := r.Context().Value(browserRequestKey{}); val != nil {
		if isBrowser, ok := val.(bool); ok {
			return isBrowser
		}
	}
	// Fallback to direct detection if middleware wasn't used
	return isBrowserRequest(r)
}

// isBrowserRequest determines if a request is from a browser based on:
// 1. Path prefix - API routes start with /api/
// 2. Accept header - browsers typically accept text/html
// 3. HTMX requests are considered browser requests.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	if IsHTMX(r) {
		return true
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		// No Accept header, assume browser for non-API routes
		return true
	}
	return strings.Contains(accept, "text/html")
}
