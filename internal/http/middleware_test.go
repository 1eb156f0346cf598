package httpx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/mocks"
	"github.com/coverdesk/portal-gate/internal/observability/metrics"
)

type countSink struct {
	mu     sync.Mutex
	counts []map[string]string
}

func (s *countSink) Count(name string, _ int64, tags map[string]string) {
	if name != "http.request" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = append(s.counts, tags)
}

func (s *countSink) Gauge(string, float64, map[string]string)        {}
func (s *countSink) Timing(string, time.Duration, map[string]string) {}

func TestLogging_RecordsStatusAndLocation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users", nil))

	out := buf.String()
	assert.Contains(t, out, `"status":303`)
	assert.Contains(t, out, `"location":"/unauthorized"`)
	assert.Contains(t, out, `"path":"/users"`)
}

func TestLogging_SeesSessionAttachedDownstream(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = SetSessionInContext(r.Context(), &domainauth.Session{Subject: "u-1", Role: domainauth.Role("Agent")})
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name  string
		chain func(logger *slog.Logger) http.Handler
	}{
		{"logging only", func(logger *slog.Logger) http.Handler {
			return RequestID()(Logging(logger)(inner))
		}},
		{"logging around metrics", func(logger *slog.Logger) http.Handler {
			return RequestID()(Logging(logger)(Metrics(MetricsOptions{Sink: &countSink{}})(inner)))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := tt.chain(slog.New(slog.NewJSONHandler(&buf, nil)))
			req := httptest.NewRequest(http.MethodGet, "/claims", nil)
			req.Header.Set(RequestIDHeader, "req-7")
			h.ServeHTTP(httptest.NewRecorder(), req)

			out := buf.String()
			assert.Contains(t, out, `"role":"agent"`)
			assert.Contains(t, out, `"request_id":"req-7"`)
		})
	}
}

func TestRecover_Returns500(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claims", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), `"msg":"panic"`)
}

func TestMetrics_TagsGateOutcome(t *testing.T) {
	sink := &countSink{}
	mw := Metrics(MetricsOptions{Sink: sink})

	handlers := []http.HandlerFunc{
		func(w http.ResponseWriter, r *http.Request) {
			markGateOutcome(r.Context(), metrics.OutcomeLogin)
			http.Redirect(w, r, "/login?callbackUrl=%2Fclaims", http.StatusSeeOther)
		},
		func(w http.ResponseWriter, r *http.Request) {
			markGateOutcome(r.Context(), metrics.OutcomeDenied)
			http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
		},
		func(w http.ResponseWriter, r *http.Request) {
			markGateOutcome(r.Context(), metrics.OutcomeDenied)
			SetHXRedirect(w, "/unauthorized")
			w.WriteHeader(http.StatusOK)
		},
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
		func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) },
		// The upstream renderer redirecting to login on its own is a served page.
		func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/login?callbackUrl=%2Fclaims", http.StatusFound)
		},
	}
	for _, fn := range handlers {
		mw(fn).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/claims", nil))
	}

	require.Len(t, sink.counts, 6)
	got := make([]string, 0, len(sink.counts))
	for _, tags := range sink.counts {
		got = append(got, tags["outcome"])
	}
	assert.Equal(t, []string{"login", "denied", "denied", "error", "served", "served"}, got)
	assert.Equal(t, "3xx", sink.counts[0]["status_class"])
}

func TestMetrics_CountsRealGateRedirects(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockSessionResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "support-tok").
		Return(&domainauth.Session{Subject: "u-1", Role: domainauth.RoleSupport}, nil)

	sink := &countSink{}
	gate := AccessGate(GateOptions{Registry: gateRegistry(t), Sessions: resolver})
	h := Metrics(MetricsOptions{Sink: sink})(gate(&nextRecorder{}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/claims", nil))
	req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "support-tok"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/about", nil))

	require.Len(t, sink.counts, 3)
	assert.Equal(t, "login", sink.counts[0]["outcome"])
	assert.Equal(t, "denied", sink.counts[1]["outcome"])
	assert.Equal(t, "served", sink.counts[2]["outcome"])
}

func TestMetrics_NilSinkIsPassThrough(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	h := Metrics(MetricsOptions{})(next)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRespWriter_Unwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := wrapResponseWriter(rec)
	assert.Same(t, rec, ww.Unwrap())
	assert.Same(t, ww, wrapResponseWriter(ww))
	require.NoError(t, http.NewResponseController(ww).Flush())
	assert.True(t, rec.Flushed)
}

func TestOptionalSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockSessionResolver(ctrl)
	sess := &domainauth.Session{Subject: "u-1", Role: domainauth.RoleSupport}
	resolver.EXPECT().Resolve(gomock.Any(), "good").Return(sess, nil)
	resolver.EXPECT().Resolve(gomock.Any(), "bad").Return(nil, domainauth.ErrInvalidToken)

	var seen []*domainauth.Session
	h := OptionalSession(resolver, "")(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = append(seen, GetSessionFromContext(r.Context()))
	}))

	for _, tok := range []string{"good", "bad", ""} {
		req := httptest.NewRequest(http.MethodGet, "/api/navigation", nil)
		if tok != "" {
			req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: tok})
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, []*domainauth.Session{sess, nil, nil}, seen)
}

func TestBrowserDetection(t *testing.T) {
	handler := BrowserDetection()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsBrowserRequest(r) {
			w.Header().Set("Content-Type", "text/html")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
	}))

	tests := []struct {
		name    string
		path    string
		accept  string
		htmx    bool
		browser bool
	}{
		{"api with json accept", "/api/navigation", "application/json", false, false},
		{"api with html accept", "/api/guard", "text/html", false, false},
		{"page with html accept", "/claims", "text/html,application/xhtml+xml,*/*;q=0.8", false, true},
		{"htmx fragment", "/claims", "*/*", true, true},
		{"page without accept", "/dashboard", "", false, true},
		{"asset fetch", "/_next/static/chunk.js", "application/javascript", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.htmx {
				req.Header.Set("Hx-Request", "true")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			want := "application/json"
			if tt.browser {
				want = "text/html"
			}
			assert.Equal(t, want, rec.Header().Get("Content-Type"))
		})
	}
}

func TestIsBrowserRequest_ContextOverridesHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/claims", nil)
	req.Header.Set("Accept", "text/html")
	assert.True(t, IsBrowserRequest(req))

	req = req.WithContext(context.WithValue(req.Context(), browserRequestKey{}, false))
	assert.False(t, IsBrowserRequest(req))

	req = req.WithContext(context.WithValue(req.Context(), browserRequestKey{}, "invalid"))
	assert.True(t, IsBrowserRequest(req))
}

func TestWriteBadGateway(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/claims", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	writeBadGateway(rec, req, errors.New("down"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}
