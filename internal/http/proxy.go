package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

var errUpstreamUnavailable = errors.New("upstream is not reachable")

// NewUpstreamProxy forwards requests to the frontend renderer at upstream.
// A nil upstream yields a handler that answers every request with 502.
func NewUpstreamProxy(upstream *url.URL, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if upstream == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeBadGateway(w, r, errors.New("no upstream configured"))
		})
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			// The renderer sees the browser-facing host.
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "upstream request failed",
				"path", r.URL.Path,
				"upstream", upstream.Host,
				"error", err)
			writeBadGateway(w, r, errUpstreamUnavailable)
		},
	}
}

func writeBadGateway(w http.ResponseWriter, r *http.Request, err error) {
	if IsBrowserRequest(r) && !IsHTMX(r) {
		http.Error(w, "The portal is temporarily unavailable.", http.StatusBadGateway)
		return
	}
	WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "upstream_unavailable", Err: err})
}
