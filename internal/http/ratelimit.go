package httpx

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const defaultLimiterIdle = 10 * time.Minute

var errRateLimited = errors.New("too many requests, try again later")

// RateLimitOptions configures per-client token buckets.
type RateLimitOptions struct {
	// Limit is the sustained rate per client. Zero or negative disables limiting.
	Limit rate.Limit
	Burst int
	// Idle is how long a quiet client's bucket is kept.
	Idle time.Duration
	// TrustForwardedFor keys clients by the first X-Forwarded-For address.
	TrustForwardedFor bool
	// Now overrides the clock; tests only.
	Now func() time.Time
}

// RateLimit answers 429 once a client exhausts its bucket. Clients are keyed
// by remote IP.
func RateLimit(opts RateLimitOptions) func(http.Handler) http.Handler {
	if opts.Limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.Burst <= 0 {
		opts.Burst = max(1, int(math.Ceil(float64(opts.Limit))))
	}
	if opts.Idle <= 0 {
		opts.Idle = defaultLimiterIdle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	buckets := cache.New(opts.Idle, 2*opts.Idle)
	retryAfter := strconv.Itoa(max(1, int(math.Ceil(1/float64(opts.Limit)))))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r, opts.TrustForwardedFor)
			lim := bucketFor(buckets, key, opts)
			if !lim.AllowN(opts.Now(), 1) {
				w.Header().Set("Retry-After", retryAfter)
				WriteError(w, ErrorParams{Code: http.StatusTooManyRequests, ErrCode: "rate_limited", Err: errRateLimited})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bucketFor returns the client's limiter and pushes its expiry out.
func bucketFor(buckets *cache.Cache, key string, opts RateLimitOptions) *rate.Limiter {
	if v, ok := buckets.Get(key); ok {
		lim := v.(*rate.Limiter) //nolint:forcetypeassert // only limiters are stored
		buckets.Set(key, lim, cache.DefaultExpiration)
		return lim
	}
	lim := rate.NewLimiter(opts.Limit, opts.Burst)
	if err := buckets.Add(key, lim, cache.DefaultExpiration); err != nil {
		// Lost a race with another request from the same client.
		if v, ok := buckets.Get(key); ok {
			return v.(*rate.Limiter) //nolint:forcetypeassert // only limiters are stored
		}
	}
	return lim
}

func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
