// Package prom exposes gate metrics in the Prometheus text format. It accepts
// the same Count/Timing calls as the StatsD client so both can be fed together.
package prom

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coverdesk/portal-gate/internal/observability/statsd"
)

type seriesKind int

const (
	kindCounter seriesKind = iota
	kindHistogram
)

type seriesDef struct {
	kind   seriesKind
	name   string
	help   string
	labels []string
}

var (
	requestLabels = []string{"method", "status_class", "outcome"}
	sessionLabels = []string{"result", "error_class"}
)

// series maps StatsD metric names onto Prometheus series. Names not listed
// here are ignored.
var series = map[string]seriesDef{
	"http.request": {
		kind: kindCounter, name: "http_requests_total",
		help: "Requests handled by the gate, by outcome.", labels: requestLabels,
	},
	"http.duration": {
		kind: kindHistogram, name: "http_request_duration_seconds",
		help: "Request latency including the upstream round trip.", labels: requestLabels,
	},
	"session.resolve": {
		kind: kindCounter, name: "session_resolutions_total",
		help: "Session token resolutions, by result.", labels: sessionLabels,
	},
	"session.resolve.duration": {
		kind: kindHistogram, name: "session_resolve_duration_seconds",
		help: "Time spent verifying a session token.", labels: sessionLabels,
	},
}

// Sink records metrics into a private registry served by Handler.
type Sink struct {
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

var _ statsd.Sink = (*Sink)(nil)

// New registers the gate series under namespace plus the Go runtime and
// process collectors.
func New(namespace string) (*Sink, error) {
	s := &Sink{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	if err := s.registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := s.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	ns := sanitizeNamespace(namespace)
	for key, def := range series {
		switch def.kind {
		case kindCounter:
			vec := prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: ns, Name: def.name, Help: def.help,
			}, def.labels)
			if err := s.registry.Register(vec); err != nil {
				return nil, err
			}
			s.counters[key] = vec
		case kindHistogram:
			vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: ns, Name: def.name, Help: def.help,
				Buckets: prometheus.DefBuckets,
			}, def.labels)
			if err := s.registry.Register(vec); err != nil {
				return nil, err
			}
			s.histograms[key] = vec
		}
	}
	return s, nil
}

// Handler serves the registry.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Count adds value to a known counter.
func (s *Sink) Count(name string, value int64, tags map[string]string) {
	vec, ok := s.counters[name]
	if !ok || value < 0 {
		return
	}
	vec.WithLabelValues(labelValues(series[name].labels, tags)...).Add(float64(value))
}

// Gauge is accepted for interface parity; the gate defines no gauge series.
func (s *Sink) Gauge(string, float64, map[string]string) {}

// Timing observes value in seconds on a known histogram.
func (s *Sink) Timing(name string, value time.Duration, tags map[string]string) {
	vec, ok := s.histograms[name]
	if !ok {
		return
	}
	vec.WithLabelValues(labelValues(series[name].labels, tags)...).Observe(value.Seconds())
}

// labelValues orders tags by the series labels. Missing tags become empty values.
func labelValues(labels []string, tags map[string]string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = tags[l]
	}
	return out
}

func sanitizeNamespace(ns string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(ns))
}
