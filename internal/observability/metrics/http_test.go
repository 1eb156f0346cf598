package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMetric struct {
	kind string
	name string
	tags map[string]string
}

type recordingSink struct {
	mu      sync.Mutex
	metrics []recordedMetric
}

func (s *recordingSink) Count(name string, _ int64, tags map[string]string) {
	s.record("count", name, tags)
}

func (s *recordingSink) Gauge(name string, _ float64, tags map[string]string) {
	s.record("gauge", name, tags)
}

func (s *recordingSink) Timing(name string, _ time.Duration, tags map[string]string) {
	s.record("timing", name, tags)
}

func (s *recordingSink) record(kind, name string, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, recordedMetric{kind: kind, name: name, tags: tags})
}

func TestEmitRequest(t *testing.T) {
	sink := &recordingSink{}
	EmitRequest(sink, RequestMetric{Method: "GET", Status: 303, Outcome: OutcomeLogin, Duration: time.Millisecond})

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "http.request", sink.metrics[0].name)
	assert.Equal(t, map[string]string{"method": "GET", "status_class": "3xx", "outcome": "login"}, sink.metrics[0].tags)
	assert.Equal(t, "timing", sink.metrics[1].kind)
}

func TestEmitRequest_NoDurationSkipsTiming(t *testing.T) {
	sink := &recordingSink{}
	EmitRequest(sink, RequestMetric{Method: "GET", Status: 200, Outcome: OutcomeServed})
	require.Len(t, sink.metrics, 1)
}

func TestEmitSessionResolve(t *testing.T) {
	sink := &recordingSink{}
	EmitSessionResolve(sink, SessionMetric{})
	EmitSessionResolve(sink, SessionMetric{Err: errors.New("bad"), Class: "expired"})

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, map[string]string{"result": "success"}, sink.metrics[0].tags)
	assert.Equal(t, map[string]string{"result": "error", "error_class": "expired"}, sink.metrics[1].tags)
}

func TestEmit_NilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitRequest(nil, RequestMetric{})
		EmitSessionResolve(nil, SessionMetric{Err: errors.New("x")})
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "5xx", statusClass(502))
	assert.Equal(t, "unknown", statusClass(0))
}
