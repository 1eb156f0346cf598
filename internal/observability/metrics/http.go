package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/coverdesk/portal-gate/internal/observability/errors"
	"github.com/coverdesk/portal-gate/internal/observability/statsd"
)

// Outcome constants for request tagging.
const (
	OutcomeServed = "served"
	OutcomeLogin  = "login"
	OutcomeDenied = "denied"
	OutcomeError  = "error"
)

// Result constants for session resolution tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// RequestMetric captures one served request.
type RequestMetric struct {
	Method   string
	Status   int
	Outcome  string
	Duration time.Duration
}

// EmitRequest emits the request counter and latency.
func EmitRequest(sink statsd.Sink, in RequestMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"method":       in.Method,
		"status_class": statusClass(in.Status),
		"outcome":      in.Outcome,
	}
	sink.Count("http.request", 1, tags)

	if in.Duration > 0 {
		sink.Timing("http.duration", in.Duration, CloneTags(tags))
	}
}

// SessionMetric captures one session resolution. Class overrides the
// reflected error type when the caller knows a better name.
type SessionMetric struct {
	Duration time.Duration
	Err      error
	Class    string
}

// EmitSessionResolve emits a counter tagged with the result and, on failure,
// the classified error type.
func EmitSessionResolve(sink statsd.Sink, in SessionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": ResultSuccess}
	if in.Err != nil {
		tags["result"] = ResultError
		class := in.Class
		if class == "" {
			class = obserrors.Classify(in.Err)
		}
		if class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("session.resolve", 1, tags)

	if in.Duration > 0 {
		sink.Timing("session.resolve.duration", in.Duration, CloneTags(tags))
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
