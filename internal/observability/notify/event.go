// Package notify forwards guard toasts from the in-process bus to external sinks.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	toast "github.com/coverdesk/portal-gate/internal/notify"
)

// DefaultQueueSize bounds toasts waiting for delivery.
const DefaultQueueSize = 64

// Sink describes a destination capable of consuming toasts.
type Sink interface {
	SendToast(ctx context.Context, t toast.Toast) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, t toast.Toast) error

// SendToast implements the Sink interface.
func (f SinkFunc) SendToast(ctx context.Context, t toast.Toast) error {
	if f == nil {
		return nil
	}
	return f(ctx, t)
}

// KindRank orders toast kinds by severity. Unknown kinds rank lowest.
func KindRank(k toast.Kind) int {
	switch toast.Kind(strings.ToLower(string(k))) {
	case toast.KindError:
		return 2
	case toast.KindWarning:
		return 1
	default:
		return 0
	}
}

// ForwarderOptions configures a Forwarder.
type ForwarderOptions struct {
	// MinKind is the least severe kind forwarded. Defaults to warning.
	MinKind   toast.Kind
	QueueSize int
	Logger    *slog.Logger
}

// Forwarder queues toasts published on the bus and delivers them to a sink
// from its own goroutine, so publishers never wait on the network.
type Forwarder struct {
	sink    Sink
	minRank int
	queue   chan toast.Toast
	logger  *slog.Logger
}

// NewForwarder creates a Forwarder for sink.
func NewForwarder(sink Sink, opts ForwarderOptions) (*Forwarder, error) {
	if sink == nil {
		return nil, errors.New("toast forwarder requires a sink")
	}
	if opts.MinKind == "" {
		opts.MinKind = toast.KindWarning
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Forwarder{
		sink:    sink,
		minRank: KindRank(opts.MinKind),
		queue:   make(chan toast.Toast, opts.QueueSize),
		logger:  opts.Logger,
	}, nil
}

// Listen is a bus listener. Toasts below the minimum kind are ignored and
// toasts arriving while the queue is full are dropped.
func (f *Forwarder) Listen(ctx context.Context, t toast.Toast) {
	if KindRank(t.Kind) < f.minRank {
		return
	}
	select {
	case f.queue <- t:
	default:
		f.logger.WarnContext(ctx, "toast forwarder queue full; dropping toast",
			"kind", t.Kind,
			"path", t.Path)
	}
}

// Run delivers queued toasts until ctx is cancelled. Delivery errors are logged.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-f.queue:
			if err := f.sink.SendToast(ctx, t); err != nil && ctx.Err() == nil {
				f.logger.ErrorContext(ctx, "toast delivery failed",
					"kind", t.Kind,
					"path", t.Path,
					"error", err)
			}
		}
	}
}
