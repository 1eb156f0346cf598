package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	toast "github.com/coverdesk/portal-gate/internal/notify"
)

// ErrSinkOpen is returned while the breaker short-circuits deliveries.
var ErrSinkOpen = errors.New("toast sink unavailable")

// BreakerOptions configures NewBreakerSink.
type BreakerOptions struct {
	Name string
	// Failures is the number of consecutive delivery failures that opens the breaker.
	Failures uint32
	// Cooldown is how long the breaker stays open before a trial delivery.
	Cooldown time.Duration
	Logger   *slog.Logger
}

type breakerSink struct {
	next Sink
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerSink wraps next so that a run of failures stops further deliveries
// for the cooldown period instead of spending a full retry cycle on each toast.
func NewBreakerSink(next Sink, opts BreakerOptions) Sink {
	if opts.Name == "" {
		opts.Name = "toast-sink"
	}
	if opts.Failures == 0 {
		opts.Failures = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	failures := opts.Failures
	return &breakerSink{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        opts.Name,
			MaxRequests: 1,
			Timeout:     opts.Cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("toast sink breaker state changed",
					"sink", name,
					"from", from.String(),
					"to", to.String())
			},
		}),
	}
}

func (b *breakerSink) SendToast(ctx context.Context, t toast.Toast) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.SendToast(ctx, t)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrSinkOpen
	}
	return err
}
