package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	toast "github.com/coverdesk/portal-gate/internal/notify"
)

func TestKindRank(t *testing.T) {
	assert.Less(t, KindRank(toast.KindInfo), KindRank(toast.KindWarning))
	assert.Less(t, KindRank(toast.KindWarning), KindRank(toast.KindError))
	assert.Equal(t, KindRank(toast.KindError), KindRank("ERROR"))
	assert.Zero(t, KindRank("other"))
}

func TestNewForwarderRequiresSink(t *testing.T) {
	_, err := NewForwarder(nil, ForwarderOptions{})
	require.Error(t, err)
}

func TestForwarderDeliversFromBus(t *testing.T) {
	delivered := make(chan toast.Toast, 4)
	sink := SinkFunc(func(_ context.Context, t toast.Toast) error {
		delivered <- t
		return errors.New("ignored")
	})
	fwd, err := NewForwarder(sink, ForwarderOptions{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)

	bus := toast.NewBus()
	t.Cleanup(bus.Close)
	bus.Subscribe(fwd.Listen)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx) }()

	bus.Publish(ctx, toast.Toast{Kind: toast.KindInfo, Path: "/claims"})
	bus.Publish(ctx, toast.Toast{Kind: toast.KindWarning, Path: "/users"})

	select {
	case got := <-delivered:
		assert.Equal(t, "/users", got.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("toast was not delivered")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, delivered)
}

func TestForwarderDropsWhenFull(t *testing.T) {
	fwd, err := NewForwarder(SinkFunc(nil), ForwarderOptions{
		MinKind:   toast.KindInfo,
		QueueSize: 1,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	fwd.Listen(context.Background(), toast.Toast{Kind: toast.KindInfo, Title: "first"})
	fwd.Listen(context.Background(), toast.Toast{Kind: toast.KindError, Title: "second"})

	require.Len(t, fwd.queue, 1)
	assert.Equal(t, "first", (<-fwd.queue).Title)
}
