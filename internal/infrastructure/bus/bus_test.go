package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/fulfillment/internal/domain/event"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	var mu sync.Mutex
	got := map[string]int{}
	record := func(key string) event.Handler {
		return func(ctx context.Context, e event.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got[key]++
			return nil
		}
	}
	b.Subscribe("order.placed", record("a"))
	b.Subscribe("order.placed", record("b"))
	b.Subscribe("order.cancelled", record("c"))

	b.Start(ctx)
	defer b.Stop(ctx)

	require.NoError(t, b.Publish(ctx, testEvent{name: "order.placed"}))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got["a"] == 1 && got["b"] == 1
	})

	mu.Lock()
	assert.Zero(t, got["c"], "unrelated subscriber is never invoked")
	mu.Unlock()
}

func TestHandlerPanicDoesNotSinkTheBus(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	b.Subscribe("order.placed", func(ctx context.Context, e event.Event) error {
		panic("boom")
	})
	delivered := make(chan struct{})
	var once sync.Once
	b.Subscribe("order.placed", func(ctx context.Context, e event.Event) error {
		once.Do(func() { close(delivered) })
		return nil
	})

	b.Start(ctx)
	defer b.Stop(ctx)

	require.NoError(t, b.Publish(ctx, testEvent{name: "order.placed"}))
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("healthy handler starved by a panicking sibling")
	}

	// The dispatch loop is still alive for the next event.
	require.NoError(t, b.Publish(ctx, testEvent{name: "order.placed"}))
}

func TestHandlerErrorIsSwallowed(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	var calls int
	var mu sync.Mutex
	b.Subscribe("order.packed", func(ctx context.Context, e event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("notification channel down")
	})

	b.Start(ctx)
	defer b.Stop(ctx)

	require.NoError(t, b.Publish(ctx, testEvent{name: "order.packed"}))
	require.NoError(t, b.Publish(ctx, testEvent{name: "order.packed"}))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	})
}

func TestPublishNilEvent(t *testing.T) {
	b := New(nil)
	assert.NoError(t, b.Publish(context.Background(), nil))
}

func TestPublishAfterStopIsRejected(t *testing.T) {
	b := New(nil)
	ctx := context.Background()
	b.Start(ctx)
	b.Stop(ctx)

	err := b.Publish(ctx, testEvent{name: "order.placed"})
	assert.ErrorIs(t, err, ErrStopped)

	// Stop is idempotent and a second rejected publish stays calm.
	b.Stop(ctx)
	assert.ErrorIs(t, b.Publish(ctx, testEvent{name: "order.placed"}), ErrStopped)
}

func TestPublishAbortsOnCancelledContext(t *testing.T) {
	b := New(nil)
	// Fill the queue so the enqueue would block.
	for i := 0; i < 1024; i++ {
		require.NoError(t, b.Publish(context.Background(), testEvent{name: "noone"}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Publish(ctx, testEvent{name: "noone"})
	assert.ErrorIs(t, err, context.Canceled)
}
