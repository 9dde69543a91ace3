package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"plumbing_backend/platform/logger"
)

type testEvent struct{ BaseEvent }

func (testEvent) EventName() string { return "test.event" }

func TestPublishSyncStopsAtFirstError(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	var calls int32
	boom := errors.New("boom")

	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return boom
	}))
	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	if err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent()}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 handler call, got %d", calls)
	}
}

func TestPublishSurvivesCancelledContext(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	var sawCancelled atomic.Bool

	bus.Subscribe("test.event", HandlerFunc(func(ctx context.Context, _ Event) error {
		sawCancelled.Store(ctx.Err() != nil)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, testEvent{NewBaseEvent()})
	bus.Wait()

	if sawCancelled.Load() {
		t.Fatalf("expected async handler context to be detached from caller cancellation")
	}
}
