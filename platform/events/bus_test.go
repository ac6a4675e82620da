package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"field_inventory_backend/platform/logger"
)

type pinged struct {
	BaseEvent
}

func (pinged) EventName() string { return "test.pinged" }

func TestPublishDeliversToAllHandlers(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("test.pinged", HandlerFunc(func(ctx context.Context, event Event) error {
			calls.Add(1)
			return nil
		}))
	}

	bus.Publish(context.Background(), pinged{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 deliveries, got %d", got)
	}
}

func TestPublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	boom := errors.New("boom")
	bus.Subscribe("test.pinged", HandlerFunc(func(ctx context.Context, event Event) error { return boom }))
	bus.Subscribe("test.pinged", HandlerFunc(func(ctx context.Context, event Event) error { return nil }))

	err := bus.PublishSync(context.Background(), pinged{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to wrap boom, got %v", err)
	}
}

func TestPublishRecoversHandlerPanic(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	bus.Subscribe("test.pinged", HandlerFunc(func(ctx context.Context, event Event) error { panic("bad handler") }))

	bus.Publish(context.Background(), pinged{})
	bus.Wait()
}
