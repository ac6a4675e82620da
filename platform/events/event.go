// Package events is the in-process bus that carries inventory changes, such as
// a committed import batch or a saved feature, from the module that made them
// to the modules that react. It knows nothing about the events themselves;
// their names and payloads live in internal/events.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus. EventName is the routing key
// ("imports.batch.committed", "features.saved") handlers subscribe to.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent stamps an event with its publication time. Embed it.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler reacts to one published event. A returned error is logged by the
// bus and never reaches the publisher of an asynchronous event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a closure subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus routes events to the handlers subscribed to their name.
type Bus interface {
	// Publish hands the event to every subscriber without waiting. A save or
	// import must not fail because a listener did.
	Publish(ctx context.Context, event Event)
	// PublishSync runs subscribers in order and returns their joined errors.
	PublishSync(ctx context.Context, event Event) error
	// Subscribe adds handler for events whose EventName equals eventName.
	Subscribe(eventName string, handler Handler)
}
