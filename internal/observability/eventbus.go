package observability

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const defaultEventBuffer = 256

type event struct {
	ctx       context.Context
	eventType string
	data      map[string]interface{}
}

// EventBus implements domain.EventPublisher. Events are queued on a buffered
// channel and written by a single goroutine so publishing never blocks a
// stream; when the buffer is full the event is dropped and counted.
type EventBus struct {
	logger  *zap.Logger
	events  chan event
	dropped atomic.Int64
	done    chan struct{}
	once    sync.Once
}

// NewEventBus creates a new event bus and starts its writer.
func NewEventBus(logger *zap.Logger, buffer int) *EventBus {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}

	bus := &EventBus{
		logger: logger,
		events: make(chan event, buffer),
		done:   make(chan struct{}),
	}
	go bus.run()
	return bus
}

// Publish publishes an event with the given type and data.
func (e *EventBus) Publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if e == nil || e.logger == nil {
		return
	}

	defer func() {
		// Publish after Close lands on a closed channel.
		if recover() != nil {
			e.dropped.Add(1)
		}
	}()

	select {
	case e.events <- event{ctx: context.WithoutCancel(ctx), eventType: eventType, data: data}:
	default:
		e.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded.
func (e *EventBus) Dropped() int64 {
	return e.dropped.Load()
}

// Close flushes queued events and stops the writer.
func (e *EventBus) Close() {
	e.once.Do(func() {
		close(e.events)
		<-e.done
	})
}

func (e *EventBus) run() {
	defer close(e.done)

	for evt := range e.events {
		// Convert map to zap fields.
		fields := make([]zap.Field, 0, len(evt.data))
		for k, v := range evt.data {
			fields = append(fields, zap.Any(k, v))
		}

		e.logger.With(contextFields(evt.ctx)...).Info(evt.eventType, fields...)
	}
}
