// Package events provides an in-process publish/subscribe bus for
// domain events.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicgrid/platform/internal/shared/types"
)

// Event represents a domain event
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`

	// Actor information
	ActorID   types.ID `json:"actor_id"`
	ActorRole string   `json:"actor_role"` // citizen, departmentAdmin, system

	// Event data
	Data any `json:"data"`
}

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType, source string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// WithActor sets the actor information on the event
func (e Event) WithActor(actorID types.ID, actorRole string) Event {
	e.ActorID = actorID
	e.ActorRole = actorRole
	return e
}

// WithCorrelation sets the correlation ID for request tracing
func (e Event) WithCorrelation(correlationID string) Event {
	e.CorrelationID = correlationID
	return e
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event)

// Publisher is the write side of the bus
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Bus fans events out to subscribers. Handlers run on the publisher's
// goroutine, so they must be fast and must not block.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	all      []Handler
	logger   *zap.Logger
}

// NewBus creates an empty bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish delivers the event to matching subscribers. Panicking
// handlers are recovered so one bad subscriber cannot break a request.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type])+len(b.all))
	handlers = append(handlers, b.handlers[event.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.dispatch(ctx, event, handler)
	}
}

func (b *Bus) dispatch(ctx context.Context, event Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", event.Type),
				zap.Any("panic", r))
		}
	}()
	handler(ctx, event)
}

// NewAuditSubscriber returns a handler that logs every event. It is
// meant to be registered with SubscribeAll.
func NewAuditSubscriber(logger *zap.Logger) Handler {
	return func(_ context.Context, event Event) {
		logger.Info("domain event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.String("source", event.Source),
			zap.String("actor_id", event.ActorID.String()),
			zap.String("actor_role", event.ActorRole),
		)
	}
}
