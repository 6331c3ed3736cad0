// Package messaging provides the in-process event bus connecting the
// tracker to badge evaluation and cache maintenance.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streamhub/stream-community-hub/internal/domain/shared"
)

// InMemoryEventBus dispatches events synchronously to subscribed handlers.
// Handler errors are logged, never propagated to the publisher: a failing
// badge announcement must not lose a session.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler
	logger   *slog.Logger
}

// NewInMemoryEventBus creates an empty bus.
func NewInMemoryEventBus(logger *slog.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventBus{
		handlers: make(map[string][]shared.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event name.
func (b *InMemoryEventBus) Subscribe(eventName string, handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish delivers the event to every subscriber in registration order.
func (b *InMemoryEventBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return fmt.Errorf("publish nil event")
	}

	b.mu.RLock()
	handlers := make([]shared.EventHandler, len(b.handlers[event.EventName()]))
	copy(handlers, b.handlers[event.EventName()])
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Error("event handler failed",
				"event", event.EventName(),
				"error", err)
		}
	}
	return nil
}

// SubscriberCount returns how many handlers listen to an event name.
func (b *InMemoryEventBus) SubscriberCount(eventName string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventName])
}
