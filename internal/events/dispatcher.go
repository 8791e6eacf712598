package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// InMemoryDispatcher delivers events to in-process handlers. Handler errors are logged
// and never returned to the publisher.
type InMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	logger    *zap.Logger
	async     bool
	wg        sync.WaitGroup
}

// NewInMemoryDispatcher creates a dispatcher that runs handlers before Publish returns.
func NewInMemoryDispatcher(logger *zap.Logger) *InMemoryDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryDispatcher{
		listeners: make(map[EventType][]EventHandler),
		logger:    logger,
	}
}

// NewAsyncDispatcher creates a dispatcher that runs each handler on its own goroutine,
// detached from the publisher's cancellation. Call Wait on shutdown.
func NewAsyncDispatcher(logger *zap.Logger) *InMemoryDispatcher {
	d := NewInMemoryDispatcher(logger)
	d.async = true
	return d
}

// Publish invokes handlers for the given event.
func (d *InMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	if d.async {
		ctx = context.WithoutCancel(ctx)
	}
	for _, handler := range handlers {
		if !d.async {
			d.run(ctx, handler, event)
			continue
		}
		d.wg.Add(1)
		go func(h EventHandler) {
			defer d.wg.Done()
			d.run(ctx, h, event)
		}(handler)
	}
	return nil
}

func (d *InMemoryDispatcher) run(ctx context.Context, handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.Any("panic", r))
		}
	}()
	if err := handler(ctx, event); err != nil {
		d.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.String("entry_id", event.EntryID),
			zap.Error(err))
	}
}

// Subscribe registers a handler for the given event type.
func (d *InMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Wait blocks until all asynchronously started handlers have returned.
func (d *InMemoryDispatcher) Wait() {
	d.wg.Wait()
}
