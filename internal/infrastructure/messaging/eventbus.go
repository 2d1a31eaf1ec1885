// Package messaging carries domain events between the command side and the
// notification consumers. It provides an in-process bus and a Watermill-backed
// bus that runs over Go channels or NATS JetStream.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/learnhub/completion-core/internal/domain/shared"
	"github.com/learnhub/completion-core/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilEvent is returned when publishing a nil event.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrEventNotSupported is returned for unknown event types.
	ErrEventNotSupported = errors.New("event type not supported")

	// ErrHandlerPanic is joined into the error of a handler that panicked.
	ErrHandlerPanic = errors.New("handler panicked")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

type subscription struct {
	name    string
	handler shared.EventHandler
}

// InMemoryEventBus is a simple in-memory implementation of shared.EventBus.
// Suitable for single-instance deployments and testing.
type InMemoryEventBus struct {
	mu         sync.RWMutex
	handlers   map[shared.EventType][]subscription
	asyncMode  bool
	workerPool chan struct{}
	timeout    time.Duration
	logger     *slog.Logger
	closed     bool
	closeCh    chan struct{}
	wg         sync.WaitGroup
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on a bounded worker pool instead of the publisher's goroutine.
	AsyncMode bool

	// WorkerPoolSize is the number of concurrent workers for async processing.
	WorkerPoolSize int

	// HandlerTimeout bounds a single handler invocation (0 disables).
	HandlerTimeout time.Duration

	Logger *slog.Logger
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		HandlerTimeout: 30 * time.Second,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	return &InMemoryEventBus{
		handlers:   make(map[shared.EventType][]subscription),
		asyncMode:  config.AsyncMode,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		timeout:    config.HandlerTimeout,
		logger:     config.Logger.With("component", "event_bus"),
		closeCh:    make(chan struct{}),
	}
}

// Subscribe registers a named handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, name string, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], subscription{name: name, handler: handler})
	b.logger.Debug("subscribed handler", "event_type", eventType, "handler", name)

	return nil
}

// Publish sends an event to all subscribed handlers.
// Handler failures are logged; they never fail the publisher.
func (b *InMemoryEventBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	subs := append([]subscription(nil), b.handlers[event.EventType()]...)
	b.mu.RUnlock()

	metrics.RecordEventPublished(string(event.EventType()), nil)

	if len(subs) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return nil
	}

	for _, sub := range subs {
		if b.asyncMode {
			b.executeAsync(ctx, event, sub)
			continue
		}
		if err := b.execute(ctx, event, sub); err != nil {
			b.logger.Error("handler error",
				"event_type", event.EventType(),
				"handler", sub.name,
				"error", err,
			)
		}
	}

	return nil
}

// executeAsync executes a handler on the worker pool. The handler outlives
// the publisher's request, so cancellation is detached.
func (b *InMemoryEventBus) executeAsync(ctx context.Context, event shared.Event, sub subscription) {
	b.wg.Add(1)
	detached := context.WithoutCancel(ctx)

	go func() {
		defer b.wg.Done()

		select {
		case b.workerPool <- struct{}{}:
			defer func() { <-b.workerPool }()
		case <-b.closeCh:
			return
		}

		start := time.Now()
		if err := b.execute(detached, event, sub); err != nil {
			b.logger.Error("async handler error",
				"event_type", event.EventType(),
				"handler", sub.name,
				"duration", time.Since(start),
				"error", err,
			)
		}
	}()
}

func (b *InMemoryEventBus) execute(ctx context.Context, event shared.Event, sub subscription) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return sub.handler(ctx, event)
}

// Wait blocks until all in-flight async handlers have returned.
func (b *InMemoryEventBus) Wait() {
	b.wg.Wait()
}

// Close gracefully shuts down the event bus.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	// Wait for pending handlers to complete
	b.wg.Wait()

	b.logger.Info("event bus closed")
	return nil
}
