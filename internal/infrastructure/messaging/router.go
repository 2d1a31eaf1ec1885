package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/thejerf/suture/v4"

	"github.com/learnhub/completion-core/internal/domain/shared"
)

// RouterConfig holds configuration for the Watermill Router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// PoisonQueueTopic receives messages that still fail after all retries.
	// Empty disables the poison queue.
	PoisonQueueTopic string
}

// DefaultRouterConfig returns production defaults for the Router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		PoisonQueueTopic:     PoisonTopic,
	}
}

// Router dispatches messages from a Watermill subscriber to domain event
// handlers. A handler error nacks the message: it is retried with backoff
// and finally routed to the poison queue.
type Router struct {
	router     *message.Router
	subscriber message.Subscriber
	logger     *slog.Logger
}

var _ shared.EventSubscriber = (*Router)(nil)

// NewRouter creates a new Watermill Router with pre-configured middleware.
func NewRouter(cfg RouterConfig, sub message.Subscriber, poison message.Publisher, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wmLogger := watermill.NewSlogLogger(logger)

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Outermost first: poison queue sees the error only after retries are spent.
	if poison != nil && cfg.PoisonQueueTopic != "" {
		poisonQueue, err := middleware.PoisonQueue(poison, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poisonQueue)
	}

	wmRouter.AddMiddleware(
		middleware.Retry{
			MaxRetries:      cfg.RetryMaxRetries,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
			Multiplier:      cfg.RetryMultiplier,
			Logger:          wmLogger,
		}.Middleware,
		middleware.Recoverer,
	)

	return &Router{
		router:     wmRouter,
		subscriber: sub,
		logger:     logger.With("component", "event_router"),
	}, nil
}

// Subscribe registers a named consumer for an event type. Must be called
// before Run.
func (r *Router) Subscribe(eventType shared.EventType, name string, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if _, ok := registry[eventType]; !ok {
		return fmt.Errorf("%w: %s", ErrEventNotSupported, eventType)
	}

	r.router.AddConsumerHandler(name, TopicFor(eventType), r.subscriber, func(msg *message.Message) error {
		event, err := Unmarshal(msg)
		if err != nil {
			return err
		}
		return handler(msg.Context(), event)
	})
	r.logger.Debug("subscribed consumer", "event_type", eventType, "handler", name)
	return nil
}

// Run starts the router and blocks until ctx is cancelled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Serve runs the router as a supervised service. A watermill router cannot
// be restarted once closed, so an unexpected stop terminates the tree.
func (r *Router) Serve(ctx context.Context) error {
	err := r.router.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		err = errors.New("router stopped")
	}
	r.logger.Error("event router stopped unexpectedly", "error", err)
	return fmt.Errorf("%w: %w", suture.ErrTerminateSupervisorTree, err)
}

// String names the service in supervisor logs.
func (r *Router) String() string {
	return "event-router"
}

// Running is closed once all handlers are subscribed and consuming.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight handlers.
func (r *Router) Close() error {
	return r.router.Close()
}
