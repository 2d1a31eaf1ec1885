package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/learnhub/completion-core/internal/domain/shared"
	"github.com/learnhub/completion-core/internal/infrastructure/metrics"
	"github.com/learnhub/completion-core/pkg/retry"
)

// PublisherConfig configures the resilience wrapper around a Watermill publisher.
type PublisherConfig struct {
	// MaxAttempts bounds publish retries per event.
	MaxAttempts int

	// BreakerFailures is the consecutive failure count that opens the breaker.
	BreakerFailures uint32

	// BreakerOpenTimeout is how long the breaker stays open before probing.
	BreakerOpenTimeout time.Duration
}

// DefaultPublisherConfig returns production defaults.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		MaxAttempts:        3,
		BreakerFailures:    5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// Publisher implements shared.EventPublisher over a Watermill publisher
// with retry and a circuit breaker.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[interface{}]
	retrier   *retry.Retrier
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ shared.EventPublisher = (*Publisher)(nil)

// NewPublisher wraps pub.
func NewPublisher(pub message.Publisher, cfg PublisherConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	logger = logger.With("component", "event_publisher")

	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "event-publisher",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.SetCircuitBreakerState(name, int(to))
		},
	})

	retrier := retry.PublishRetrier(cfg.MaxAttempts, retry.WithRetryIf(func(err error) bool {
		return !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests)
	}))

	return &Publisher{
		publisher: pub,
		breaker:   breaker,
		retrier:   retrier,
		logger:    logger,
	}
}

// Publish encodes and sends the event to its topic.
func (p *Publisher) Publish(ctx context.Context, event shared.Event) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	msg, err := Marshal(event)
	if err != nil {
		return err
	}
	topic := TopicFor(event.EventType())

	err = p.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := p.breaker.Execute(func() (interface{}, error) {
			// each attempt gets a fresh copy; publishers may retain the message
			return nil, p.publisher.Publish(topic, msg.Copy())
		})
		return err
	})
	metrics.RecordEventPublished(string(event.EventType()), err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}

	p.logger.Debug("event published", "event_type", event.EventType(), "event_id", event.EventID(), "topic", topic)
	return nil
}

// State reports the breaker state.
func (p *Publisher) State() gobreaker.State {
	return p.breaker.State()
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
