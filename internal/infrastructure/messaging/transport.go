package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
)

// Transport kinds.
const (
	TransportMemory    = "memory"
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// TransportConfig selects and configures the broker behind the Watermill bus.
type TransportConfig struct {
	Kind string

	// NATS settings, used when Kind is "nats".
	NATSURL          string
	QueueGroup       string
	DurablePrefix    string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration

	// GoChannel buffer size, used when Kind is "gochannel".
	OutputChannelBuffer int64
}

// DefaultTransportConfig returns defaults for a local NATS server.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Kind:                TransportGoChannel,
		NATSURL:             natsgo.DefaultURL,
		QueueGroup:          "completion",
		DurablePrefix:       "completion",
		SubscribersCount:    1,
		AckWaitTimeout:      30 * time.Second,
		CloseTimeout:        30 * time.Second,
		MaxReconnects:       -1,
		ReconnectWait:       2 * time.Second,
		OutputChannelBuffer: 256,
	}
}

// Transport is a connected publisher/subscriber pair.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both sides.
func (t *Transport) Close() error {
	return errors.Join(t.Publisher.Close(), t.Subscriber.Close())
}

// NewTransport connects the configured broker. The "memory" kind has no
// Watermill transport and is rejected here.
func NewTransport(cfg TransportConfig, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wmLogger := watermill.NewSlogLogger(logger)

	switch cfg.Kind {
	case TransportGoChannel:
		ps := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            cfg.OutputChannelBuffer,
			BlockPublishUntilSubscriberAck: false,
		}, wmLogger)
		return &Transport{Publisher: ps, Subscriber: ps}, nil

	case TransportNATS:
		return newNATSTransport(cfg, wmLogger)

	default:
		return nil, fmt.Errorf("messaging: unsupported transport %q", cfg.Kind)
	}
}

func newNATSTransport(cfg TransportConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.AckWait(cfg.AckWaitTimeout),
				natsgo.DeliverAll(),
			},
			DurablePrefix: cfg.DurablePrefix,
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &Transport{Publisher: pub, Subscriber: sub}, nil
}
