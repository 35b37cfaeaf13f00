package bus

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/strideloop/runcore/pkg/config"
	"github.com/strideloop/runcore/pkg/logger"
	"github.com/strideloop/runcore/pkg/redisx"
)

const (
	// TransportChannel runs the bus in-process over gochannel.
	TransportChannel = "channel"
	// TransportRedis fans events out to other processes via Redis streams.
	TransportRedis = "redis"
)

// Bus wires the event publisher, subscriber and router. Domain events are
// published through EventBus and consumed by handlers registered on
// EventProcessor.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	EventBus       *cqrs.EventBus
	EventProcessor *cqrs.EventProcessor

	logger *logger.Logger
}

// New creates a bus on the configured transport. redisClient is required
// for the redis transport and ignored otherwise.
func New(cfg config.BusConfig, redisClient *redisx.Client, log *logger.Logger) (*Bus, error) {
	watermillLogger := watermill.NewStdLogger(false, false)

	var publisher message.Publisher
	var subscriber message.Subscriber

	switch cfg.Transport {
	case TransportRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis transport requires a redis client")
		}

		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "unknown"
		}

		var err error
		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient.Client,
			},
			watermillLogger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}

		subscriber, err = redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        redisClient.Client,
				ConsumerGroup: fmt.Sprintf("runcore-%s-%d", hostname, time.Now().UnixNano()),
			},
			watermillLogger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create subscriber: %w", err)
		}

	case TransportChannel:
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)
		publisher = pubSub
		subscriber = pubSub

	default:
		return nil, fmt.Errorf("unknown bus transport: %s", cfg.Transport)
	}

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 5 * time.Second,
	}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	eventBus, err := cqrs.NewEventBusWithConfig(
		publisher,
		cqrs.EventBusConfig{
			GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
				return fmt.Sprintf("run-events.%s", params.EventName), nil
			},
			Marshaler: cqrs.JSONMarshaler{},
			Logger:    watermillLogger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(
		router,
		cqrs.EventProcessorConfig{
			GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
				return fmt.Sprintf("run-events.%s", params.EventName), nil
			},
			SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
				return subscriber, nil
			},
			Marshaler: cqrs.JSONMarshaler{},
			Logger:    watermillLogger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event processor: %w", err)
	}

	return &Bus{
		publisher:      publisher,
		subscriber:     subscriber,
		router:         router,
		EventBus:       eventBus,
		EventProcessor: eventProcessor,
		logger:         log.WithComponent("bus"),
	}, nil
}

// Publish sends a domain event. Failures are logged and swallowed so a bus
// outage never disturbs tracking.
func (b *Bus) Publish(ctx context.Context, event any) {
	if err := b.EventBus.Publish(ctx, event); err != nil {
		b.logger.Warn("Failed to publish event", zap.Error(err))
	}
}

// Run starts the router and blocks until the context is canceled.
func (b *Bus) Run(ctx context.Context) error {
	b.logger.Info("Event bus router starting")
	return b.router.Run(ctx)
}

// Running returns a channel closed once the router is running.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close shuts down the router and both transport ends.
func (b *Bus) Close() error {
	return b.router.Close()
}
