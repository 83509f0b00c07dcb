package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"event-director/internal/broker"
	"event-director/internal/config"
	"event-director/internal/logger"
)

// Base holds the broker clients shared by the service. Consumers are
// created on demand, one per worker, and all closed on shutdown.
type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Producer  broker.Producer
	Consumers []broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitProducer() error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	b.Producer = producer
	return nil
}

func (b *Base) NewConsumer(serviceName string) (broker.Consumer, error) {
	return b.newConsumer(b.Config.Broker, serviceName)
}

// NewBroadcastConsumer places the consumer in a Kafka group of its own so
// every instance sees every message. RabbitMQ queues stay shared.
func (b *Base) NewBroadcastConsumer(serviceName, instanceID string) (broker.Consumer, error) {
	cfg := b.Config.Broker
	cfg.Kafka.GroupID = cfg.Kafka.GroupID + "-" + instanceID
	return b.newConsumer(cfg, serviceName)
}

func (b *Base) newConsumer(cfg config.BrokerConfig, serviceName string) (broker.Consumer, error) {
	consumer, err := broker.NewConsumer(cfg, b.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	if serviceName != "" {
		consumer.SetServiceName(serviceName)
	}

	b.Consumers = append(b.Consumers, consumer)
	return consumer, nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	for i, consumer := range b.Consumers {
		if err := consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer %d close error: %w", i, err))
		}
	}

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
