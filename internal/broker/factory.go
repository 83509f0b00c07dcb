package broker

import (
	"fmt"

	"event-director/internal/config"
	"event-director/internal/constants"
	"event-director/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case constants.BrokerKafka:
		return NewKafkaProducer(cfg.Kafka, log), nil
	case constants.BrokerRabbitMQ:
		return NewRabbitMQProducer(cfg.RabbitMQ, log)
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case constants.BrokerKafka:
		return NewKafkaConsumer(cfg.Kafka, cfg.Retry, log), nil
	case constants.BrokerRabbitMQ:
		return NewRabbitMQConsumer(cfg.RabbitMQ, cfg.Retry, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// Topics resolves the input, config update and dead-letter destinations
// for the configured broker.
func Topics(cfg config.BrokerConfig) (input, configUpdates, dlq string) {
	if cfg.Type == constants.BrokerRabbitMQ {
		return cfg.RabbitMQ.InputQueue, cfg.RabbitMQ.ConfigUpdateQueue, cfg.RabbitMQ.DLQQueue
	}
	return cfg.Kafka.InputTopic, cfg.Kafka.ConfigUpdateTopic, cfg.Kafka.DLQTopic
}
