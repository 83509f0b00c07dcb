package config

import (
	"errors"
	"fmt"
	"strings"

	"event-director/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func invalidf(field, format string, args ...interface{}) error {
	return invalid(field, fmt.Sprintf(format, args...))
}

func checkPort(field string, port int) error {
	if port < 1 || port > 65535 {
		return invalidf(field, "port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func ValidateStatic(cfg *Config) error {
	validators := []func(*Config) error{
		func(c *Config) error { return validateServer(c.Server) },
		func(c *Config) error { return validateBroker(c.Broker) },
		func(c *Config) error { return validateDatabase(c.Database) },
		validateCache,
		func(c *Config) error { return validateDirector(c.Director) },
	}

	var errs []error
	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateServer(cfg ServerConfig) error {
	if err := checkPort("server.port", cfg.Port); err != nil {
		return err
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return invalid("server.read_timeout_seconds", "read timeout must be positive")
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return invalid("server.write_timeout_seconds", "write timeout must be positive")
	}

	if cfg.RateLimit.Enabled && (cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0) {
		return invalid("server.rate_limit", "rps and burst must be positive when rate limiting is enabled")
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Workers < 1 {
		return invalidf("broker.workers", "at least one worker is required, got %d", cfg.Workers)
	}

	if err := validateRetry(cfg.Retry); err != nil {
		return err
	}

	switch cfg.Type {
	case "":
		return invalid("broker.type", "broker type is required")
	case constants.BrokerKafka:
		return validateKafka(cfg.Kafka)
	case constants.BrokerRabbitMQ:
		return validateRabbitMQ(cfg.RabbitMQ)
	default:
		return invalidf("broker.type", "unknown broker type: %s (supported: kafka, rabbitmq)", cfg.Type)
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return invalid("broker.kafka.brokers", "at least one Kafka broker is required")
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return invalid(fmt.Sprintf("broker.kafka.brokers[%d]", i), "broker address cannot be empty")
		}
	}

	if cfg.GroupID == "" {
		return invalid("broker.kafka.group_id", "Kafka consumer group ID is required")
	}

	if cfg.InputTopic == "" {
		return invalid("broker.kafka.input_topic", "input topic is required")
	}

	return nil
}

func validateRetry(cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return invalid("broker.retry.max_attempts", "max_attempts must be non-negative")
	}

	if cfg.InitialInterval < 0 || cfg.MaxInterval < 0 {
		return invalid("broker.retry", "retry intervals must be non-negative")
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return invalid("broker.retry.max_interval", "max_interval must be greater than or equal to initial_interval")
	}

	if cfg.Multiplier <= 0 {
		return invalid("broker.retry.multiplier", "multiplier must be positive")
	}

	return nil
}

func validateRabbitMQ(cfg RabbitMQConfig) error {
	if cfg.Host == "" {
		return invalid("broker.rabbitmq.host", "RabbitMQ host is required")
	}

	if err := checkPort("broker.rabbitmq.port", cfg.Port); err != nil {
		return err
	}

	if cfg.InputQueue == "" {
		return invalid("broker.rabbitmq.input_queue", "input queue is required")
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	switch cfg.ConfigStore {
	case constants.ConfigStoreMongoDB:
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	case constants.ConfigStorePostgres:
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	default:
		return invalidf("database.config_store", "unknown config store: %q (supported: mongodb, postgres)", cfg.ConfigStore)
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		return validateRedis(cfg.Redis)
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return invalid("database.postgres.host", "PostgreSQL host is required")
	}

	if err := checkPort("database.postgres.port", cfg.Port); err != nil {
		return err
	}

	if cfg.User == "" {
		return invalid("database.postgres.user", "PostgreSQL user is required")
	}

	if cfg.DBName == "" {
		return invalid("database.postgres.dbname", "PostgreSQL database name is required")
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return invalidf("database.postgres.sslmode", "invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode)
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return invalid("database.redis.host", "Redis host is required")
	}

	if err := checkPort("database.redis.port", cfg.Port); err != nil {
		return err
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return invalid("database.mongodb.uri", "MongoDB URI is required")
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return invalid("database.mongodb.uri", "MongoDB URI must start with mongodb:// or mongodb+srv://")
	}

	if cfg.Database == "" {
		return invalid("database.mongodb.database", "MongoDB database name is required")
	}

	return nil
}

func validateCache(cfg *Config) error {
	if cfg.Cache.TTLSeconds < 0 {
		return invalid("cache.ttl_seconds", "TTL must be non-negative (0 disables expiry)")
	}

	switch cfg.Cache.Backend {
	case constants.CacheBackendLocal:
		if cfg.Cache.LocalSizeMB < constants.MinLocalCacheMB {
			return invalidf("cache.local_size_mb", "local cache needs at least %d MB", constants.MinLocalCacheMB)
		}
	case constants.CacheBackendRedis:
		if cfg.Database.Redis.Host == "" {
			return invalid("database.redis.host", "redis cache backend requires database.redis settings")
		}
	default:
		return invalidf("cache.backend", "unknown cache backend: %q (supported: local, redis)", cfg.Cache.Backend)
	}

	return nil
}

func validateDirector(cfg DirectorConfig) error {
	if cfg.MaxConcurrentSends < 0 {
		return invalid("director.max_concurrent_sends", "must be non-negative (0 means unbounded)")
	}

	if cfg.Warmup.ReloadIntervalSeconds < 0 || cfg.Warmup.JitterMaxMilliseconds < 0 {
		return invalid("director.warmup", "reload interval and jitter must be non-negative")
	}

	return nil
}
