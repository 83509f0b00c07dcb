package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000, ReadTimeoutSeconds: 10, WriteTimeoutSeconds: 10},
		Database: DatabaseConfig{
			ConfigStore: "mongodb",
			MongoDB:     MongoDBConfig{URI: "mongodb://localhost:27017", Database: "configuration"},
		},
		Broker: BrokerConfig{
			Type:    "kafka",
			Workers: 1,
			Kafka:   KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "ed", InputTopic: "event-director"},
			Retry:   RetryConfig{MaxAttempts: 3, Multiplier: 2},
		},
		Cache: CacheConfig{Backend: "local", TTLSeconds: 300, LocalSizeMB: 32},
	}
}

func TestValidateStatic(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no workers", func(c *Config) { c.Broker.Workers = 0 }, "broker.workers"},
		{"unknown broker", func(c *Config) { c.Broker.Type = "nats" }, "broker.type"},
		{"rabbitmq without host", func(c *Config) { c.Broker.Type = "rabbitmq" }, "broker.rabbitmq.host"},
		{"unknown store", func(c *Config) { c.Database.ConfigStore = "dynamo" }, "database.config_store"},
		{"postgres without host", func(c *Config) { c.Database.ConfigStore = "postgres" }, "database.postgres.host"},
		{"negative ttl", func(c *Config) { c.Cache.TTLSeconds = -1 }, "cache.ttl_seconds"},
		{"zero ttl allowed", func(c *Config) { c.Cache.TTLSeconds = 0 }, ""},
		{"redis cache without redis", func(c *Config) { c.Cache.Backend = "redis" }, "database.redis.host"},
		{"negative concurrency", func(c *Config) { c.Director.MaxConcurrentSends = -1 }, "director.max_concurrent_sends"},
		{"bad retry multiplier", func(c *Config) { c.Broker.Retry.Multiplier = 0 }, "broker.retry.multiplier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateStatic(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}
