package constants

import "time"

const (
	ServiceName = "event-director"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	RabbitMQPublishTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

// Route cache key layout.
const (
	CacheKeyPrefixTenant = "tenant:"
	CacheKeyPrefixRedis  = "event-director:route:"
)

const (
	DefaultCacheTTLSeconds = 300
	DefaultLocalCacheMB    = 32
	MinLocalCacheMB        = 1
)

const (
	DefaultInputTopic        = "event-director"
	DefaultConfigUpdateTopic = "config-updates"
	DefaultDLQTopic          = "event-director-dlq"
	DefaultRuleTopicPrefix   = "sub-rule-"
)

const (
	DefaultMongoDBName          = "configuration"
	DefaultNetworkMapCollection = "network_maps"
	DefaultPostgresTable        = "network_maps"
)

const (
	ConfigStoreMongoDB  = "mongodb"
	ConfigStorePostgres = "postgres"
)

const (
	CacheBackendLocal = "local"
	CacheBackendRedis = "redis"
)

const (
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)
