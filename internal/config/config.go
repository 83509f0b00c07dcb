package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Director       DirectorConfig
	Cache          CacheConfig
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int             `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration   `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration   `mapstructure:"write_timeout_seconds"`
	RateLimit           RateLimitConfig `mapstructure:"rate_limit"`
}

type DatabaseConfig struct {
	// ConfigStore selects where network maps are read from: "mongodb" or
	// "postgres".
	ConfigStore   string `mapstructure:"config_store"`
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type BrokerConfig struct {
	Type string `mapstructure:"type"`
	// Workers is the number of consumers started in the same group.
	Workers  int            `mapstructure:"workers"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Retry    RetryConfig    `mapstructure:"retry"`
}

type RabbitMQConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	VHost             string `mapstructure:"vhost"`
	Exchange          string `mapstructure:"exchange"`
	InputQueue        string `mapstructure:"input_queue"`
	ConfigUpdateQueue string `mapstructure:"config_update_queue"`
	DLQQueue          string `mapstructure:"dlq_queue"`
	PrefetchCount     int    `mapstructure:"prefetch_count"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	GroupID           string   `mapstructure:"group_id"`
	InputTopic        string   `mapstructure:"input_topic"`
	ConfigUpdateTopic string   `mapstructure:"config_update_topic"`
	DLQTopic          string   `mapstructure:"dlq_topic"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DirectorConfig struct {
	FunctionName string `mapstructure:"function_name"`
	// Authenticated rejects transactions that carry no tenant instead of
	// routing them with the default network map.
	Authenticated bool `mapstructure:"authenticated"`
	// RuleTopicPrefix builds the destination for rules without an explicit
	// host.
	RuleTopicPrefix    string       `mapstructure:"rule_topic_prefix"`
	MaxConcurrentSends int          `mapstructure:"max_concurrent_sends"`
	Warmup             WarmupConfig `mapstructure:"warmup"`
}

type WarmupConfig struct {
	Enabled               bool `mapstructure:"enabled"`
	ReloadIntervalSeconds int  `mapstructure:"reload_interval_seconds"`
	JitterMaxMilliseconds int  `mapstructure:"jitter_max_ms"`
}

type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	// TTLSeconds of 0 keeps entries until the next flush.
	TTLSeconds  int `mapstructure:"ttl_seconds"`
	LocalSizeMB int `mapstructure:"local_size_mb"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
