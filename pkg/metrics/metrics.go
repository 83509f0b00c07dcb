package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "director_transactions_total",
			Help: "Total number of transactions handled by the event director (count)",
		},
		[]string{"outcome"},
	)

	TransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "director_transaction_duration_ms",
			Help:    "Time from receipt to dispatch completion in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"outcome"},
	)

	RouteCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "director_route_cache_lookups_total",
			Help: "Route cache lookups by result (count)",
		},
		[]string{"result"},
	)

	RouteCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "director_route_cache_entries",
			Help: "Number of entries in the route cache (count)",
		},
	)

	NetworkMapsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "director_network_maps_loaded",
			Help: "Active network maps loaded by the last warm-up (count)",
		},
	)

	WarmupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "director_warmups_total",
			Help: "Route cache warm-ups by trigger and status (count)",
		},
		[]string{"trigger", "status"},
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "director_dispatch_total",
			Help: "Sends to rule processors by status (count)",
		},
		[]string{"status"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "director_dispatch_duration_ms",
			Help:    "Duration of a single send to a rule processor in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	MessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_read_total",
			Help: "Total number of messages read from the broker (count)",
		},
		[]string{"service", "topic"},
	)

	MessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_written_total",
			Help: "Total number of messages written to the broker (count)",
		},
		[]string{"service", "topic"},
	)

	MessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_message_size_bytes",
			Help:    "Size of broker messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	WriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_write_duration_ms",
			Help:    "Duration of writing messages to the broker in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

func RegisterDirectorMetrics() {
	prometheus.MustRegister(TransactionsTotal)
	prometheus.MustRegister(TransactionDuration)
	prometheus.MustRegister(RouteCacheLookupsTotal)
	prometheus.MustRegister(RouteCacheEntries)
	prometheus.MustRegister(NetworkMapsLoaded)
	prometheus.MustRegister(WarmupsTotal)
	prometheus.MustRegister(DispatchTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(MessagesReadTotal)
	prometheus.MustRegister(MessagesWrittenTotal)
	prometheus.MustRegister(MessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(WriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterHTTPMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveTransaction(duration time.Duration, outcome string) {
	TransactionsTotal.WithLabelValues(outcome).Inc()
	TransactionDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func IncRouteCacheLookup(result string) {
	RouteCacheLookupsTotal.WithLabelValues(result).Inc()
}

func SetRouteCacheEntries(count int) {
	RouteCacheEntries.Set(float64(count))
}

func SetNetworkMapsLoaded(count int) {
	NetworkMapsLoaded.Set(float64(count))
}

func IncWarmup(trigger, status string) {
	WarmupsTotal.WithLabelValues(trigger, status).Inc()
}

func ObserveDispatch(duration time.Duration, status string) {
	DispatchTotal.WithLabelValues(status).Inc()
	DispatchDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncMessagesRead(service, topic string) {
	MessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncMessagesWritten(service, topic string) {
	MessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveMessageSize(service, topic, direction string, sizeBytes int) {
	MessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic, partition string, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, partition).Set(float64(lag))
}

func ObserveWriteDuration(service, topic string, duration time.Duration) {
	WriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveDatabaseQuery(service, database, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
