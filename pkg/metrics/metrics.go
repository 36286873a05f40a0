package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcing_events_appended_total",
			Help: "Total number of events appended to the event log (count)",
		},
		[]string{"entity_type", "event_type"},
	)

	EventsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcing_events_rejected_total",
			Help: "Total number of events rejected before the log (count)",
		},
		[]string{"reason"},
	)

	AppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sourcing_append_duration_ms",
			Help:    "Duration of append plus derivations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	DerivationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcing_derivation_failures_total",
			Help: "Total number of derivation failures during append (count)",
		},
		[]string{"derivation"},
	)

	ReplayEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sourcing_replay_events_total",
			Help: "Total number of events folded during entity rebuilds (count)",
		},
	)

	ComplianceChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_checks_total",
			Help: "Total number of compliance rule evaluations (count)",
		},
		[]string{"rule_id", "result"},
	)

	RetentionAssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_assignments_total",
			Help: "Total number of retention policy assignments (count)",
		},
		[]string{"policy_id", "action"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_duration_ms",
			Help:    "Duration of event log queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	RoutingEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_events_total",
			Help: "Total number of events seen by the router (count)",
		},
		[]string{"outcome"},
	)

	RoutingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "routing_duration_ms",
			Help:    "Per-event routing duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	RoutingActiveRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "routing_active_rules",
			Help: "Number of active routing rules (count)",
		},
	)

	FilterEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_filter_evaluations_total",
			Help: "Total number of filter chain evaluations (count)",
		},
		[]string{"chain", "result"},
	)

	DestinationDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "destination_deliveries_total",
			Help: "Total number of destination dispatch attempts (count)",
		},
		[]string{"destination", "status"},
	)

	DestinationDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "destination_delivery_duration_ms",
			Help:    "Duration of destination dispatches in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"destination"},
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
			Help: "Total number of events sent to DLQ (count)",
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

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)
)

func RegisterSourcingMetrics() {
	prometheus.MustRegister(EventsAppendedTotal)
	prometheus.MustRegister(EventsRejectedTotal)
	prometheus.MustRegister(AppendDuration)
	prometheus.MustRegister(DerivationFailuresTotal)
	prometheus.MustRegister(ReplayEventsTotal)
	prometheus.MustRegister(ComplianceChecksTotal)
	prometheus.MustRegister(RetentionAssignmentsTotal)
	prometheus.MustRegister(QueryDuration)
}

func RegisterRoutingMetrics() {
	prometheus.MustRegister(RoutingEventsTotal)
	prometheus.MustRegister(RoutingDuration)
	prometheus.MustRegister(RoutingActiveRules)
	prometheus.MustRegister(FilterEvaluationsTotal)
	prometheus.MustRegister(DestinationDeliveriesTotal)
	prometheus.MustRegister(DestinationDeliveryDuration)
	prometheus.MustRegister(FallbackUsageTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAdminMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveAppendDuration(duration time.Duration) {
	AppendDuration.Observe(float64(duration.Milliseconds()))
}

func ObserveRoutingDuration(duration time.Duration) {
	RoutingDuration.Observe(float64(duration.Milliseconds()))
}

func ObserveQueryDuration(duration time.Duration, status string) {
	QueryDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func SetRoutingActiveRules(count int) {
	RoutingActiveRules.Set(float64(count))
}

func IncDestinationDelivery(destination, status string) {
	DestinationDeliveriesTotal.WithLabelValues(destination, status).Inc()
}

func ObserveDestinationDuration(destination string, duration time.Duration) {
	DestinationDeliveryDuration.WithLabelValues(destination).Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}
