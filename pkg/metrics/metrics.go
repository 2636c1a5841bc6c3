package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream (PHP API) metrics
	UpstreamRequests        *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec

	// Controller metrics
	RefreshesTotal        *prometheus.CounterVec
	StaleResponsesDropped *prometheus.CounterVec
	ControllerRecords     *prometheus.GaugeVec

	// Alert metrics
	AlertProducts          *prometheus.GaugeVec
	NotificationsPresented *prometheus.CounterVec
	AlertsDismissed        *prometheus.CounterVec

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaEventsConsumed  *prometheus.CounterVec

	// MongoDB metrics
	MongoDBOperations *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "pharmacy",
	}
}

// New creates a new Metrics instance with its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "upstream_requests_total",
			Help:      "Calls made to the PHP inventory API by outcome code",
		},
		[]string{"service", "endpoint", "outcome"},
	)

	m.UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "PHP inventory API call duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "endpoint"},
	)

	m.RefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "controller_refreshes_total",
			Help:      "Data controller refreshes by trigger and result",
		},
		[]string{"service", "controller", "trigger", "result"},
	)

	m.StaleResponsesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "controller_stale_responses_total",
			Help:      "Responses discarded because a newer request had already been applied",
		},
		[]string{"service", "controller"},
	)

	m.ControllerRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "controller_records",
			Help:      "Records currently held by a data controller",
		},
		[]string{"service", "controller"},
	)

	m.AlertProducts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "alert_products",
			Help:      "Products currently in each alert class",
		},
		[]string{"service", "alert"},
	)

	m.NotificationsPresented = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "notifications_presented_total",
			Help:      "Alert notifications surfaced to a session",
		},
		[]string{"service", "screen", "alert"},
	)

	m.AlertsDismissed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "alerts_dismissed_total",
			Help:      "Alert classes dismissed by users",
		},
		[]string{"service", "alert"},
	)

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "kafka_events_published_total",
			Help:      "Total number of Kafka events published",
		},
		[]string{"service", "topic", "event_type", "status"},
	)

	m.KafkaEventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "kafka_events_consumed_total",
			Help:      "Total number of Kafka events consumed",
		},
		[]string{"service", "topic", "event_type", "status"},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operations_total",
			Help:      "Total number of MongoDB operations",
		},
		[]string{"service", "collection", "operation", "status"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.UpstreamRequests,
		m.UpstreamRequestDuration,
		m.RefreshesTotal,
		m.StaleResponsesDropped,
		m.ControllerRecords,
		m.AlertProducts,
		m.NotificationsPresented,
		m.AlertsDismissed,
		m.KafkaEventsPublished,
		m.KafkaEventsConsumed,
		m.MongoDBOperations,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordUpstreamCall records one PHP API call. outcome is "success" or an error code.
func (m *Metrics) RecordUpstreamCall(endpoint, outcome string, duration time.Duration) {
	m.UpstreamRequests.WithLabelValues(m.serviceName, endpoint, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(m.serviceName, endpoint).Observe(duration.Seconds())
}

// RecordRefresh records a controller refresh
func (m *Metrics) RecordRefresh(controller, trigger string, success bool) {
	m.RefreshesTotal.WithLabelValues(m.serviceName, controller, trigger, statusLabel(success)).Inc()
}

// RecordStaleResponse records a discarded out-of-order response
func (m *Metrics) RecordStaleResponse(controller string) {
	m.StaleResponsesDropped.WithLabelValues(m.serviceName, controller).Inc()
}

// SetControllerRecords sets the number of records held by a controller
func (m *Metrics) SetControllerRecords(controller string, count int) {
	m.ControllerRecords.WithLabelValues(m.serviceName, controller).Set(float64(count))
}

// SetAlertProducts sets the product count of an alert class
func (m *Metrics) SetAlertProducts(alert string, count int) {
	m.AlertProducts.WithLabelValues(m.serviceName, alert).Set(float64(count))
}

// RecordNotificationPresented records a notification surfaced to a session
func (m *Metrics) RecordNotificationPresented(screen, alert string) {
	m.NotificationsPresented.WithLabelValues(m.serviceName, screen, alert).Inc()
}

// RecordAlertDismissed records a user dismissal
func (m *Metrics) RecordAlertDismissed(alert string) {
	m.AlertsDismissed.WithLabelValues(m.serviceName, alert).Inc()
}

// RecordKafkaPublish records a Kafka publish event
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
}

// RecordKafkaConsume records a Kafka consume event
func (m *Metrics) RecordKafkaConsume(topic, eventType string, success bool) {
	m.KafkaEventsConsumed.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool) {
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, statusLabel(success)).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state gauge
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}
