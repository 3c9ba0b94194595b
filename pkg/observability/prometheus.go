package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// Conversation metrics
	MessagesHandled  *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	UsersCreated     prometheus.Counter

	// Storage metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// Query metrics
	QueryDuration *prometheus.HistogramVec
}

// NewCollector creates a new metrics collector with the given namespace.
// Each collector owns its registry, so several can coexist in one process.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	messagesHandled := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_handled_total",
			Help:      "Total number of chat messages routed",
		},
		[]string{"intent", "outcome"},
	)

	deliveryFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_delivery_failures_total",
			Help:      "Total number of replies that could not be delivered",
		},
		[]string{"transport"},
	)

	usersCreated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_created_total",
			Help:      "Total number of diaries created by a first entry",
		},
	)

	storeOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of entry store operations",
		},
		[]string{"operation", "status"},
	)

	storeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Entry store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query bus dispatch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"query", "status"},
	)

	registry.MustRegister(
		messagesHandled,
		deliveryFailures,
		usersCreated,
		storeOperations,
		storeDuration,
		queryDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return &Collector{
		registry:         registry,
		MessagesHandled:  messagesHandled,
		DeliveryFailures: deliveryFailures,
		UsersCreated:     usersCreated,
		StoreOperations:  storeOperations,
		StoreDuration:    storeDuration,
		QueryDuration:    queryDuration,
	}
}

// MessageHandled implements Recorder
func (c *Collector) MessageHandled(intent, outcome string) {
	c.MessagesHandled.WithLabelValues(intent, outcome).Inc()
}

// StoreOperation implements Recorder
func (c *Collector) StoreOperation(operation string, duration time.Duration, err error) {
	c.StoreOperations.WithLabelValues(operation, statusOf(err)).Inc()
	c.StoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// DeliveryFailed implements Recorder
func (c *Collector) DeliveryFailed(transport string) {
	c.DeliveryFailures.WithLabelValues(transport).Inc()
}

// UserCreated implements Recorder
func (c *Collector) UserCreated() {
	c.UsersCreated.Inc()
}

// RecordQuery implements Recorder
func (c *Collector) RecordQuery(queryType string, duration time.Duration, err error) {
	c.QueryDuration.WithLabelValues(queryType, statusOf(err)).Observe(duration.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
