package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for datastore operations
type DatastoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	retriesTotal      *prometheus.CounterVec
	collectors        []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfit_datastore_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"}, // status: success, error
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campusfit_datastore_operation_duration_seconds",
			Help:    "Time taken for database operations including retries",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"operation"},
	)

	m.retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfit_datastore_retries_total",
			Help: "Total number of retried database writes",
		},
		[]string{"operation"},
	)

	m.collectors = []prometheus.Collector{m.operationsTotal, m.operationDuration, m.retriesTotal}
}

// RecordOperation records a finished database operation.
func (m *DatastoreMetrics) RecordOperation(operation, status string, duration time.Duration) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetry records a retried write.
func (m *DatastoreMetrics) RecordRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
