package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics covers the detection feed poller and the deduplicator.
type IngestMetrics struct {
	pollsTotal   *prometheus.CounterVec
	pollDuration prometheus.Histogram
	eventsTotal  *prometheus.CounterVec
	collectors   []prometheus.Collector
}

// NewIngestMetrics creates and registers ingest metrics.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ingest metrics: %w", err)
	}
	return m, nil
}

func (m *IngestMetrics) initMetrics() {
	m.pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfit_ingest_polls_total",
			Help: "Total number of detection feed polls by outcome",
		},
		[]string{"outcome"}, // event, empty, failure
	)

	m.pollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "campusfit_ingest_poll_duration_seconds",
		Help:    "Time taken by a detection feed poll",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
	})

	m.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfit_ingest_events_total",
			Help: "Total number of detection events by deduplication outcome",
		},
		[]string{"outcome"}, // new_violation, new_non_violation, duplicate, exempt
	)

	m.collectors = []prometheus.Collector{m.pollsTotal, m.pollDuration, m.eventsTotal}
}

// ObservePoll records one poll.
func (m *IngestMetrics) ObservePoll(outcome string, elapsed time.Duration) {
	m.pollsTotal.WithLabelValues(outcome).Inc()
	m.pollDuration.Observe(elapsed.Seconds())
}

// ObserveDecision records a deduplication outcome.
func (m *IngestMetrics) ObserveDecision(outcome string) {
	m.eventsTotal.WithLabelValues(outcome).Inc()
}

// Describe implements the Collector interface
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
