package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AlertMetrics covers violation alert fan-out to MQTT and push
// notification sinks.
type AlertMetrics struct {
	deliveriesTotal *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	connected       *prometheus.GaugeVec
}

// NewAlertMetrics creates and registers alert metrics.
func NewAlertMetrics(registry *prometheus.Registry) (*AlertMetrics, error) {
	m := &AlertMetrics{
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusfit_alert_deliveries_total",
				Help: "Total number of alert deliveries by sink and status",
			},
			[]string{"sink", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campusfit_alert_delivery_latency_seconds",
				Help:    "Latency of alert deliveries",
				Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
			},
			[]string{"sink"},
		),
		connected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "campusfit_alert_sink_connected",
				Help: "Sink connection status (1 for connected, 0 for disconnected)",
			},
			[]string{"sink"},
		),
	}
	for _, c := range []prometheus.Collector{m.deliveriesTotal, m.latency, m.connected} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register alert metrics: %w", err)
		}
	}
	return m, nil
}

// RecordDelivery records one alert delivery attempt.
func (m *AlertMetrics) RecordDelivery(sink string, err error, elapsed time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.deliveriesTotal.WithLabelValues(sink, status).Inc()
	m.latency.WithLabelValues(sink).Observe(elapsed.Seconds())
}

// SetConnected records a sink's connection state.
func (m *AlertMetrics) SetConnected(sink string, connected bool) {
	m.connected.WithLabelValues(sink).Set(boolToFloat(connected))
}
