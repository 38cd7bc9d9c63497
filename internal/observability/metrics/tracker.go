package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// TrackerMetrics exposes the live rate tracker state.
type TrackerMetrics struct {
	HourlyCount prometheus.Gauge
	Active      prometheus.Gauge
	Alert       prometheus.Gauge
}

// NewTrackerMetrics creates and registers tracker gauges.
func NewTrackerMetrics(registry *prometheus.Registry) (*TrackerMetrics, error) {
	m := &TrackerMetrics{
		HourlyCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campusfit_tracker_hourly_violations",
			Help: "Violations within the trailing window",
		}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campusfit_tracker_active",
			Help: "1 while a recent violation keeps the monitor active",
		}),
		Alert: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campusfit_tracker_alert",
			Help: "1 while the violation alert is raised",
		}),
	}
	for _, c := range []prometheus.Collector{m.HourlyCount, m.Active, m.Alert} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register tracker metrics: %w", err)
		}
	}
	return m, nil
}

// SetState publishes the tracker state.
func (m *TrackerMetrics) SetState(hourlyCount int, active, alert bool) {
	m.HourlyCount.Set(float64(hourlyCount))
	m.Active.Set(boolToFloat(active))
	m.Alert.Set(boolToFloat(alert))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
