package monitor

import (
	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/events"
	"github.com/campusfit/campusfit-go/internal/logger"
)

// enqueueAlert hands v to the alert bus without blocking ingestion. A full
// buffer drops the alert.
func (m *Monitor) enqueueAlert(v *datastore.ViolationRecord) {
	if !m.bus.HasConsumers() {
		return
	}
	if !m.bus.TryPublish(events.Alert{Violation: v, State: m.deps.Tracker.State()}) {
		m.log.Warn("alert queue full, dropping alert",
			logger.String("source_id", v.SourceID),
			logger.Int("queued", m.bus.Len()))
	}
}
