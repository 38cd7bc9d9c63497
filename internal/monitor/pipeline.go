package monitor

import (
	"context"
	"time"

	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/detection"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
)

func (m *Monitor) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

func (m *Monitor) recomputeLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.RecomputeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Recompute(ctx)
		}
	}
}

// Tick runs one ingestion step: poll, classify and record.
func (m *Monitor) Tick(ctx context.Context) {
	ev, ok := m.deps.Source.PollOnce(ctx)
	if !ok {
		return
	}
	if _, err := m.Ingest(ctx, ev); err != nil && ctx.Err() == nil {
		m.log.Error("failed to record detection",
			logger.String("source_id", ev.SourceID),
			logger.String("kind", string(ev.Kind)),
			logger.Error(err))
	}
}

// Recompute prunes the hourly window and expired dedup entries, then
// reloads the snapshot list.
func (m *Monitor) Recompute(ctx context.Context) {
	count := m.deps.Tracker.Recompute()
	m.deps.Dedup.Prune()
	if err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
		m.log.Warn("failed to refresh recent violations", logger.Error(err))
	}
	m.log.Debug("hourly window recomputed", logger.Int("hourly_count", count))
}

// Ingest classifies ev and persists it when new. A failed write forgets the
// source ID so the next delivery is retried.
func (m *Monitor) Ingest(ctx context.Context, ev *detection.Event) (detection.Decision, error) {
	decision := m.deps.Dedup.Classify(*ev)
	if m.deps.Decisions != nil {
		m.deps.Decisions.ObserveDecision(decision.Outcome.String())
	}

	var err error
	switch decision.Outcome {
	case detection.OutcomeNewViolation:
		err = m.recordViolation(ctx, decision)
	case detection.OutcomeNewNonViolation:
		err = m.recordDetection(ctx, decision)
	case detection.OutcomeExempt:
		m.log.Debug("exempt violation dropped",
			logger.String("source_id", ev.SourceID),
			logger.String("category", string(decision.Category)))
	}
	if err != nil {
		m.deps.Dedup.Forget(ev.Kind, ev.SourceID)
	}
	return decision, err
}

func (m *Monitor) timestamp(ev *detection.Event) time.Time {
	ts, err := ev.Timestamp(m.cfg.Location)
	if err != nil {
		return m.deps.Clock.Now()
	}
	return ts
}

func (m *Monitor) recordViolation(ctx context.Context, d detection.Decision) error {
	ev := d.Event
	draft := &datastore.ViolationRecord{
		SourceID:     ev.SourceID,
		Category:     string(d.Category),
		RawLabel:     ev.RawLabel,
		CameraNumber: ev.CameraNumber,
		Date:         ev.Date,
		Time:         ev.Time,
		Timestamp:    m.timestamp(&ev),
		ImageRef:     ev.ImageRef,
		Confidence:   ev.Confidence,
	}
	rec, created, err := m.deps.Reviews.Create(ctx, draft)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	m.deps.Tracker.OnViolation(rec.SourceID, rec.Timestamp)

	m.mu.Lock()
	m.recent = append([]datastore.ViolationRecord{*rec}, m.recent...)
	if len(m.recent) > m.cfg.RecentLimit {
		m.recent = m.recent[:m.cfg.RecentLimit]
	}
	m.mu.Unlock()

	m.enqueueAlert(rec)
	return nil
}

func (m *Monitor) recordDetection(ctx context.Context, d detection.Decision) error {
	ev := d.Event
	rec := &datastore.NonViolationRecord{
		SourceID:     ev.SourceID,
		Quadrant:     string(d.Quadrant),
		RawLabel:     ev.RawLabel,
		CameraNumber: ev.CameraNumber,
		Date:         ev.Date,
		Time:         ev.Time,
		Timestamp:    m.timestamp(&ev),
		ImageRef:     ev.ImageRef,
	}
	err := m.deps.Store.InsertNonViolation(ctx, rec)
	if errors.Is(err, datastore.ErrDuplicate) {
		return nil
	}
	return err
}
