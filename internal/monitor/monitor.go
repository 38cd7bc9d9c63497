// Package monitor runs the live pipeline: it polls the detection feed,
// deduplicates events, records new violations through the review manager,
// keeps the rate tracker current and fans alerts out to sinks. The three
// periodic activities are owned by one Monitor with a Start/Stop lifecycle.
package monitor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/detection"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/events"
	"github.com/campusfit/campusfit-go/internal/logger"
	"github.com/campusfit/campusfit-go/internal/ratetracker"
	"github.com/campusfit/campusfit-go/internal/review"
)

// Default configuration values
const (
	defaultPollInterval      = 500 * time.Millisecond
	defaultRecomputeInterval = time.Minute
	defaultRecentLimit       = 50
	defaultAlertQueueSize    = 64
	defaultAlertTimeout      = 10 * time.Second
	defaultDedupSeedWindow   = 24 * time.Hour
)

// GetLogger returns the module logger for the monitor
func GetLogger() logger.Logger {
	return logger.Global().Module("monitor")
}

// Source yields at most one detection event per call.
type Source interface {
	PollOnce(ctx context.Context) (*detection.Event, bool)
}

// AlertSink receives every newly recorded violation.
type AlertSink = events.Consumer

// DecisionObserver receives deduplication outcomes.
type DecisionObserver interface {
	ObserveDecision(outcome string)
}

// StateObserver receives tracker state changes.
type StateObserver interface {
	SetState(hourlyCount int, active, alert bool)
}

// Config holds scheduler timings.
type Config struct {
	PollInterval      time.Duration
	RecomputeInterval time.Duration
	Location          *time.Location
	RecentLimit       int           // violations kept in the snapshot
	TrackerWindow     time.Duration // history loaded into the tracker on start
	DedupSeedWindow   time.Duration // history loaded into the deduplicator on start
	AlertQueueSize    int
	AlertTimeout      time.Duration
}

// ConfigFromSettings builds a Config from application settings.
func ConfigFromSettings(s *conf.Settings) Config {
	return Config{
		PollInterval:      s.Source.PollInterval,
		RecomputeInterval: s.Tracker.RecomputeInterval,
		Location:          s.Location(),
		TrackerWindow:     s.Tracker.Window,
		DedupSeedWindow:   s.Detection.DedupTTL,
	}
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.RecomputeInterval <= 0 {
		c.RecomputeInterval = defaultRecomputeInterval
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = defaultRecentLimit
	}
	if c.TrackerWindow <= 0 {
		c.TrackerWindow = ratetracker.DefaultWindow
	}
	if c.DedupSeedWindow <= 0 {
		c.DedupSeedWindow = defaultDedupSeedWindow
	}
	if c.AlertQueueSize <= 0 {
		c.AlertQueueSize = defaultAlertQueueSize
	}
	if c.AlertTimeout <= 0 {
		c.AlertTimeout = defaultAlertTimeout
	}
}

// Deps are the collaborators of a Monitor. Source, Dedup, Tracker,
// Reviews and Store are required.
type Deps struct {
	Source    Source
	Dedup     *detection.Deduplicator
	Tracker   *ratetracker.Tracker
	Reviews   *review.Manager
	Store     datastore.Interface
	Sinks     []AlertSink
	Clock     ratetracker.Clock
	Decisions DecisionObserver
	States    StateObserver
	Logger    logger.Logger
}

// Snapshot is the observable monitor output.
type Snapshot struct {
	Violations  []datastore.ViolationRecord `json:"violations"`
	IsActive    bool                        `json:"isActive"`
	Alert       bool                        `json:"alert"`
	HourlyCount int                         `json:"hourlyCount"`
}

// Monitor owns the ingestion, recompute and alert workers.
type Monitor struct {
	cfg  Config
	deps Deps
	log  logger.Logger

	bus *events.Bus

	mu     sync.RWMutex
	recent []datastore.ViolationRecord // newest first

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// New creates a Monitor. It does not start any goroutine.
func New(cfg Config, deps Deps) *Monitor {
	cfg.applyDefaults()
	if deps.Clock == nil {
		deps.Clock = ratetracker.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = GetLogger()
	}
	m := &Monitor{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger,
		bus: events.New(events.Config{
			BufferSize:      cfg.AlertQueueSize,
			ConsumerTimeout: cfg.AlertTimeout,
		}, deps.Logger.Module("alerts")),
	}
	for _, sink := range deps.Sinks {
		if err := m.bus.RegisterConsumer(sink); err != nil {
			m.log.Warn("alert sink skipped", logger.String("sink", sink.Name()), logger.Error(err))
		}
	}
	if deps.States != nil {
		deps.Tracker.OnChange(func(s ratetracker.State) {
			deps.States.SetState(s.HourlyCount, s.IsActive, s.Alert)
		})
	}
	return m
}

// Start warms state from the store and launches the workers. It returns
// once the workers are running.
func (m *Monitor) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.cancel != nil {
		return errors.Newf("monitor already started").
			Component("monitor").
			Category(errors.CategoryState).
			Build()
	}
	if err := m.Warm(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := m.bus.Start(runCtx); err != nil {
		cancel()
		return err
	}
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return m.pollLoop(gctx) })
	g.Go(func() error { return m.recomputeLoop(gctx) })

	m.cancel = cancel
	m.group = g
	m.log.Info("monitor started",
		logger.Duration("poll_interval", m.cfg.PollInterval),
		logger.Duration("recompute_interval", m.cfg.RecomputeInterval),
		logger.Int("alert_sinks", len(m.deps.Sinks)))
	return nil
}

// Stop cancels the workers and waits for them, then stops the tracker
// timer. In-flight store writes finish before Stop returns.
func (m *Monitor) Stop() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.cancel == nil {
		return nil
	}
	m.cancel()
	err := m.group.Wait()
	if busErr := m.bus.Shutdown(m.cfg.AlertTimeout); busErr != nil && err == nil {
		err = busErr
	}
	m.deps.Tracker.Stop()
	m.cancel, m.group = nil, nil

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	m.log.Info("monitor stopped")
	return err
}

// Warm loads recent history so restarts keep deduplication and the hourly
// window intact. Denied source IDs are seeded too, so a redelivered event
// that was already dismissed is not recorded again.
func (m *Monitor) Warm(ctx context.Context) error {
	now := m.deps.Clock.Now()
	dedupStart := now.Add(-m.cfg.DedupSeedWindow)
	windowStart := now.Add(-m.cfg.TrackerWindow)

	recent, err := m.deps.Store.QueryViolations(ctx, datastore.ViolationFilter{
		Since: earliest(dedupStart, windowStart),
	})
	if err != nil {
		return err
	}
	inWindow := make(map[string]time.Time)
	ids := make([]string, 0, len(recent))
	for i := range recent {
		if !recent[i].Timestamp.Before(dedupStart) {
			ids = append(ids, recent[i].SourceID)
		}
		if !recent[i].Timestamp.Before(windowStart) {
			inWindow[recent[i].SourceID] = recent[i].Timestamp
		}
	}

	denied, err := m.deps.Store.QueryDeniedSourceIDs(ctx, dedupStart)
	if err != nil {
		return err
	}
	m.deps.Dedup.Seed(detection.KindViolation, append(ids, denied...)...)
	m.deps.Tracker.Seed(inWindow)

	since := dedupStart.In(m.cfg.Location).Format(detection.DateLayout)
	detections, err := m.deps.Store.QueryNonViolations(ctx, datastore.DateFilter{StartDate: since})
	if err != nil {
		return err
	}
	ids = ids[:0]
	for i := range detections {
		ids = append(ids, detections[i].SourceID)
	}
	m.deps.Dedup.Seed(detection.KindNonViolation, ids...)

	if err := m.Refresh(ctx); err != nil {
		return err
	}
	m.log.Info("monitor state restored",
		logger.Int("violations", len(recent)),
		logger.Int("in_window", len(inWindow)),
		logger.Int("denied", len(denied)),
		logger.Int("detections", len(detections)))
	return nil
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// Refresh reloads the recent violation list from the store.
func (m *Monitor) Refresh(ctx context.Context) error {
	recs, err := m.deps.Store.QueryViolations(ctx, datastore.ViolationFilter{Limit: m.cfg.RecentLimit})
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.recent = recs
	m.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the observable state.
func (m *Monitor) Snapshot() Snapshot {
	state := m.deps.Tracker.State()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Violations:  append([]datastore.ViolationRecord(nil), m.recent...),
		IsActive:    state.IsActive,
		Alert:       state.Alert,
		HourlyCount: state.HourlyCount,
	}
}

// ViolationRemoved drops a denied violation from the window and the
// snapshot. Its source ID stays known to the deduplicator so a re-delivery
// does not recreate it.
func (m *Monitor) ViolationRemoved(id, sourceID string) {
	m.deps.Tracker.Remove(sourceID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.recent {
		if m.recent[i].ID == id {
			m.recent = append(m.recent[:i:i], m.recent[i+1:]...)
			return
		}
	}
}

// ViolationUpdated replaces a violation in the snapshot after a review.
func (m *Monitor) ViolationUpdated(v *datastore.ViolationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.recent {
		if m.recent[i].ID == v.ID {
			m.recent[i] = *v
			return
		}
	}
}
