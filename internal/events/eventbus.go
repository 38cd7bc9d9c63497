// Package events provides an asynchronous alert bus that fans newly
// recorded violations out to consumers without blocking ingestion.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
	"github.com/campusfit/campusfit-go/internal/ratetracker"
)

// Default configuration values
const (
	DefaultBufferSize      = 64
	DefaultWorkers         = 1
	DefaultConsumerTimeout = 10 * time.Second
)

// GetLogger returns the module logger for the event bus
func GetLogger() logger.Logger {
	return logger.Global().Module("events")
}

// Alert is one newly recorded violation together with the tracker state at
// the moment it was recorded.
type Alert struct {
	Violation *datastore.ViolationRecord
	State     ratetracker.State
}

// Consumer processes alerts. Each consumer sees every accepted alert.
type Consumer interface {
	Name() string
	Send(ctx context.Context, v *datastore.ViolationRecord, state ratetracker.State) error
}

// Config holds event bus configuration
type Config struct {
	BufferSize      int
	Workers         int
	ConsumerTimeout time.Duration // per consumer, per alert
}

// Stats contains runtime counters.
type Stats struct {
	Received       uint64
	Processed      uint64
	Dropped        uint64
	ConsumerErrors uint64
}

// Bus queues alerts in a bounded buffer and hands them to consumers from a
// fixed set of workers.
type Bus struct {
	alerts chan Alert
	cfg    Config
	log    logger.Logger

	mu        sync.Mutex
	consumers []Consumer
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	closed atomic.Bool

	received       atomic.Uint64
	processed      atomic.Uint64
	dropped        atomic.Uint64
	consumerErrors atomic.Uint64
}

// New creates a bus. Alerts published before Start wait in the buffer.
func New(cfg Config, log logger.Logger) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ConsumerTimeout <= 0 {
		cfg.ConsumerTimeout = DefaultConsumerTimeout
	}
	if log == nil {
		log = GetLogger()
	}
	return &Bus{
		alerts: make(chan Alert, cfg.BufferSize),
		cfg:    cfg,
		log:    log,
	}
}

// RegisterConsumer adds a consumer. Names must be unique.
func (b *Bus) RegisterConsumer(c Consumer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.consumers {
		if existing.Name() == c.Name() {
			return errors.Newf("consumer %s already registered", c.Name()).
				Component("events").
				Category(errors.CategoryConflict).
				Build()
		}
	}
	b.consumers = append(b.consumers, c)
	b.log.Debug("registered alert consumer", logger.String("consumer", c.Name()))
	return nil
}

// HasConsumers reports whether any consumer is registered.
func (b *Bus) HasConsumers() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.consumers) > 0
}

// TryPublish queues a without blocking. It returns false when the alert was
// dropped: the buffer is full, no consumer is registered, or the bus is
// shut down.
func (b *Bus) TryPublish(a Alert) bool {
	if b.closed.Load() || !b.HasConsumers() {
		return false
	}
	select {
	case b.alerts <- a:
		b.received.Add(1)
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Len returns the number of queued alerts.
func (b *Bus) Len() int {
	return len(b.alerts)
}

// Start launches the workers. Workers run until Shutdown; cancelling ctx
// is not enough to stop them.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return errors.Newf("event bus already running").
			Component("events").
			Category(errors.CategoryState).
			Build()
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel
	b.closed.Store(false)
	for i := range b.cfg.Workers {
		b.wg.Go(func() { b.worker(runCtx, i) })
	}
	b.log.Info("event bus started",
		logger.Int("workers", b.cfg.Workers),
		logger.Int("buffer_size", b.cfg.BufferSize))
	return nil
}

func (b *Bus) worker(ctx context.Context, id int) {
	log := b.log.With(logger.Int("worker_id", id))
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-b.alerts:
			b.process(ctx, a, log)
		}
	}
}

// process sends a to every consumer. A failing or panicking consumer does
// not affect the others.
func (b *Bus) process(ctx context.Context, a Alert, log logger.Logger) {
	b.mu.Lock()
	consumers := append([]Consumer(nil), b.consumers...)
	b.mu.Unlock()

	for _, c := range consumers {
		err := b.send(ctx, c, a)
		if err == nil {
			b.processed.Add(1)
			continue
		}
		b.consumerErrors.Add(1)
		if ctx.Err() == nil {
			log.Warn("alert delivery failed",
				logger.String("consumer", c.Name()),
				logger.String("source_id", a.Violation.SourceID),
				logger.Error(err))
		}
	}
}

func (b *Bus) send(ctx context.Context, c Consumer, a Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("consumer %s panicked: %v", c.Name(), r).
				Component("events").
				Category(errors.CategoryGeneric).
				Build()
		}
	}()
	sendCtx, cancel := context.WithTimeout(ctx, b.cfg.ConsumerTimeout)
	defer cancel()
	return c.Send(sendCtx, a.Violation, a.State)
}

// Shutdown stops accepting alerts, cancels in-flight deliveries and waits
// up to timeout for the workers to exit. Alerts still queued are kept for
// a later Start.
func (b *Bus) Shutdown(timeout time.Duration) error {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	b.closed.Store(true)
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("event bus stopped", logger.Int("pending", b.Len()))
		return nil
	case <-time.After(timeout):
		return errors.Newf("event bus shutdown timeout exceeded").
			Component("events").
			Category(errors.CategoryTimeout).
			Context("timeout", timeout.String()).
			Build()
	}
}

// Stats returns the current counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Received:       b.received.Load(),
		Processed:      b.processed.Load(),
		Dropped:        b.dropped.Load(),
		ConsumerErrors: b.consumerErrors.Load(),
	}
}
