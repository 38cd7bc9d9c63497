package events

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
	"github.com/campusfit/campusfit-go/internal/ratetracker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingConsumer struct {
	name   string
	fail   error
	panics bool

	mu  sync.Mutex
	got []string
}

func (c *recordingConsumer) Name() string { return c.name }

func (c *recordingConsumer) Send(_ context.Context, v *datastore.ViolationRecord, _ ratetracker.State) error {
	if c.panics {
		panic("broken consumer")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, v.SourceID)
	return c.fail
}

func (c *recordingConsumer) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

// blockingConsumer waits for its context, as a hung webhook would.
type blockingConsumer struct{}

func (blockingConsumer) Name() string { return "blocking" }

func (blockingConsumer) Send(ctx context.Context, _ *datastore.ViolationRecord, _ ratetracker.State) error {
	<-ctx.Done()
	return ctx.Err()
}

func alert(id string) Alert {
	return Alert{
		Violation: &datastore.ViolationRecord{SourceID: id, Category: "Cap"},
		State:     ratetracker.State{HourlyCount: 1, IsActive: true},
	}
}

func newTestBus(cfg Config) *Bus {
	return New(cfg, logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC))
}

func TestRegisterConsumer_RejectsDuplicateName(t *testing.T) {
	t.Parallel()
	bus := newTestBus(Config{})

	require.NoError(t, bus.RegisterConsumer(&recordingConsumer{name: "mqtt"}))
	err := bus.RegisterConsumer(&recordingConsumer{name: "mqtt"})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestTryPublish(t *testing.T) {
	t.Parallel()

	t.Run("no consumers", func(t *testing.T) {
		t.Parallel()
		bus := newTestBus(Config{})
		assert.False(t, bus.TryPublish(alert("a")))
		assert.Zero(t, bus.Stats().Dropped)
	})

	t.Run("drops when buffer is full", func(t *testing.T) {
		t.Parallel()
		bus := newTestBus(Config{BufferSize: 2})
		require.NoError(t, bus.RegisterConsumer(&recordingConsumer{name: "sink"}))

		assert.True(t, bus.TryPublish(alert("a")))
		assert.True(t, bus.TryPublish(alert("b")))
		assert.False(t, bus.TryPublish(alert("c")))

		assert.Equal(t, 2, bus.Len())
		assert.Equal(t, Stats{Received: 2, Dropped: 1}, bus.Stats())
	})
}

func TestBus_DeliversToEveryConsumer(t *testing.T) {
	t.Parallel()
	bus := newTestBus(Config{Workers: 2})
	ok := &recordingConsumer{name: "ok"}
	failing := &recordingConsumer{name: "failing", fail: errors.NewStd("webhook offline")}
	broken := &recordingConsumer{name: "broken", panics: true}
	for _, c := range []Consumer{broken, failing, ok} {
		require.NoError(t, bus.RegisterConsumer(c))
	}

	// Queued before Start, delivered once workers run.
	require.True(t, bus.TryPublish(alert("early")))
	require.NoError(t, bus.Start(t.Context()))
	require.Error(t, bus.Start(t.Context()))
	require.True(t, bus.TryPublish(alert("late")))

	require.Eventually(t, func() bool {
		return len(ok.received()) == 2 && len(failing.received()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, bus.Shutdown(time.Second))

	assert.ElementsMatch(t, []string{"early", "late"}, ok.received())
	stats := bus.Stats()
	assert.Equal(t, uint64(2), stats.Processed)
	assert.Equal(t, uint64(4), stats.ConsumerErrors)
}

func TestShutdown(t *testing.T) {
	t.Parallel()
	bus := newTestBus(Config{ConsumerTimeout: time.Minute})
	require.NoError(t, bus.RegisterConsumer(blockingConsumer{}))
	require.NoError(t, bus.Shutdown(time.Second), "shutdown before start")

	require.NoError(t, bus.Start(t.Context()))
	require.True(t, bus.TryPublish(alert("stuck")))
	require.Eventually(t, func() bool { return bus.Len() == 0 }, time.Second, 5*time.Millisecond)

	// In-flight delivery is cancelled rather than waiting for its timeout.
	require.NoError(t, bus.Shutdown(time.Second))
	assert.False(t, bus.TryPublish(alert("after")))
	assert.Equal(t, uint64(1), bus.Stats().ConsumerErrors)
}
