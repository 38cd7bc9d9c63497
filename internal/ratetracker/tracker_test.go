package ratetracker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

func TestTracker_AlertClearsAfterDuration(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(epoch)
	tr := New(clock, time.Hour, 5*time.Second)

	tr.OnViolation("V1", clock.Now())
	assert.Equal(t, State{HourlyCount: 1, IsActive: true, Alert: true}, tr.State())

	clock.Advance(4 * time.Second)
	assert.True(t, tr.State().Alert)

	clock.Advance(time.Second)
	assert.Equal(t, State{HourlyCount: 1}, tr.State())
}

func TestTracker_RetriggerRestartsClearTimer(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(epoch)
	tr := New(clock, time.Hour, 5*time.Second)

	tr.OnViolation("V1", clock.Now())
	clock.Advance(3 * time.Second)
	tr.OnViolation("V2", clock.Now())

	clock.Advance(3 * time.Second)
	st := tr.State()
	assert.True(t, st.IsActive, "first timer must not clear flags raised by the retrigger")
	assert.True(t, st.Alert)
	assert.Equal(t, 1, clock.PendingTimers())

	clock.Advance(2 * time.Second)
	assert.False(t, tr.State().Alert)
	assert.Equal(t, 2, tr.HourlyCount())
}

func TestTracker_HourlyWindow(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(epoch)
	tr := New(clock, time.Hour, time.Second)

	tr.Seed(map[string]time.Time{
		"old":      epoch.Add(-2 * time.Hour),
		"boundary": epoch.Add(-time.Hour),
		"recent":   epoch.Add(-10 * time.Minute),
	})
	assert.Equal(t, 2, tr.HourlyCount(), "now-ts <= 1h is inside the window")

	clock.Advance(time.Minute)
	assert.Equal(t, 2, tr.HourlyCount(), "count only changes on recompute")
	assert.Equal(t, 1, tr.Recompute())

	clock.Advance(time.Hour)
	assert.Equal(t, 0, tr.Recompute())
}

func TestTracker_Remove(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(epoch)
	tr := New(clock, time.Hour, time.Second)

	tr.OnViolation("V1", epoch)
	tr.OnViolation("V2", epoch)
	tr.Remove("V1")
	tr.Remove("missing")

	assert.Equal(t, 1, tr.HourlyCount())
}

func TestTracker_OnChangeNotifications(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(epoch)
	tr := New(clock, time.Hour, time.Second)

	var states []State
	tr.OnChange(func(s State) { states = append(states, s) })

	tr.OnViolation("V1", epoch)
	clock.Advance(time.Second)
	tr.Recompute()

	require.Len(t, states, 2)
	assert.Equal(t, State{HourlyCount: 1, IsActive: true, Alert: true}, states[0])
	assert.Equal(t, State{HourlyCount: 1}, states[1])
}

func TestTracker_StopCancelsTimer(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(epoch)
	tr := New(clock, time.Hour, time.Second)

	tr.OnViolation("V1", epoch)
	tr.Stop()
	assert.Equal(t, 0, clock.PendingTimers())

	clock.Advance(time.Minute)
	assert.True(t, tr.State().Alert, "stopped tracker keeps its last flags")
}

func TestTracker_Defaults(t *testing.T) {
	t.Parallel()

	tr := New(nil, 0, 0)
	assert.Equal(t, DefaultWindow, tr.window)
	assert.Equal(t, DefaultAlertDuration, tr.alertDuration)
	assert.IsType(t, RealClock{}, tr.clock)
}

func TestTracker_RealClockClears(t *testing.T) {
	t.Parallel()

	tr := New(RealClock{}, time.Hour, 20*time.Millisecond)
	tr.OnViolation("V1", time.Now())

	assert.Eventually(t, func() bool { return !tr.State().Alert }, time.Second, 5*time.Millisecond)
}

func TestTracker_ConcurrentViolations(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(epoch)
	tr := New(clock, time.Hour, time.Second)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.OnViolation(fmt.Sprintf("V%d", i), epoch)
			_ = tr.State()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, tr.Recompute())
}
