// Package ratetracker keeps the trailing-window violation count and the
// short-lived active/alert flags raised by each new violation. All state is
// derived and ephemeral.
package ratetracker

import (
	"sync"
	"time"
)

// Default timings.
const (
	DefaultWindow        = time.Hour
	DefaultAlertDuration = 5 * time.Second
)

// State is the observable tracker output.
type State struct {
	HourlyCount int  `json:"hourlyCount"`
	IsActive    bool `json:"isActive"`
	Alert       bool `json:"alert"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	clock         Clock
	window        time.Duration
	alertDuration time.Duration

	mu         sync.Mutex
	timestamps map[string]time.Time // keyed by source ID
	hourly     int
	active     bool
	alert      bool
	clearTimer Timer
	generation uint64
	onChange   func(State)
}

// New creates a tracker. Zero durations use the defaults; a nil clock uses
// the wall clock.
func New(clock Clock, window, alertDuration time.Duration) *Tracker {
	if clock == nil {
		clock = RealClock{}
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if alertDuration <= 0 {
		alertDuration = DefaultAlertDuration
	}
	return &Tracker{
		clock:         clock,
		window:        window,
		alertDuration: alertDuration,
		timestamps:    make(map[string]time.Time),
	}
}

// OnChange registers a callback invoked after every state change, outside
// the tracker lock.
func (t *Tracker) OnChange(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// OnViolation records a newly accepted violation and raises the active and
// alert flags for the alert duration. A retrigger restarts the clear timer.
func (t *Tracker) OnViolation(sourceID string, ts time.Time) {
	t.mu.Lock()
	t.timestamps[sourceID] = ts
	t.recomputeLocked()

	t.active = true
	t.alert = true
	if t.clearTimer != nil {
		t.clearTimer.Stop()
	}
	t.generation++
	gen := t.generation
	t.clearTimer = t.clock.AfterFunc(t.alertDuration, func() { t.clearFlags(gen) })
	state, notify := t.stateLocked(), t.onChange
	t.mu.Unlock()

	if notify != nil {
		notify(state)
	}
}

// Seed adds historical timestamps without raising flags, used to rebuild
// the window after a restart.
func (t *Tracker) Seed(timestamps map[string]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ts := range timestamps {
		t.timestamps[id] = ts
	}
	t.recomputeLocked()
}

// Remove drops a violation from the window, e.g. after it was denied.
func (t *Tracker) Remove(sourceID string) {
	t.mu.Lock()
	_, ok := t.timestamps[sourceID]
	delete(t.timestamps, sourceID)
	t.recomputeLocked()
	state, notify := t.stateLocked(), t.onChange
	t.mu.Unlock()

	if ok && notify != nil {
		notify(state)
	}
}

// Recompute prunes timestamps outside the window and returns the new count.
func (t *Tracker) Recompute() int {
	t.mu.Lock()
	before := t.hourly
	t.recomputeLocked()
	count := t.hourly
	state, notify := t.stateLocked(), t.onChange
	t.mu.Unlock()

	if count != before && notify != nil {
		notify(state)
	}
	return count
}

// HourlyCount returns the count as of the last recompute.
func (t *Tracker) HourlyCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hourly
}

// State returns a snapshot of the observable state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// Stop cancels a pending clear timer. Flags keep their current values.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clearTimer != nil {
		t.clearTimer.Stop()
		t.clearTimer = nil
	}
	t.generation++
}

func (t *Tracker) clearFlags(gen uint64) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.active = false
	t.alert = false
	t.clearTimer = nil
	state, notify := t.stateLocked(), t.onChange
	t.mu.Unlock()

	if notify != nil {
		notify(state)
	}
}

// recomputeLocked keeps timestamps with now-ts <= window.
func (t *Tracker) recomputeLocked() {
	cutoff := t.clock.Now().Add(-t.window)
	for id, ts := range t.timestamps {
		if ts.Before(cutoff) {
			delete(t.timestamps, id)
		}
	}
	t.hourly = len(t.timestamps)
}

func (t *Tracker) stateLocked() State {
	return State{HourlyCount: t.hourly, IsActive: t.active, Alert: t.alert}
}
