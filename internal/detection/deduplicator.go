package detection

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// Outcome is the result of classifying an incoming event.
type Outcome int

const (
	OutcomeDuplicate Outcome = iota
	OutcomeNewViolation
	OutcomeNewNonViolation
	OutcomeExempt
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNewViolation:
		return "new_violation"
	case OutcomeNewNonViolation:
		return "new_non_violation"
	case OutcomeExempt:
		return "exempt"
	default:
		return "duplicate"
	}
}

// Decision carries the classification of one event.
type Decision struct {
	Outcome  Outcome
	Event    Event
	Category Category // set for violations
	Quadrant Quadrant // set for non-violations
}

// IsNew reports whether the event should be persisted.
func (d Decision) IsNew() bool {
	return d.Outcome == OutcomeNewViolation || d.Outcome == OutcomeNewNonViolation
}

// Stats counts dropped events.
type Stats struct {
	Duplicates int64
	Exempt     int64
}

// Deduplicator remembers accepted source IDs for a bounded time so that
// re-delivered or interleaved events are recognized regardless of order.
// It is safe for concurrent use.
type Deduplicator struct {
	seen *cache.Cache

	mu         sync.RWMutex
	exemptions []Exemption

	duplicates atomic.Int64
	exempt     atomic.Int64
}

// NewDeduplicator creates a deduplicator remembering IDs for ttl. Expired
// entries are dropped lazily and by Prune; no janitor goroutine is started.
func NewDeduplicator(ttl time.Duration, exemptions []Exemption) *Deduplicator {
	return &Deduplicator{
		seen:       cache.New(ttl, 0),
		exemptions: exemptions,
	}
}

func seenKey(kind Kind, sourceID string) string {
	return string(kind) + ":" + sourceID
}

// Classify decides whether ev is new and classifies it. Accepting an event
// marks its ID as seen in the same atomic step.
func (d *Deduplicator) Classify(ev Event) Decision {
	dec := Decision{Event: ev}

	if ev.Kind == KindViolation {
		dec.Category = ClassifyCategory(ev.RawLabel)
		if d.isExempt(dec.Category, ev.Date) {
			d.exempt.Add(1)
			dec.Outcome = OutcomeExempt
			return dec
		}
	} else {
		dec.Quadrant = ClassifyQuadrant(ev.RawLabel)
	}

	if err := d.seen.Add(seenKey(ev.Kind, ev.SourceID), struct{}{}, cache.DefaultExpiration); err != nil {
		d.duplicates.Add(1)
		dec.Outcome = OutcomeDuplicate
		return dec
	}

	if ev.Kind == KindViolation {
		dec.Outcome = OutcomeNewViolation
	} else {
		dec.Outcome = OutcomeNewNonViolation
	}
	return dec
}

// Seed marks already-persisted source IDs as seen.
func (d *Deduplicator) Seed(kind Kind, sourceIDs ...string) {
	for _, id := range sourceIDs {
		d.seen.SetDefault(seenKey(kind, id), struct{}{})
	}
}

// Forget removes an ID so a later delivery is accepted again. Used when the
// accepted event could not be persisted.
func (d *Deduplicator) Forget(kind Kind, sourceID string) {
	d.seen.Delete(seenKey(kind, sourceID))
}

// Prune drops expired IDs.
func (d *Deduplicator) Prune() {
	d.seen.DeleteExpired()
}

// Len returns the number of remembered IDs, including not yet pruned ones.
func (d *Deduplicator) Len() int {
	return d.seen.ItemCount()
}

// SetExemptions replaces the exemption windows.
func (d *Deduplicator) SetExemptions(exemptions []Exemption) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exemptions = exemptions
}

// Stats returns counts of dropped events.
func (d *Deduplicator) Stats() Stats {
	return Stats{Duplicates: d.duplicates.Load(), Exempt: d.exempt.Load()}
}

func (d *Deduplicator) isExempt(category Category, date string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, x := range d.exemptions {
		if x.Covers(category, date) {
			return true
		}
	}
	return false
}
