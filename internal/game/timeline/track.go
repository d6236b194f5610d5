// Package timeline merges pre-planned, time-windowed strategy values with the
// always-present manual override to produce the effective value for "now".
package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/cory-johannsen/raidplan/internal/game/strategy"
)

// Entry is one planner window. The window is [Start, Start+Duration).
type Entry struct {
	Start    time.Duration
	Duration time.Duration
	Value    strategy.Value
}

// End returns the exclusive end of the window.
func (e Entry) End() time.Duration {
	return e.Start + e.Duration
}

// Contains reports whether t falls inside the window.
func (e Entry) Contains(t time.Duration) bool {
	return t >= e.Start && t < e.End()
}

// Track is the ordered timeline of one Model.
//
// Invariant: entries are sorted by Start and never overlap.
type Track struct {
	model   string
	entries []Entry
}

// NewTrack returns an empty Track for the model with the given internal name.
func NewTrack(model string) *Track {
	return &Track{model: model}
}

// Model returns the internal name of the track's model.
func (t *Track) Model() string { return t.model }

// Insert adds e, keeping entries sorted.
//
// Postcondition: returns error if e has a non-positive duration or overlaps an existing entry.
func (t *Track) Insert(e Entry) error {
	if e.Duration <= 0 {
		return fmt.Errorf("timeline.Track %q: window at %s must have positive duration", t.model, e.Start)
	}
	if e.Start < 0 {
		return fmt.Errorf("timeline.Track %q: window start %s must not be negative", t.model, e.Start)
	}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Start >= e.Start })
	if i > 0 && t.entries[i-1].End() > e.Start {
		prev := t.entries[i-1]
		return fmt.Errorf("timeline.Track %q: window [%s,%s) overlaps [%s,%s)", t.model, e.Start, e.End(), prev.Start, prev.End())
	}
	if i < len(t.entries) && t.entries[i].Start < e.End() {
		next := t.entries[i]
		return fmt.Errorf("timeline.Track %q: window [%s,%s) overlaps [%s,%s)", t.model, e.Start, e.End(), next.Start, next.End())
	}
	t.entries = append(t.entries, Entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = e
	return nil
}

// Remove deletes the entry starting exactly at start.
func (t *Track) Remove(start time.Duration) bool {
	for i, e := range t.entries {
		if e.Start == start {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Entries returns a copy of the entries in start order.
func (t *Track) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Track) Len() int { return len(t.entries) }

// At returns the value of the window containing now.
func (t *Track) At(now time.Duration) (strategy.Value, bool) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].End() > now })
	if i < len(t.entries) && t.entries[i].Contains(now) {
		return t.entries[i].Value, true
	}
	return strategy.Value{}, false
}

// Next returns the first window starting after now.
func (t *Track) Next(now time.Duration) (Entry, bool) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Start > now })
	if i < len(t.entries) {
		return t.entries[i], true
	}
	return Entry{}, false
}
