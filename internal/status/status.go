// Package status holds the latest door state received by the monitor.
// It is written by the receiver and read by the announcer and HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/door-monitor/internal/logic"
)

// Snapshot is a point-in-time view of the data handler.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Open       bool
	Changed    bool
	LastUpdate time.Time
	Updates    int
}

// State returns the logical door state.
func (s Snapshot) State() logic.State {
	return logic.StateOf(s.Open)
}

// Age returns the time since the last update, or -1 if none was received.
func (s Snapshot) Age(now time.Time) time.Duration {
	if s.LastUpdate.IsZero() {
		return -1
	}
	return now.Sub(s.LastUpdate)
}

// DataHandler guards the latest value, the change flag and the update time as
// one unit.
type DataHandler struct {
	mu   sync.Mutex
	snap Snapshot
	now  func() time.Time
}

// NewDataHandler creates a handler holding closed, unchanged, never updated.
func NewDataHandler() *DataHandler {
	return &DataHandler{now: time.Now}
}

// NewDataHandlerWithClock is NewDataHandler with an injectable clock.
func NewDataHandlerWithClock(now func() time.Time) *DataHandler {
	return &DataHandler{now: now}
}

// Set records a pushed value. The change flag reflects whether this write
// differs from the previous one.
func (d *DataHandler) Set(open bool) {
	d.mu.Lock()
	d.snap.Changed = open != d.snap.Open
	d.snap.Open = open
	d.snap.LastUpdate = d.now()
	d.snap.Updates++
	d.mu.Unlock()
}

// Consume returns the current state and whether it changed since the last
// consume, and clears the flag. The returned snapshot is the value the flag
// refers to; a write after Consume sets the flag again for the next caller.
func (d *DataHandler) Consume() (Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := d.snap
	d.snap.Changed = false
	return snap, snap.Changed
}

// Snapshot returns a copy of the current state.
func (d *DataHandler) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}
