package logic

import "time"

// Detector compares consecutive samples and reports transitions.
//
// The previous value starts as closed (false), so a door that is already open
// when the process starts produces one transition on the first sample.
type Detector struct {
	prev          bool
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewDetector creates a detector. The startTime is used for uptime in heartbeats.
func NewDetector(startTime time.Time) *Detector {
	return &Detector{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes a new sample and returns an event if it differs from the
// previous one. The previous value is updated unconditionally.
func (d *Detector) Process(open bool, now time.Time) (Event, bool) {
	changed := open != d.prev
	d.prev = open
	if !changed {
		return Event{}, false
	}

	if open {
		d.eventCounts.Opened++
	} else {
		d.eventCounts.Closed++
	}
	return Event{Timestamp: now, Open: open}, true
}

// Current returns the last observed state.
func (d *Detector) Current() State {
	return StateOf(d.prev)
}

// EventCountsSnapshot returns a copy of the transition counters.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Current:   d.Current(),
		Counts:    d.eventCounts,
	}
}
