// Package logic contains pure business logic for door state tracking.
// This package has NO external dependencies (no GPIO, network, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logical state of the door.
type State string

const (
	StateOpen   State = "OPEN"
	StateClosed State = "CLOSED"
)

// StateOf maps a sensor value to a State.
func StateOf(open bool) State {
	if open {
		return StateOpen
	}
	return StateClosed
}

// Event represents a state transition to be pushed.
type Event struct {
	Timestamp time.Time
	Open      bool
}

// State returns the state the door moved into.
func (e Event) State() State {
	return StateOf(e.Open)
}

// EventCounts tracks the number of each transition since startup.
type EventCounts struct {
	Opened int
	Closed int
}

// HeartbeatData contains information for a heartbeat log line.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Current   State
	Counts    EventCounts
}
