package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	State         string `json:"state"`
	Open          bool   `json:"open"`
	LastUpdate    string `json:"last_update,omitempty"`
	AgeSeconds    int64  `json:"age_seconds"`
	Updates       int    `json:"updates"`
	Running       bool   `json:"running"`
	Listening     bool   `json:"listening"`
	HistoryLen    int    `json:"history_len"`
	LinkedTargets int    `json:"linked_targets"`
	Timestamp     string `json:"timestamp"`
}

// HealthJSON is the JSON representation of Health.
type HealthJSON struct {
	Healthy   bool `json:"healthy"`
	Started   bool `json:"started"`
	Linked    bool `json:"linked"`
	Receiving bool `json:"receiving"`
}

// View combines the data handler snapshot with announcer state for display.
type View struct {
	Snapshot
	Now           time.Time
	Running       bool
	Listening     bool
	HistoryLen    int
	LinkedTargets int
}

// Inner builds the JSON body for a View.
func (v View) Inner() StatusInner {
	inner := StatusInner{
		State:         string(v.State()),
		Open:          v.Open,
		AgeSeconds:    -1,
		Updates:       v.Updates,
		Running:       v.Running,
		Listening:     v.Listening,
		HistoryLen:    v.HistoryLen,
		LinkedTargets: v.LinkedTargets,
		Timestamp:     v.Now.UTC().Format(time.RFC3339),
	}
	if !v.LastUpdate.IsZero() {
		inner.LastUpdate = v.LastUpdate.UTC().Format(time.RFC3339)
		inner.AgeSeconds = int64(v.Age(v.Now).Truncate(time.Second).Seconds())
	}
	return inner
}

// FormatJSON returns the indented status document.
func FormatJSON(v View) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: v.Inner()}, "", "  ")
	return data
}

// ToJSON converts Health for output.
func (h Health) ToJSON() HealthJSON {
	return HealthJSON{
		Healthy:   h.Healthy(),
		Started:   h.Started,
		Linked:    h.Linked,
		Receiving: h.Receiving,
	}
}
