package status

import "time"

// DefaultHealthThreshold is how recent the last push must be to count as receiving.
const DefaultHealthThreshold = 10 * time.Second

// Health is the answer to a status query for one subscriber.
type Health struct {
	Started   bool
	Linked    bool
	Receiving bool
}

// Healthy reports whether every check passed.
func (h Health) Healthy() bool {
	return h.Started && h.Linked && h.Receiving
}

// Receiving reports whether snap was updated less than threshold before now.
func Receiving(snap Snapshot, now time.Time, threshold time.Duration) bool {
	age := snap.Age(now)
	return age >= 0 && age < threshold
}
