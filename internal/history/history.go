// Package history keeps a bounded log of door state changes.
package history

import "sync"

// Point is one recorded state change.
type Point struct {
	Timestamp int64 `json:"timestamp"` // seconds since the epoch
	IsOpen    bool  `json:"is_open"`
}

// Store is a fixed-capacity FIFO of Points. When full, the oldest entry is
// dropped. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	points   []Point
	maxLen   int
	pageSize int
}

// New creates an empty store. maxLen and pageSize must be positive.
func New(maxLen, pageSize int) *Store {
	if maxLen < 1 {
		maxLen = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return &Store{maxLen: maxLen, pageSize: pageSize}
}

// Append adds p at the end, evicting from the front past capacity.
func (s *Store) Append(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = append(s.points, p)
	if over := len(s.points) - s.maxLen; over > 0 {
		s.points = append(s.points[:0:0], s.points[over:]...)
	}
}

// Restore replaces the contents with points, keeping the newest maxLen.
func (s *Store) Restore(points []Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if over := len(points) - s.maxLen; over > 0 {
		points = points[over:]
	}
	s.points = append([]Point(nil), points...)
}

// Len returns the number of stored points.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Latest returns the most recent point.
func (s *Store) Latest() (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[len(s.points)-1], true
}

// Points returns a copy in insertion order.
func (s *Store) Points() []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Point(nil), s.points...)
}

// PageSize returns the configured page size.
func (s *Store) PageSize() int {
	return s.pageSize
}

// TotalPages returns ceil(len / pageSize).
func (s *Store) TotalPages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalPages(len(s.points), s.pageSize)
}

// Page returns the index'th page, newest first, and the total page count.
// Page 0 holds the newest pageSize entries. Out-of-range pages are empty.
func (s *Store) Page(index int) ([]Point, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.points)
	total := totalPages(n, s.pageSize)
	if index < 0 || index >= total {
		return []Point{}, total
	}

	end := n - index*s.pageSize
	start := end - s.pageSize
	if start < 0 {
		start = 0
	}

	page := make([]Point, 0, end-start)
	for i := end - 1; i >= start; i-- {
		page = append(page, s.points[i])
	}
	return page, total
}

func totalPages(n, size int) int {
	return (n + size - 1) / size
}
