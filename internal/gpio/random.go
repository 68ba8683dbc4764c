package gpio

import (
	"math/rand"
	"sync"
)

// RandomReader simulates a door that is open or closed at random on each read.
type RandomReader struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomReader creates a simulated reader seeded with seed.
func NewRandomReader(seed int64) *RandomReader {
	return &RandomReader{rng: rand.New(rand.NewSource(seed))}
}

// Read returns a random state.
func (r *RandomReader) Read() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(2) == 0, nil
}

// Close is a no-op.
func (r *RandomReader) Close() error {
	return nil
}
