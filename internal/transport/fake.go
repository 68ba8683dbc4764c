package transport

import (
	"context"
	"sync"
)

// FakePusher records pushed values for test assertions.
type FakePusher struct {
	mu sync.Mutex

	// Values contains every state that was pushed successfully.
	Values []bool

	// Err, if set, is returned by Push and nothing is recorded.
	Err error
}

// Push records the value.
func (f *FakePusher) Push(_ context.Context, open bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Values = append(f.Values, open)
	return nil
}

// Pushed returns a copy of the recorded values.
func (f *FakePusher) Pushed() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.Values...)
}
