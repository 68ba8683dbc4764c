// Package persist stores one JSON state document per component.
package persist

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sweeney/door-monitor/internal/history"
)

// TrackedMessage is the serializable id pair of a tracked target.
type TrackedMessage struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

// State is the document persisted for a component.
type State struct {
	History         []history.Point           `json:"history"`
	TrackedMessages map[string]TrackedMessage `json:"tracked_messages"`
}

// Empty returns a state with no history and no tracked messages.
func Empty() State {
	return State{
		History:         []history.Point{},
		TrackedMessages: map[string]TrackedMessage{},
	}
}

func (s State) normalized() State {
	if s.History == nil {
		s.History = []history.Point{}
	}
	if s.TrackedMessages == nil {
		s.TrackedMessages = map[string]TrackedMessage{}
	}
	return s
}

// Store loads and saves component state. A component that was never saved
// loads as Empty without error; a corrupt document is an error.
type Store interface {
	Load(ctx context.Context, component string) (State, error)
	Save(ctx context.Context, component string, st State) error
	Close() error
}

// Backends accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ErrInvalidComponent is returned for empty or path-like component names.
var ErrInvalidComponent = errors.New("invalid component name")

// Open returns the store for backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dir), nil
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "state.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func checkComponent(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidComponent, name)
	}
	return nil
}
