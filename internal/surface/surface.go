// Package surface abstracts the place status messages are delivered to.
//
// A Channel is a destination a subscriber linked; a Message is the single
// status message kept up to date in that channel.
package surface

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a channel or message cannot be resolved.
var ErrNotFound = errors.New("surface: not found")

// Display is the rendered content of a status message.
type Display struct {
	Title string
	Open  bool
	At    time.Time
}

// StateText returns "open" or "closed".
func (d Display) StateText() string {
	if d.Open {
		return "open"
	}
	return "closed"
}

// Text is the one-line description shown to subscribers.
func (d Display) Text() string {
	return fmt.Sprintf("Door is now %s - %s", d.StateText(), d.At.UTC().Format(time.RFC3339))
}

// Surface resolves channels by id.
type Surface interface {
	Channel(ctx context.Context, id string) (Channel, error)
}

// Channel sends and fetches messages.
type Channel interface {
	ID() string
	Send(ctx context.Context, d Display) (Message, error)
	Fetch(ctx context.Context, messageID string) (Message, error)
}

// Message is a live handle to a sent status message.
type Message interface {
	ID() string
	ChannelID() string
	Edit(ctx context.Context, d Display) (Message, error)
}
