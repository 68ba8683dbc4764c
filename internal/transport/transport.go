// Package transport pushes door state changes from the sensor to the monitor.
package transport

import (
	"context"
	"errors"

	"github.com/sweeney/door-monitor/internal/logger"
)

// Wire payloads for the primary TCP protocol.
const (
	PayloadOpen   = "True"
	PayloadClosed = "False"
)

// Bodies for the secondary HTTP protocol.
const (
	BodyOpen   = "open"
	BodyClosed = "closed"
)

// Encode returns the TCP payload for a door state.
func Encode(open bool) []byte {
	if open {
		return []byte(PayloadOpen)
	}
	return []byte(PayloadClosed)
}

// Decode parses a TCP payload. Only the exact bytes "True" mean open;
// anything else, including empty or partial input, reads as closed.
func Decode(b []byte) bool {
	return string(b) == PayloadOpen
}

// Pusher delivers a single state update.
type Pusher interface {
	Push(ctx context.Context, open bool) error
}

// Dual pushes to a primary and an optional best-effort secondary.
// Secondary failures are logged here and never reported to the caller.
type Dual struct {
	Primary   Pusher
	Secondary Pusher
	Log       *logger.Logger
}

// Push sends to the primary, then the secondary if configured.
// It returns only the primary's error.
func (d *Dual) Push(ctx context.Context, open bool) error {
	err := d.Primary.Push(ctx, open)

	if d.Secondary != nil {
		if serr := d.Secondary.Push(ctx, open); serr != nil && d.Log != nil {
			d.Log.Warnw("secondary push failed", "err", serr)
		}
	}
	return err
}

// ErrShortWrite is returned when the receiver did not accept the full payload.
var ErrShortWrite = errors.New("short write")
