// Package gpio provides the door sensor input with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The simulated and fake implementations allow running without hardware.
package gpio

// Reader reads the door sensor.
type Reader interface {
	// Read returns true when the door is open.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultPin is the BCM pin the reed switch is wired to.
const DefaultPin = 16

// Kind names the Reader variant selected at startup.
type Kind string

const (
	KindReal      Kind = "gpio"
	KindSimulated Kind = "simulated"
)
