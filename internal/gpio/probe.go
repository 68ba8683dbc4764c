package gpio

import "time"

// Probe selects the sensor implementation for this process.
// With simulate set, or when the GPIO device cannot be opened, a RandomReader
// is returned together with the error that forced the fallback (if any).
func Probe(pin int, simulate bool) (Reader, Kind, error) {
	if simulate {
		return NewRandomReader(time.Now().UnixNano()), KindSimulated, nil
	}
	r, err := NewRealReader(pin)
	if err != nil {
		return NewRandomReader(time.Now().UnixNano()), KindSimulated, err
	}
	return r, KindReal, nil
}
