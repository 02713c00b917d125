// Package transport owns the physical serial link to the sensor. A
// background Reader extracts framed packets from the raw byte stream,
// publishes decoded payloads onto a bounded channel, and runs the
// disconnect/reconnect state machine when the line fails.
package transport

import (
	"io"
	"time"
)

// Porter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPorter extends Porter with a read timeout. Ports that implement it
// return (0, nil) from Read when no data arrives within the timeout, which
// keeps the scan loop responsive to cancellation.
type TimeoutPorter interface {
	Porter
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens (or reopens) the physical port. The Reader calls it once at
// startup and again on every reconnection attempt.
type Opener func() (Porter, error)
