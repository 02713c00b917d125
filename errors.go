package radariq

import (
	"errors"

	"github.com/banshee-data/radariq/internal/transport"
)

var (
	// ErrTimeout reports that no reply arrived within the command deadline.
	ErrTimeout = errors.New("radariq: timeout waiting for reply")

	// ErrProtocolViolation reports a reply whose opcode or status did not
	// match the request, or a setter whose echoed value differed.
	ErrProtocolViolation = errors.New("radariq: protocol violation")

	// ErrCaptureStopped is returned by NextFrame once the capture has
	// ended and all buffered frames have been consumed.
	ErrCaptureStopped = errors.New("radariq: capture stopped")

	// ErrCaptureActive is returned by Start while a capture is running.
	ErrCaptureActive = errors.New("radariq: capture already active")

	// ErrFatal reports that the transport exhausted its reconnection
	// attempts. The sensor must be reopened.
	ErrFatal = transport.ErrFatal

	// ErrClosed reports use of a closed sensor.
	ErrClosed = transport.ErrClosed
)
