package transport

import (
	"time"

	"go.bug.st/serial"
)

// defaultReadTimeout bounds how long a port Read blocks without data so the
// scan loop can observe cancellation and idle intervals.
const defaultReadTimeout = 100 * time.Millisecond

// NewSerialOpener returns an Opener backed by a real serial port at the
// given path. Each call to the Opener opens a fresh port, so the Reader can
// use it for reconnection as well as the initial connect.
func NewSerialOpener(path string, opts PortOptions) Opener {
	return func() (Porter, error) {
		mode, err := opts.SerialMode()
		if err != nil {
			return nil, err
		}

		port, err := serial.Open(path, mode)
		if err != nil {
			return nil, err
		}

		if err := port.SetReadTimeout(defaultReadTimeout); err != nil {
			port.Close()
			return nil, err
		}

		return port, nil
	}
}
