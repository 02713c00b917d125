package transport

// ConnectionState describes the health of the serial link. Transitions are
// driven solely by transport I/O outcomes and reported through the Reader's
// status callback.
type ConnectionState int

const (
	// Connected is reported once when the port first opens.
	Connected ConnectionState = iota

	// Disconnected is reported when an I/O failure is detected; the Reader
	// then begins reconnection attempts.
	Disconnected

	// Reconnected is reported on the first successful reopen after a
	// disconnect.
	Reconnected

	// Fatal is reported when all reconnection attempts are exhausted. The
	// Reader stops permanently; the application must create a new one.
	Fatal
)

func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Reconnected:
		return "reconnected"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}
