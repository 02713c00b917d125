package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/radariq/internal/monitoring"
	"github.com/banshee-data/radariq/internal/packet"
	"github.com/banshee-data/radariq/internal/timeutil"
)

// Reconnection policy: close and reopen the port up to reconnectAttempts
// times, pausing reconnectDelay between attempts. Exhaustion is fatal.
const (
	reconnectAttempts = 9
	reconnectDelay    = 2 * time.Second

	// unboundedQueueDepth is the packet channel depth used when the
	// configured bound is 0 ("buffer everything"). Go channels cannot grow
	// without bound; this depth is far beyond what a live sensor feed can
	// accumulate before a consumer falls irrecoverably behind.
	unboundedQueueDepth = 4096

	readChunkSize = 4096
)

var (
	// ErrFatal reports that the reader exhausted its reconnection attempts
	// and shut down permanently.
	ErrFatal = errors.New("transport: connection lost permanently")

	// ErrClosed reports use of a closed reader.
	ErrClosed = errors.New("transport: reader closed")
)

// Config carries the Reader's construction parameters.
type Config struct {
	// Opener opens the physical port. Required.
	Opener Opener

	// QueueLength bounds the packet channel; new packets are dropped when
	// the consumer falls behind. 0 buffers everything.
	QueueLength int

	// IdleSleep, when non-zero, makes the scan loop sleep for this long
	// once no reception has occurred within the same interval, bounding
	// CPU usage on a quiet line. Zero spins.
	IdleSleep time.Duration

	// Status, when set, receives connection state transitions. It is
	// invoked from the reader goroutine and must not block.
	Status func(ConnectionState)

	// Clock paces reconnection and idle sleeps. Defaults to the real clock.
	Clock timeutil.Clock
}

// Reader owns the physical stream. Run scans incoming bytes for framed
// packets, decodes them, and publishes payloads onto the packet channel in
// arrival order. All reconnection handling lives in the Run goroutine.
type Reader struct {
	opener    Opener
	packets   chan []byte
	status    func(ConnectionState)
	clock     timeutil.Clock
	idleSleep time.Duration

	portMu sync.Mutex
	port   Porter

	rxMu  sync.Mutex
	rxBuf []byte

	lastComms atomic.Int64 // unix nanos of last successful I/O
	closed    atomic.Bool

	droppedFull      atomic.Uint64 // packets dropped because the channel was full
	droppedMalformed atomic.Uint64 // slices dropped on framing/CRC failure
	resyncedBytes    atomic.Uint64 // bytes discarded ahead of a resynced HEAD
}

// NewReader opens the port via cfg.Opener and reports Connected. Call Run
// to start reception.
func NewReader(cfg Config) (*Reader, error) {
	if cfg.Opener == nil {
		return nil, errors.New("transport: opener is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	depth := cfg.QueueLength
	if depth <= 0 {
		depth = unboundedQueueDepth
	}

	port, err := cfg.Opener()
	if err != nil {
		return nil, fmt.Errorf("transport: open port: %w", err)
	}

	r := &Reader{
		opener:    cfg.Opener,
		packets:   make(chan []byte, depth),
		status:    cfg.Status,
		clock:     cfg.Clock,
		idleSleep: cfg.IdleSleep,
		port:      port,
	}
	r.touchComms()
	r.notify(Connected)
	return r, nil
}

// Packets returns the channel of decoded payloads, in arrival order.
func (r *Reader) Packets() <-chan []byte {
	return r.packets
}

// Run is the scan loop. It returns ctx.Err() on cancellation, nil after
// Close, and ErrFatal once reconnection attempts are exhausted.
func (r *Reader) Run(ctx context.Context) error {
	buf := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		port := r.currentPort()
		if port == nil {
			return nil
		}

		n, err := port.Read(buf)
		if err != nil {
			if r.closed.Load() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if r.reconnect(ctx) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrFatal
		}

		if n == 0 {
			r.maybeIdleSleep()
			continue
		}

		r.rxMu.Lock()
		r.rxBuf = append(r.rxBuf, buf[:n]...)
		r.rxMu.Unlock()
		r.touchComms()
		r.scanAndEmit()
	}
}

// Send encodes payload and writes it to the port. A write failure closes
// the port so that the scan loop's next read enters the shared reconnect
// path; the reconnection state machine stays single-owner in Run.
func (r *Reader) Send(payload []byte) error {
	encoded, err := packet.Encode(payload)
	if err != nil {
		return err
	}

	r.portMu.Lock()
	port := r.port
	r.portMu.Unlock()
	if port == nil {
		return ErrClosed
	}

	if _, err := port.Write(encoded); err != nil {
		monitoring.Logf("transport: write failed: %v", err)
		port.Close()
		return fmt.Errorf("transport: write: %w", err)
	}
	r.touchComms()
	return nil
}

// Flush clears the receive buffer and discards any queued packets. The
// command session calls it before each request so stale replies cannot be
// mistaken for the new one.
func (r *Reader) Flush() {
	r.rxMu.Lock()
	r.rxBuf = r.rxBuf[:0]
	r.rxMu.Unlock()
	r.Drain()
}

// Drain empties the packet channel without blocking.
func (r *Reader) Drain() {
	for {
		select {
		case <-r.packets:
		default:
			return
		}
	}
}

// Close shuts the reader down. A blocked Read observes the port close and
// Run returns nil.
func (r *Reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.closeCurrentPort()
}

// RxBufferLen reports the current receive buffer length.
func (r *Reader) RxBufferLen() int {
	r.rxMu.Lock()
	defer r.rxMu.Unlock()
	return len(r.rxBuf)
}

// QueueDepth reports the number of decoded packets awaiting a consumer.
func (r *Reader) QueueDepth() int {
	return len(r.packets)
}

// DroppedFull reports packets discarded because the channel was full.
func (r *Reader) DroppedFull() uint64 { return r.droppedFull.Load() }

// DroppedMalformed reports frame slices discarded on framing/CRC failure.
func (r *Reader) DroppedMalformed() uint64 { return r.droppedMalformed.Load() }

// ResyncedBytes reports bytes discarded ahead of a resynchronised HEAD.
func (r *Reader) ResyncedBytes() uint64 { return r.resyncedBytes.Load() }

func (r *Reader) scanAndEmit() {
	for {
		raw, ok := r.takeFrame()
		if !ok {
			return
		}

		payload, err := packet.Decode(raw)
		if err != nil {
			// A malformed packet must never halt reception; a noisy line
			// is expected. Count it and move on.
			r.droppedMalformed.Add(1)
			continue
		}

		select {
		case r.packets <- payload:
		default:
			r.droppedFull.Add(1)
			monitoring.Logf("transport: packet queue full, dropping packet")
		}
	}
}

// takeFrame slices the first HEAD..FOOT bounded frame out of the receive
// buffer. A later HEAD seen before any FOOT restarts framing, which resyncs
// the scanner after a truncated packet; bytes ahead of the chosen HEAD are
// discarded without classification.
func (r *Reader) takeFrame() ([]byte, bool) {
	r.rxMu.Lock()
	defer r.rxMu.Unlock()

	start, end := 0, -1
	for i, b := range r.rxBuf {
		if b == packet.Head {
			start = i
		} else if b == packet.Foot {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, false
	}
	if start > 0 {
		r.resyncedBytes.Add(uint64(start))
	}

	raw := make([]byte, end+1-start)
	copy(raw, r.rxBuf[start:end+1])

	n := copy(r.rxBuf, r.rxBuf[end+1:])
	r.rxBuf = r.rxBuf[:n]
	return raw, true
}

func (r *Reader) reconnect(ctx context.Context) bool {
	r.closeCurrentPort()
	r.notify(Disconnected)

	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		if ctx.Err() != nil || r.closed.Load() {
			return false
		}
		monitoring.Logf("transport: serial connection lost, attempting to reconnect (attempt %d of %d)", attempt, reconnectAttempts)
		r.clock.Sleep(reconnectDelay)

		port, err := r.opener()
		if err != nil {
			continue
		}
		r.setPort(port)
		monitoring.Logf("transport: serial connection restored")
		r.notify(Reconnected)
		return true
	}

	monitoring.Logf("transport: serial connection lost and could not be restored")
	r.notify(Fatal)
	return false
}

func (r *Reader) maybeIdleSleep() {
	if r.idleSleep <= 0 {
		return
	}
	last := time.Unix(0, r.lastComms.Load())
	if r.clock.Since(last) >= r.idleSleep {
		r.clock.Sleep(r.idleSleep)
	}
}

func (r *Reader) touchComms() {
	r.lastComms.Store(r.clock.Now().UnixNano())
}

func (r *Reader) currentPort() Porter {
	r.portMu.Lock()
	defer r.portMu.Unlock()
	return r.port
}

func (r *Reader) setPort(p Porter) {
	r.portMu.Lock()
	r.port = p
	r.portMu.Unlock()
}

func (r *Reader) closeCurrentPort() error {
	r.portMu.Lock()
	defer r.portMu.Unlock()
	if r.port == nil {
		return nil
	}
	err := r.port.Close()
	r.port = nil
	return err
}

func (r *Reader) notify(state ConnectionState) {
	if r.status != nil {
		r.status(state)
	}
}
