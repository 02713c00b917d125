// Package radariq drives a RadarIQ-M1 radar sensor over a serial port. It
// owns the framed wire protocol, reconnection, synchronous configuration
// commands, and assembly of the streaming subframes into complete
// point-cloud or object-tracking frames.
package radariq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/radariq/internal/discovery"
	"github.com/banshee-data/radariq/internal/frames"
	"github.com/banshee-data/radariq/internal/monitoring"
	"github.com/banshee-data/radariq/internal/timeutil"
	"github.com/banshee-data/radariq/internal/transport"
	"github.com/banshee-data/radariq/internal/units"
)

// Statistics extends the assembler's snapshot with transport counters.
type Statistics struct {
	frames.Statistics

	PacketsDroppedFull      uint64
	PacketsDroppedMalformed uint64
	ResyncedBytes           uint64
}

// Sensor is an open connection to one radar sensor. All methods are safe
// for concurrent use.
type Sensor struct {
	portName string
	cfg      config
	clock    timeutil.Clock
	reader   *transport.Reader

	runCancel context.CancelFunc
	runDone   chan struct{}

	// cmdMu serialises synchronous command exchanges.
	cmdMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	capturing bool
	assembler *frames.Assembler
	asmCancel context.CancelFunc
	asmDone   chan struct{}
	frameCh   <-chan *frames.Frame
	lastStats Statistics
	lastFrame *frames.Frame
}

// Open connects to the sensor on the named serial port. Any capture left
// running from a previous session is stopped and its output discarded
// before Open returns.
func Open(portName string, opts ...Option) (*Sensor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if !units.ValidDistanceUnit(cfg.distanceUnit) {
		return nil, fmt.Errorf("radariq: invalid distance unit %q", cfg.distanceUnit)
	}
	if !units.ValidSpeedUnit(cfg.speedUnit) {
		return nil, fmt.Errorf("radariq: invalid speed unit %q", cfg.speedUnit)
	}
	if !units.ValidAccelerationUnit(cfg.accelerationUnit) {
		return nil, fmt.Errorf("radariq: invalid acceleration unit %q", cfg.accelerationUnit)
	}

	portOpts, err := cfg.portOptions.Normalize()
	if err != nil {
		return nil, err
	}

	opener := cfg.opener
	if opener == nil {
		opener = transport.NewSerialOpener(portName, portOpts)
	}

	s := &Sensor{
		portName: portName,
		cfg:      cfg,
		clock:    cfg.clock,
	}

	reader, err := transport.NewReader(transport.Config{
		Opener:      opener,
		QueueLength: cfg.packetQueueLength,
		IdleSleep:   cfg.idleSleep,
		Status:      s.onStatus,
		Clock:       cfg.clock,
	})
	if err != nil {
		return nil, err
	}
	s.reader = reader

	ctx, cancel := context.WithCancel(context.Background())
	s.runCancel = cancel
	s.runDone = make(chan struct{})
	go func() {
		defer close(s.runDone)
		if err := reader.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("radariq: reader stopped: %v", err)
		}
	}()

	s.cleanStart()
	return s, nil
}

// OpenAny connects to the first sensor found by USB discovery.
func OpenAny(opts ...Option) (*Sensor, error) {
	port, err := discovery.FirstPort()
	if err != nil {
		return nil, err
	}
	return Open(port.Name, opts...)
}

// PortName reports the serial port this sensor was opened on.
func (s *Sensor) PortName() string {
	return s.portName
}

// cleanStart stops any capture a previous session left running and clears
// whatever the sensor was still transmitting.
func (s *Sensor) cleanStart() {
	if err := s.sendStopCommand(); err != nil {
		monitoring.Logf("radariq: clean start: %v", err)
	}
	s.clock.Sleep(stopSettleDelay)
	s.reader.Flush()
}

// onStatus runs on the reader goroutine. A fatal disconnect halts any
// running capture; every transition is forwarded to the application's
// callback.
func (s *Sensor) onStatus(state ConnectionState) {
	if state == transport.Fatal {
		s.mu.Lock()
		cancel := s.asmCancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
	if s.cfg.status != nil {
		s.cfg.status(state)
	}
}

// Start begins capturing frames. samples bounds the capture (0 =
// continuous, stop with Stop); the sensor stops transmitting on its own
// once the bound is reached.
func (s *Sensor) Start(samples int) error {
	if samples < 0 || samples > 255 {
		return fmt.Errorf("radariq: sample count must be 0 to 255, got %d", samples)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.capturing {
		return ErrCaptureActive
	}

	asm, err := frames.New(frames.Config{
		Source:           s.reader,
		Mirror:           s.cfg.mirror,
		DistanceUnit:     s.cfg.distanceUnit,
		SpeedUnit:        s.cfg.speedUnit,
		AccelerationUnit: s.cfg.accelerationUnit,
		CaptureMax:       samples,
		FrameQueueLength: s.cfg.frameQueueLength,
		Clock:            s.clock,
	})
	if err != nil {
		return err
	}

	// Discard anything buffered before capture begins.
	s.reader.Flush()
	if err := s.reader.Send([]byte{cmdCaptureStart, subcodeRead, byte(samples)}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.capturing = true
	s.assembler = asm
	s.asmCancel = cancel
	s.asmDone = done
	s.frameCh = asm.Frames()

	go func() {
		defer close(done)
		err := asm.Run(ctx)
		s.finishCapture(asm, err)
	}()
	return nil
}

// finishCapture records the capture's final statistics and, when the
// capture ended on its own sample limit, tells the sensor to stop
// transmitting. The frame channel stays readable so buffered frames can
// still be drained.
func (s *Sensor) finishCapture(asm *frames.Assembler, runErr error) {
	s.mu.Lock()
	if s.assembler != asm {
		s.mu.Unlock()
		return
	}
	s.capturing = false
	s.assembler = nil
	s.asmCancel = nil
	s.lastStats = s.mergeStats(asm.Statistics())
	closed := s.closed
	s.mu.Unlock()

	if runErr == nil && !closed {
		if err := s.sendStopCommand(); err != nil {
			monitoring.Logf("radariq: stop after capture limit: %v", err)
		}
	}
}

// Stop ends the capture, discarding any partially assembled frame, and
// tells the sensor to stop transmitting. Frames already assembled remain
// readable until drained.
func (s *Sensor) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	cancel, done := s.asmCancel, s.asmDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return s.sendStopCommand()
}

// sendStopCommand tells the sensor to stop transmitting. No reply is
// awaited; the sensor acknowledges by going quiet.
func (s *Sensor) sendStopCommand() error {
	return s.reader.Send([]byte{cmdCaptureStop, subcodeRead})
}

// NextFrame waits up to timeout for the next complete frame. It returns
// (nil, nil) when the timeout elapses, and ErrCaptureStopped once the
// capture has ended and all buffered frames are drained.
func (s *Sensor) NextFrame(timeout time.Duration) (*Frame, error) {
	s.mu.Lock()
	ch := s.frameCh
	s.mu.Unlock()
	if ch == nil {
		return nil, ErrCaptureStopped
	}

	select {
	case frame, ok := <-ch:
		if !ok {
			return nil, ErrCaptureStopped
		}
		s.mu.Lock()
		s.lastFrame = frame
		s.mu.Unlock()
		return frame, nil
	case <-s.clock.After(timeout):
		return nil, nil
	}
}

// Frames exposes the current capture's frame channel directly. The channel
// closes when the capture stops; before the first Start it is nil.
func (s *Sensor) Frames() <-chan *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCh
}

// LastFrame returns the most recent frame delivered through NextFrame, or
// nil if none has been delivered yet.
func (s *Sensor) LastFrame() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrame
}

// Statistics returns the latest statistics snapshot. After a capture ends
// the final snapshot remains queryable.
func (s *Sensor) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assembler != nil {
		return s.mergeStats(s.assembler.Statistics())
	}
	return s.lastStats
}

func (s *Sensor) mergeStats(fs frames.Statistics) Statistics {
	return Statistics{
		Statistics:              fs,
		PacketsDroppedFull:      s.reader.DroppedFull(),
		PacketsDroppedMalformed: s.reader.DroppedMalformed(),
		ResyncedBytes:           s.reader.ResyncedBytes(),
	}
}

// Close stops any capture, tells the sensor to stop transmitting, and
// releases the serial port. Safe to call more than once.
func (s *Sensor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, done := s.asmCancel, s.asmDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if err := s.sendStopCommand(); err != nil {
		monitoring.Logf("radariq: stop on close: %v", err)
	}
	s.clock.Sleep(stopSettleDelay)

	s.runCancel()
	err := s.reader.Close()
	<-s.runDone
	return err
}
