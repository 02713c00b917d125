package frames

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/radariq/internal/monitoring"
	"github.com/banshee-data/radariq/internal/timeutil"
	"github.com/banshee-data/radariq/internal/units"
)

const defaultFrameQueueLength = 2

// Source is the view of the packet transport the assembler consumes.
type Source interface {
	Packets() <-chan []byte
	RxBufferLen() int
	QueueDepth() int
}

// Config describes an assembly run.
type Config struct {
	// Source supplies decoded packet payloads. Required.
	Source Source

	// Mirror negates the X axis of every point and object.
	Mirror bool

	// Output units. Empty values default to metres, m/s and m/s^2.
	DistanceUnit     string
	SpeedUnit        string
	AccelerationUnit string

	// CaptureMax stops the run after this many complete frames.
	// Zero means run until the context is cancelled.
	CaptureMax int

	// FrameQueueLength bounds the outgoing frame channel. Zero selects
	// a small default; frames beyond the bound are dropped, not queued.
	FrameQueueLength int

	Clock timeutil.Clock
}

// Assembler turns the subframe stream into complete frames. Create with
// New, drive with Run, consume via Frames.
type Assembler struct {
	src        Source
	frames     chan *Frame
	mirror     float64
	distUnit   string
	speedUnit  string
	accUnit    string
	captureMax int
	clock      timeutil.Clock

	pendingPoints  []Point
	pendingObjects []Object

	mu           sync.Mutex
	stats        Statistics
	captureCount int
}

// New validates cfg and prepares an assembler. Unit names are checked here
// so conversion during parsing cannot fail.
func New(cfg Config) (*Assembler, error) {
	if cfg.Source == nil {
		return nil, errNilSource
	}
	if cfg.DistanceUnit == "" {
		cfg.DistanceUnit = units.Metres
	}
	if cfg.SpeedUnit == "" {
		cfg.SpeedUnit = units.MetresPerSecond
	}
	if cfg.AccelerationUnit == "" {
		cfg.AccelerationUnit = units.MetresPerSecondSquared
	}
	if !units.ValidDistanceUnit(cfg.DistanceUnit) {
		return nil, errBadUnit("distance", cfg.DistanceUnit)
	}
	if !units.ValidSpeedUnit(cfg.SpeedUnit) {
		return nil, errBadUnit("speed", cfg.SpeedUnit)
	}
	if !units.ValidAccelerationUnit(cfg.AccelerationUnit) {
		return nil, errBadUnit("acceleration", cfg.AccelerationUnit)
	}
	if cfg.FrameQueueLength <= 0 {
		cfg.FrameQueueLength = defaultFrameQueueLength
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	mirror := 1.0
	if cfg.Mirror {
		mirror = -1.0
	}
	return &Assembler{
		src:        cfg.Source,
		frames:     make(chan *Frame, cfg.FrameQueueLength),
		mirror:     mirror,
		distUnit:   cfg.DistanceUnit,
		speedUnit:  cfg.SpeedUnit,
		accUnit:    cfg.AccelerationUnit,
		captureMax: cfg.CaptureMax,
		clock:      cfg.Clock,
	}, nil
}

// Frames is the stream of completed frames. Closed when Run returns.
func (a *Assembler) Frames() <-chan *Frame {
	return a.frames
}

// Run consumes packets until the context is cancelled, the source closes,
// or the configured capture count is reached. The frame channel is closed
// on return.
func (a *Assembler) Run(ctx context.Context) error {
	defer close(a.frames)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-a.src.Packets():
			if !ok {
				return nil
			}
			if a.handlePacket(payload) {
				return nil
			}
		}
	}
}

// Statistics returns a snapshot of the latest sensor records and gauges.
func (a *Assembler) Statistics() Statistics {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	if a.stats.Core != nil {
		core := *a.stats.Core
		s.Core = &core
	}
	if a.stats.PointCloud != nil {
		pc := *a.stats.PointCloud
		s.PointCloud = &pc
	}
	return s
}

// CaptureCount reports how many complete frames have been assembled.
func (a *Assembler) CaptureCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.captureCount
}

// handlePacket dispatches one decoded payload. Returns true once the
// capture limit is reached.
func (a *Assembler) handlePacket(payload []byte) bool {
	if len(payload) < 2 || payload[1] != VariantData {
		return false
	}
	switch payload[0] {
	case OpPointCloud:
		subframe, raw, err := parsePointSubframe(payload)
		if err != nil {
			a.discardSubframe(err)
			return false
		}
		for _, rp := range raw {
			a.pendingPoints = append(a.pendingPoints, a.convertPoint(rp))
		}
		if subframe == SubframeEnd {
			return a.finishFrame(KindPointCloud)
		}
	case OpObjectTracking:
		subframe, raw, err := parseObjectSubframe(payload)
		if err != nil {
			a.discardSubframe(err)
			return false
		}
		for _, ro := range raw {
			a.pendingObjects = append(a.pendingObjects, a.convertObject(ro))
		}
		if subframe == SubframeEnd {
			return a.finishFrame(KindObjectTracking)
		}
	case OpCoreStatistics:
		core, err := parseCoreStatistics(payload)
		if err != nil {
			a.discardSubframe(err)
			return false
		}
		a.mu.Lock()
		a.stats.Core = &core
		a.sampleGaugesLocked()
		a.mu.Unlock()
	case OpPointCloudStatistics:
		pc, err := parsePointCloudStatistics(payload)
		if err != nil {
			a.discardSubframe(err)
			return false
		}
		a.mu.Lock()
		a.stats.PointCloud = &pc
		a.sampleGaugesLocked()
		a.mu.Unlock()
	}
	// Unknown commands on the stream are ignored.
	return false
}

// finishFrame publishes the pending records as one frame. The frame counts
// toward the capture limit whether or not a consumer had room for it.
func (a *Assembler) finishFrame(kind Kind) bool {
	frame := &Frame{
		ID:         uuid.NewString(),
		Kind:       kind,
		Points:     a.pendingPoints,
		Objects:    a.pendingObjects,
		CapturedAt: a.clock.Now(),
	}
	a.pendingPoints = nil
	a.pendingObjects = nil

	select {
	case a.frames <- frame:
	default:
		a.mu.Lock()
		a.stats.FramesDropped++
		a.mu.Unlock()
		monitoring.Logf("frames: queue full, dropping %s frame %s", kind, frame.ID)
	}

	a.mu.Lock()
	a.captureCount++
	count := a.captureCount
	a.mu.Unlock()
	return a.captureMax > 0 && count >= a.captureMax
}

func (a *Assembler) discardSubframe(err error) {
	a.mu.Lock()
	a.stats.SubframesDiscarded++
	a.mu.Unlock()
	monitoring.Logf("frames: discarding subframe: %v", err)
}

func (a *Assembler) sampleGaugesLocked() {
	a.stats.RxBufferLength = a.src.RxBufferLen()
	a.stats.PacketQueueDepth = a.src.QueueDepth()
}

func (a *Assembler) convertPoint(rp rawPoint) Point {
	return Point{
		X:         a.mirror * a.dist(rp.x),
		Y:         a.dist(rp.y),
		Z:         a.dist(rp.z),
		Intensity: rp.intensity,
	}
}

func (a *Assembler) convertObject(ro rawObject) Object {
	return Object{
		TrackingID: ro.trackingID,
		XPos:       a.mirror * a.dist(ro.fields[0]),
		YPos:       a.dist(ro.fields[1]),
		ZPos:       a.dist(ro.fields[2]),
		XVel:       a.mirror * a.speed(ro.fields[3]),
		YVel:       a.speed(ro.fields[4]),
		ZVel:       a.speed(ro.fields[5]),
		XAcc:       a.mirror * a.accel(ro.fields[6]),
		YAcc:       a.accel(ro.fields[7]),
		ZAcc:       a.accel(ro.fields[8]),
	}
}

// Wire values are milli-units. Unit names are validated in New, so the
// conversion error is impossible here.
func (a *Assembler) dist(v int16) float64 {
	out, _ := units.DistanceFromSI(a.distUnit, float64(v)/1000)
	return out
}

func (a *Assembler) speed(v int16) float64 {
	out, _ := units.SpeedFromSI(a.speedUnit, float64(v)/1000)
	return out
}

func (a *Assembler) accel(v int16) float64 {
	out, _ := units.AccelerationFromSI(a.accUnit, float64(v)/1000)
	return out
}
