package radariq

import (
	"time"

	"github.com/banshee-data/radariq/internal/timeutil"
	"github.com/banshee-data/radariq/internal/transport"
	"github.com/banshee-data/radariq/internal/units"
)

const (
	defaultCommandTimeout = 5 * time.Second
	defaultFrameQueue     = 2
	defaultIdleSleep      = 10 * time.Millisecond

	// stopSettleDelay gives the sensor time to wind down streaming after a
	// stop command before the line is reused or closed.
	stopSettleDelay = 500 * time.Millisecond
)

type config struct {
	portOptions       transport.PortOptions
	distanceUnit      string
	speedUnit         string
	accelerationUnit  string
	mirror            bool
	commandTimeout    time.Duration
	packetQueueLength int
	frameQueueLength  int
	idleSleep         time.Duration
	status            func(ConnectionState)
	clock             timeutil.Clock
	opener            transport.Opener
}

func defaultConfig() config {
	return config{
		distanceUnit:     units.Metres,
		speedUnit:        units.MetresPerSecond,
		accelerationUnit: units.MetresPerSecondSquared,
		commandTimeout:   defaultCommandTimeout,
		frameQueueLength: defaultFrameQueue,
		idleSleep:        defaultIdleSleep,
		clock:            timeutil.RealClock{},
	}
}

// Option customises an opened sensor.
type Option func(*config)

// WithPortOptions overrides the serial parameters. Zero fields take the
// sensor's defaults (115200 8N1).
func WithPortOptions(opts transport.PortOptions) Option {
	return func(c *config) { c.portOptions = opts }
}

// WithUnits selects the units applied to all distances, speeds and
// accelerations passed to and returned from the sensor. Empty strings
// keep the SI defaults.
func WithUnits(distance, speed, acceleration string) Option {
	return func(c *config) {
		if distance != "" {
			c.distanceUnit = distance
		}
		if speed != "" {
			c.speedUnit = speed
		}
		if acceleration != "" {
			c.accelerationUnit = acceleration
		}
	}
}

// WithMirror mirrors all data in the X dimension, for sensors mounted
// upside down.
func WithMirror(mirror bool) Option {
	return func(c *config) { c.mirror = mirror }
}

// WithCommandTimeout sets the reply deadline for synchronous commands.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *config) { c.commandTimeout = d }
}

// WithPacketQueueLength bounds the decoded-packet channel. 0 buffers
// everything.
func WithPacketQueueLength(n int) Option {
	return func(c *config) { c.packetQueueLength = n }
}

// WithFrameQueueLength bounds the assembled-frame channel. Frames beyond
// the bound are dropped, not queued.
func WithFrameQueueLength(n int) Option {
	return func(c *config) { c.frameQueueLength = n }
}

// WithIdleSleep sets how long the reader sleeps when the line is quiet.
func WithIdleSleep(d time.Duration) Option {
	return func(c *config) { c.idleSleep = d }
}

// WithStatusCallback registers a connection state observer. The callback
// runs on the reader goroutine and must not block.
func WithStatusCallback(fn func(ConnectionState)) Option {
	return func(c *config) { c.status = fn }
}

// WithClock substitutes the time source, for tests.
func WithClock(clock timeutil.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// withOpener substitutes the port factory, for tests.
func withOpener(opener transport.Opener) Option {
	return func(c *config) { c.opener = opener }
}
