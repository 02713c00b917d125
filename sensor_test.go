package radariq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/radariq/internal/frames"
	"github.com/banshee-data/radariq/internal/monitoring"
	"github.com/banshee-data/radariq/internal/packet"
	"github.com/banshee-data/radariq/internal/timeutil"
	"github.com/banshee-data/radariq/internal/transport"
)

func init() {
	monitoring.SetLogger(nil)
}

func mustEncode(t *testing.T, payload []byte) []byte {
	t.Helper()
	encoded, err := packet.Encode(payload)
	require.NoError(t, err)
	return encoded
}

// openTestSensor opens a sensor over a scripted port. The mock clock makes
// the clean-start settle delay instantaneous.
func openTestSensor(t *testing.T, opts ...Option) (*Sensor, *transport.TestablePort, *timeutil.MockClock) {
	t.Helper()
	port := transport.NewTestablePort()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	opts = append(opts,
		withOpener(func() (transport.Porter, error) { return port, nil }),
		WithClock(clock),
	)
	sensor, err := Open("/dev/ttyTEST", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { sensor.Close() })
	return sensor, port, clock
}

// exchange runs a command call concurrently with a scripted reply, since
// replies only flow once the request has been observed.
func exchange(t *testing.T, port *transport.TestablePort, replies [][]byte, call func() error) {
	t.Helper()
	base := len(port.Written())
	done := make(chan error, 1)
	go func() { done <- call() }()

	// Wait for the request to hit the wire before replying; the command
	// session flushes stale input first, so an earlier reply would be lost.
	waitFor(t, func() bool { return len(port.Written()) > base })
	for _, reply := range replies {
		port.AddReadData(mustEncode(t, reply))
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("command did not complete")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}

// lastCommand decodes the most recent packet written to the port.
func lastCommand(t *testing.T, port *transport.TestablePort) []byte {
	t.Helper()
	written := port.Written()
	// Find the final HEAD marker: commands are written whole.
	start := 0
	for i, b := range written {
		if b == packet.Head {
			start = i
		}
	}
	payload, err := packet.Decode(written[start:])
	require.NoError(t, err)
	return payload
}

func TestOpenSendsCleanStartStop(t *testing.T) {
	sensor, port, clock := openTestSensor(t)
	defer sensor.Close()

	// The stop command goes out before any user command, and the settle
	// delay runs through the clock.
	assert.Equal(t, []byte{cmdCaptureStop, subcodeRead}, lastCommand(t, port))
	assert.Contains(t, clock.Sleeps(), stopSettleDelay)
}

func TestOpenInvalidUnits(t *testing.T) {
	_, err := Open("/dev/ttyTEST", WithUnits("parsec", "", ""))
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	var got VersionInfo
	reply := []byte{cmdVersion, subcodeReply, 1, 2, 0x34, 0x12, 3, 4, 0x78, 0x56}
	exchange(t, port, [][]byte{reply}, func() error {
		v, err := sensor.Version()
		got = v
		return err
	})

	assert.Equal(t, VersionInfo{
		Firmware: Version{Major: 1, Minor: 2, Build: 0x1234},
		Hardware: Version{Major: 3, Minor: 4, Build: 0x5678},
	}, got)
	assert.Equal(t, "1.2.4660", got.Firmware.String())
	assert.Equal(t, []byte{cmdVersion, subcodeRead}, lastCommand(t, port))
}

func TestSerialNumberCommand(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	var got string
	reply := []byte{cmdSerialNumber, subcodeReply,
		0x39, 0x30, 0x00, 0x00, // 12345
		0x31, 0xD4, 0x00, 0x00, // 54321
	}
	exchange(t, port, [][]byte{reply}, func() error {
		sn, err := sensor.SerialNumber()
		got = sn
		return err
	})
	assert.Equal(t, "12345-54321", got)
}

func TestSetFrameRateVerifiesEcho(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	exchange(t, port, [][]byte{{cmdFrameRate, subcodeReply, 15}}, func() error {
		return sensor.SetFrameRate(15)
	})
	assert.Equal(t, []byte{cmdFrameRate, subcodeWrite, 15}, lastCommand(t, port))

	assert.Error(t, sensor.SetFrameRate(21))
	assert.Error(t, sensor.SetFrameRate(-1))
}

func TestSetFrameRateEchoMismatch(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	base := len(port.Written())
	done := make(chan error, 1)
	go func() { done <- sensor.SetFrameRate(10) }()
	waitFor(t, func() bool { return len(port.Written()) > base })
	port.AddReadData(mustEncode(t, []byte{cmdFrameRate, subcodeReply, 12}))

	err := <-done
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestCommandSkipsDiagnostics(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, format)
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	diagnostic := append([]byte{frames.OpMessage, subcodeReply, 2, 7}, []byte("warmup\x00\x00")...)
	replies := [][]byte{diagnostic, {cmdMode, subcodeReply, byte(ModeObjectTracking)}}

	var got CaptureMode
	exchange(t, port, replies, func() error {
		m, err := sensor.Mode()
		got = m
		return err
	})
	assert.Equal(t, ModeObjectTracking, got)
	assert.NotEmpty(t, logged)
}

func TestCommandTimeout(t *testing.T) {
	sensor, _, clock := openTestSensor(t)

	done := make(chan error, 1)
	go func() {
		_, err := sensor.FrameRate()
		done <- err
	}()

	// No reply ever arrives; expire the deadline.
	waitFor(t, func() bool {
		clock.Advance(time.Second)
		select {
		case err := <-done:
			assert.ErrorIs(t, err, ErrTimeout)
			return true
		default:
			return false
		}
	})
}

func TestCommandProtocolViolation(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	base := len(port.Written())
	done := make(chan error, 1)
	go func() {
		_, err := sensor.FrameRate()
		done <- err
	}()
	waitFor(t, func() bool { return len(port.Written()) > base })
	// Reply carries the wrong opcode.
	port.AddReadData(mustEncode(t, []byte{cmdMode, subcodeReply, 0}))

	err := <-done
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestDistanceFilterUnitsRoundTrip(t *testing.T) {
	sensor, port, _ := openTestSensor(t, WithUnits("cm", "", ""))

	// Set 50cm..200cm; wire carries 500mm..2000mm.
	exchange(t, port, [][]byte{{cmdDistanceFilter, subcodeReply, 0xF4, 0x01, 0xD0, 0x07}}, func() error {
		return sensor.SetDistanceFilter(50, 200)
	})
	assert.Equal(t, []byte{cmdDistanceFilter, subcodeWrite, 0xF4, 0x01, 0xD0, 0x07}, lastCommand(t, port))

	var min, max float64
	exchange(t, port, [][]byte{{cmdDistanceFilter, subcodeReply, 0xF4, 0x01, 0xD0, 0x07}}, func() error {
		var err error
		min, max, err = sensor.DistanceFilter()
		return err
	})
	assert.Equal(t, 50.0, min)
	assert.Equal(t, 200.0, max)

	assert.Error(t, sensor.SetDistanceFilter(-1, 100))
	assert.Error(t, sensor.SetDistanceFilter(0, 1100))
	assert.Error(t, sensor.SetDistanceFilter(100, 50))
}

func TestHeightFilterAllowsNegativeBounds(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	// -1m .. 2m as signed millimetres.
	wire := []byte{0x18, 0xFC, 0xD0, 0x07}
	exchange(t, port, [][]byte{append([]byte{cmdHeightFilter, subcodeReply}, wire...)}, func() error {
		return sensor.SetHeightFilter(-1, 2)
	})
	assert.Equal(t, append([]byte{cmdHeightFilter, subcodeWrite}, wire...), lastCommand(t, port))

	var min, max float64
	exchange(t, port, [][]byte{append([]byte{cmdHeightFilter, subcodeReply}, wire...)}, func() error {
		var err error
		min, max, err = sensor.HeightFilter()
		return err
	})
	assert.Equal(t, -1.0, min)
	assert.Equal(t, 2.0, max)
}

func TestApplicationVersionsReadsAllSlots(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	names := []string{"controller", "app-one", "app-two", "app-three"}
	var got ApplicationVersions

	done := make(chan error, 1)
	go func() {
		v, err := sensor.ApplicationVersions()
		got = v
		done <- err
	}()

	for slot := byte(1); slot <= 4; slot++ {
		expected := []byte{cmdAppVersions, subcodeRead, slot}
		waitFor(t, func() bool {
			written := port.Written()
			if len(written) == 0 {
				return false
			}
			return string(lastCommand(t, port)) == string(expected)
		})
		name := make([]byte, 20)
		copy(name, names[slot-1])
		reply := append([]byte{cmdAppVersions, subcodeReply, slot}, name...)
		reply = append(reply, slot, 0, slot, 0)
		port.AddReadData(mustEncode(t, reply))
	}

	require.NoError(t, <-done)
	assert.Equal(t, "controller", got.Controller.Name)
	assert.Equal(t, AppVersion{Name: "app-three", Version: Version{Major: 4, Minor: 0, Build: 4}}, got.Application3)
}

func TestStartValidatesAndSendsCaptureCommand(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	assert.Error(t, sensor.Start(-1))
	assert.Error(t, sensor.Start(256))

	require.NoError(t, sensor.Start(0))
	assert.Equal(t, []byte{cmdCaptureStart, subcodeRead, 0}, lastCommand(t, port))

	assert.ErrorIs(t, sensor.Start(0), ErrCaptureActive)
	require.NoError(t, sensor.Stop())
	assert.Equal(t, []byte{cmdCaptureStop, subcodeRead}, lastCommand(t, port))
}

func pointEndSubframe(xMM int16) []byte {
	payload := []byte{frames.OpPointCloud, frames.VariantData, frames.SubframeEnd, 1}
	rec := make([]byte, 9)
	rec[0] = byte(xMM)
	rec[1] = byte(uint16(xMM) >> 8)
	rec[6] = 42
	return append(payload, rec...)
}

func TestCaptureDeliversFrames(t *testing.T) {
	sensor, port, _ := openTestSensor(t, WithFrameQueueLength(4))

	require.NoError(t, sensor.Start(0))
	port.AddReadData(mustEncode(t, pointEndSubframe(1500)))

	var frame *Frame
	waitFor(t, func() bool {
		select {
		case frame = <-sensor.Frames():
			return true
		default:
			return false
		}
	})
	require.NotNil(t, frame)
	assert.Equal(t, KindPointCloud, frame.Kind)
	require.Len(t, frame.Points, 1)
	assert.Equal(t, 1.5, frame.Points[0].X)
	assert.Equal(t, uint8(42), frame.Points[0].Intensity)

	require.NoError(t, sensor.Stop())
}

func TestCaptureLimitStopsAndSendsStop(t *testing.T) {
	sensor, port, _ := openTestSensor(t, WithFrameQueueLength(8))

	require.NoError(t, sensor.Start(2))
	for i := 0; i < 4; i++ {
		port.AddReadData(mustEncode(t, pointEndSubframe(int16(i*1000))))
	}

	// The capture winds itself down after two frames and issues a stop.
	waitFor(t, func() bool {
		return string(lastCommand(t, port)) == string([]byte{cmdCaptureStop, subcodeRead})
	})

	var delivered []*Frame
	waitFor(t, func() bool {
		for f := range sensor.Frames() {
			delivered = append(delivered, f)
		}
		return true
	})
	assert.Len(t, delivered, 2)

	// Drained and closed: NextFrame now reports the stop.
	_, err := sensor.NextFrame(time.Millisecond)
	assert.ErrorIs(t, err, ErrCaptureStopped)
}

func TestNextFrameTimeout(t *testing.T) {
	sensor, _, clock := openTestSensor(t)

	require.NoError(t, sensor.Start(0))

	type result struct {
		frame *Frame
		err   error
	}
	done := make(chan result, 1)
	go func() {
		f, err := sensor.NextFrame(time.Second)
		done <- result{f, err}
	}()

	waitFor(t, func() bool {
		clock.Advance(time.Second)
		select {
		case r := <-done:
			assert.NoError(t, r.err)
			assert.Nil(t, r.frame)
			return true
		default:
			return false
		}
	})
	require.NoError(t, sensor.Stop())
}

func TestNextFrameBeforeStart(t *testing.T) {
	sensor, _, _ := openTestSensor(t)
	_, err := sensor.NextFrame(time.Millisecond)
	assert.ErrorIs(t, err, ErrCaptureStopped)
}

func TestNextFrameTracksLastFrame(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	require.NoError(t, sensor.Start(1))
	port.AddReadData(mustEncode(t, pointEndSubframe(250)))

	var frame *Frame
	waitFor(t, func() bool {
		f, err := sensor.NextFrame(0)
		if err != nil || f == nil {
			return false
		}
		frame = f
		return true
	})
	assert.Same(t, frame, sensor.LastFrame())
}

func TestStatisticsSurviveCaptureStop(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	require.NoError(t, sensor.Start(0))

	stats := []byte{frames.OpCoreStatistics, frames.VariantData}
	for i := 0; i < 7; i++ {
		stats = append(stats, byte(i), 0, 0, 0)
	}
	for i := 0; i < 10; i++ {
		stats = append(stats, 25, 0)
	}
	port.AddReadData(mustEncode(t, stats))

	waitFor(t, func() bool { return sensor.Statistics().Core != nil })
	require.NoError(t, sensor.Stop())

	got := sensor.Statistics()
	require.NotNil(t, got.Core)
	assert.Equal(t, int16(25), got.Core.TemperatureSensor0)
}

func TestFatalDisconnectHaltsCapture(t *testing.T) {
	var states []ConnectionState
	stateCh := make(chan ConnectionState, 16)

	port := transport.NewTestablePort()
	clock := timeutil.NewMockClock(time.Now())
	opens := 0
	opener := func() (transport.Porter, error) {
		opens++
		if opens == 1 {
			return port, nil
		}
		return nil, assert.AnError
	}

	sensor, err := Open("/dev/ttyTEST",
		withOpener(opener),
		WithClock(clock),
		WithStatusCallback(func(s ConnectionState) { stateCh <- s }),
	)
	require.NoError(t, err)
	defer sensor.Close()

	require.NoError(t, sensor.Start(0))
	port.PushReadError(assert.AnError)

	waitFor(t, func() bool {
		for {
			select {
			case s := <-stateCh:
				states = append(states, s)
				if s == Fatal {
					return true
				}
			default:
				return false
			}
		}
	})
	assert.Equal(t, []ConnectionState{Connected, Disconnected, Fatal}, states)

	// The capture halts and its frame channel closes.
	waitFor(t, func() bool {
		select {
		case _, open := <-sensor.Frames():
			return !open
		default:
			return false
		}
	})
	_, err = sensor.NextFrame(time.Millisecond)
	assert.ErrorIs(t, err, ErrCaptureStopped)
}

func TestCloseIsIdempotent(t *testing.T) {
	sensor, port, _ := openTestSensor(t)

	require.NoError(t, sensor.Close())
	assert.True(t, port.Closed())
	require.NoError(t, sensor.Close())

	assert.ErrorIs(t, sensor.Start(0), ErrClosed)
	assert.ErrorIs(t, sensor.Stop(), ErrClosed)
}
