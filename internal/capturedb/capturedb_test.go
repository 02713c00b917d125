package capturedb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/radariq/internal/frames"
)

func openTestDB(t *testing.T) *CaptureDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "capture.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenInitialisesSchema(t *testing.T) {
	db := openTestDB(t)

	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name LIKE 'capture_%'
	`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)

	sessionID, err := db.StartSession("/dev/ttyACM0", "point_cloud", "m", "m/s", "bench run")
	require.NoError(t, err)
	require.NotZero(t, sessionID)

	var endedAt *float64
	require.NoError(t, db.QueryRow(
		`SELECT ended_at FROM capture_sessions WHERE id = ?`, sessionID).Scan(&endedAt))
	assert.Nil(t, endedAt)

	require.NoError(t, db.EndSession(sessionID))
	require.NoError(t, db.QueryRow(
		`SELECT ended_at FROM capture_sessions WHERE id = ?`, sessionID).Scan(&endedAt))
	assert.NotNil(t, endedAt)
}

func TestRecordFrame(t *testing.T) {
	db := openTestDB(t)

	sessionID, err := db.StartSession("/dev/ttyACM0", "point_cloud", "m", "m/s", "")
	require.NoError(t, err)

	frame := &frames.Frame{
		ID:         uuid.NewString(),
		Kind:       frames.KindPointCloud,
		CapturedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Points: []frames.Point{
			{X: 1, Y: 2.5, Z: -0.5, Intensity: 200},
			{X: 0, Y: 0.125, Z: 0, Intensity: 10},
		},
	}
	frameID, err := db.RecordFrame(sessionID, frame)
	require.NoError(t, err)
	require.NotZero(t, frameID)

	var kind string
	var pointCount, objectCount int
	require.NoError(t, db.QueryRow(`
		SELECT kind, point_count, object_count FROM capture_frames WHERE id = ?
	`, frameID).Scan(&kind, &pointCount, &objectCount))
	assert.Equal(t, "point_cloud", kind)
	assert.Equal(t, 2, pointCount)
	assert.Equal(t, 0, objectCount)

	var x, y float64
	var intensity int
	require.NoError(t, db.QueryRow(`
		SELECT x, y, intensity FROM capture_points WHERE frame_id = ? ORDER BY id LIMIT 1
	`, frameID).Scan(&x, &y, &intensity))
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 2.5, y)
	assert.Equal(t, 200, intensity)

	count, err := db.SessionFrameCount(sessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordObjectFrame(t *testing.T) {
	db := openTestDB(t)

	sessionID, err := db.StartSession("/dev/ttyACM1", "object_tracking", "m", "km/h", "")
	require.NoError(t, err)

	frame := &frames.Frame{
		ID:         uuid.NewString(),
		Kind:       frames.KindObjectTracking,
		CapturedAt: time.Now(),
		Objects: []frames.Object{
			{TrackingID: 7, XPos: 1.5, YVel: -0.25, ZAcc: 0.125},
		},
	}
	frameID, err := db.RecordFrame(sessionID, frame)
	require.NoError(t, err)

	var trackingID int
	var xPos, yVel, zAcc float64
	require.NoError(t, db.QueryRow(`
		SELECT tracking_id, x_pos, y_vel, z_acc FROM capture_objects WHERE frame_id = ?
	`, frameID).Scan(&trackingID, &xPos, &yVel, &zAcc))
	assert.Equal(t, 7, trackingID)
	assert.Equal(t, 1.5, xPos)
	assert.Equal(t, -0.25, yVel)
	assert.Equal(t, 0.125, zAcc)
}

func TestRecordStatistics(t *testing.T) {
	db := openTestDB(t)

	sessionID, err := db.StartSession("/dev/ttyACM0", "point_cloud", "m", "m/s", "")
	require.NoError(t, err)

	// Before any sensor records arrive the columns are NULL.
	require.NoError(t, db.RecordStatistics(sessionID, frames.Statistics{FramesDropped: 2}))

	stats := frames.Statistics{
		Core: &frames.CoreStatistics{
			ActiveFrameCPU:     42,
			PacketTransmitTime: 1234,
			TemperatureSensor0: -5,
		},
		PointCloud: &frames.PointCloudStatistics{
			NumTransmittedPoints: 256,
		},
		SubframesDiscarded: 1,
	}
	require.NoError(t, db.RecordStatistics(sessionID, stats))

	var rows int
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*) FROM capture_statistics WHERE session_id = ?
	`, sessionID).Scan(&rows))
	assert.Equal(t, 2, rows)

	var activeFrameCPU *int64
	var framesDropped int
	require.NoError(t, db.QueryRow(`
		SELECT active_frame_cpu, frames_dropped FROM capture_statistics
		WHERE session_id = ? ORDER BY id LIMIT 1
	`, sessionID).Scan(&activeFrameCPU, &framesDropped))
	assert.Nil(t, activeFrameCPU)
	assert.Equal(t, 2, framesDropped)

	var tempSensor0, numTransmitted int
	require.NoError(t, db.QueryRow(`
		SELECT temperature_sensor_0, num_transmitted_points FROM capture_statistics
		WHERE session_id = ? ORDER BY id DESC LIMIT 1
	`, sessionID).Scan(&tempSensor0, &numTransmitted))
	assert.Equal(t, -5, tempSensor0)
	assert.Equal(t, 256, numTransmitted)
}
