// Package capturedb persists capture sessions, frames and sensor
// statistics to an embedded SQLite database.
package capturedb

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/radariq/internal/frames"
)

type CaptureDB struct {
	*sql.DB
}

// schema.sql defines tables for capture sessions, the frames recorded in
// each session, their points and objects, and periodic statistics samples.
//
//go:embed schema.sql
var schemaSQL string

func Open(path string) (*CaptureDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err = db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise capture schema: %v", err)
	}

	return &CaptureDB{db}, nil
}

// StartSession creates a new capture session record.
func (cdb *CaptureDB) StartSession(port, mode, distanceUnit, speedUnit, notes string) (int64, error) {
	query := `
		INSERT INTO capture_sessions (port, capture_mode, distance_unit, speed_unit, session_notes)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := cdb.Exec(query, port, mode, distanceUnit, speedUnit, notes)
	if err != nil {
		return 0, fmt.Errorf("failed to start capture session: %v", err)
	}

	return result.LastInsertId()
}

// EndSession stamps the session's end time.
func (cdb *CaptureDB) EndSession(sessionID int64) error {
	query := `
		UPDATE capture_sessions
		SET ended_at = UNIXEPOCH('subsec')
		WHERE id = ?
	`

	_, err := cdb.Exec(query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to end capture session: %v", err)
	}

	return nil
}

// RecordFrame stores a frame and all of its points or objects in one
// transaction.
func (cdb *CaptureDB) RecordFrame(sessionID int64, frame *frames.Frame) (int64, error) {
	tx, err := cdb.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin frame transaction: %v", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO capture_frames (session_id, frame_uuid, kind, captured_at, point_count, object_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, frame.ID, frame.Kind.String(),
		float64(frame.CapturedAt.UnixNano())/1e9, len(frame.Points), len(frame.Objects))
	if err != nil {
		return 0, fmt.Errorf("failed to insert frame: %v", err)
	}

	frameID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get frame ID: %v", err)
	}

	for _, p := range frame.Points {
		_, err := tx.Exec(`
			INSERT INTO capture_points (frame_id, x, y, z, intensity)
			VALUES (?, ?, ?, ?, ?)
		`, frameID, p.X, p.Y, p.Z, p.Intensity)
		if err != nil {
			return 0, fmt.Errorf("failed to insert point: %v", err)
		}
	}

	for _, o := range frame.Objects {
		_, err := tx.Exec(`
			INSERT INTO capture_objects (frame_id, tracking_id,
				x_pos, y_pos, z_pos, x_vel, y_vel, z_vel, x_acc, y_acc, z_acc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, frameID, o.TrackingID,
			o.XPos, o.YPos, o.ZPos, o.XVel, o.YVel, o.ZVel, o.XAcc, o.YAcc, o.ZAcc)
		if err != nil {
			return 0, fmt.Errorf("failed to insert object: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit frame: %v", err)
	}

	return frameID, nil
}

// RecordStatistics stores a statistics snapshot against a session. Sensor
// records that have not arrived yet are stored as NULL.
func (cdb *CaptureDB) RecordStatistics(sessionID int64, stats frames.Statistics) error {
	var (
		activeFrameCPU, interFrameCPU, packetTransmitTime  *uint32
		tempSensor0, tempSensor1                           *int16
		pointsAggregationTime, numTransmitted, filtRemoved *uint32
	)
	if stats.Core != nil {
		activeFrameCPU = &stats.Core.ActiveFrameCPU
		interFrameCPU = &stats.Core.InterFrameCPU
		packetTransmitTime = &stats.Core.PacketTransmitTime
		tempSensor0 = &stats.Core.TemperatureSensor0
		tempSensor1 = &stats.Core.TemperatureSensor1
	}
	if stats.PointCloud != nil {
		pointsAggregationTime = &stats.PointCloud.PointsAggregationTime
		numTransmitted = &stats.PointCloud.NumTransmittedPoints
		filtRemoved = &stats.PointCloud.FilterPointsRemoved
	}

	query := `
		INSERT INTO capture_statistics (session_id,
			active_frame_cpu, inter_frame_cpu, packet_transmit_time,
			temperature_sensor_0, temperature_sensor_1,
			points_aggregation_time, num_transmitted_points, filter_points_removed,
			frames_dropped, subframes_discarded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := cdb.Exec(query, sessionID,
		activeFrameCPU, interFrameCPU, packetTransmitTime,
		tempSensor0, tempSensor1,
		pointsAggregationTime, numTransmitted, filtRemoved,
		stats.FramesDropped, stats.SubframesDiscarded)
	if err != nil {
		return fmt.Errorf("failed to insert statistics: %v", err)
	}

	return nil
}

// SessionFrameCount reports how many frames a session has recorded.
func (cdb *CaptureDB) SessionFrameCount(sessionID int64) (int, error) {
	var count int
	err := cdb.QueryRow(`
		SELECT COUNT(*) FROM capture_frames WHERE session_id = ?
	`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count session frames: %v", err)
	}
	return count, nil
}
