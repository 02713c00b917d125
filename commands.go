package radariq

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/radariq/internal/units"
)

// Command opcodes.
const (
	cmdVersion          = 0x01
	cmdSerialNumber     = 0x02
	cmdReset            = 0x03
	cmdFrameRate        = 0x04
	cmdMode             = 0x05
	cmdDistanceFilter   = 0x06
	cmdAngleFilter      = 0x07
	cmdMovingFilter     = 0x08
	cmdSave             = 0x09
	cmdPointDensity     = 0x10
	cmdSensitivity      = 0x11
	cmdHeightFilter     = 0x12
	cmdAppVersions      = 0x14
	cmdSceneCalibration = 0x15
	cmdObjectTypeMode   = 0x16
	cmdAutoStart        = 0x17
	cmdCaptureStart     = 0x64
	cmdCaptureStop      = 0x65
)

// readByte performs a single-byte read command and returns the value.
func (s *Sensor) readByte(opcode byte) (byte, error) {
	reply, err := s.request([]byte{opcode, subcodeRead})
	if err != nil {
		return 0, err
	}
	if len(reply) < 3 {
		return 0, fmt.Errorf("%w: short reply to %#02x", ErrProtocolViolation, opcode)
	}
	return reply[2], nil
}

// writeByte performs a single-byte write command and verifies the echoed
// value.
func (s *Sensor) writeByte(opcode, value byte) error {
	reply, err := s.request([]byte{opcode, subcodeWrite, value})
	if err != nil {
		return err
	}
	if len(reply) < 3 || reply[2] != value {
		return fmt.Errorf("%w: %#02x wrote %d, sensor echoed % x",
			ErrProtocolViolation, opcode, value, reply[2:])
	}
	return nil
}

// Version reports the sensor's firmware and hardware versions.
func (s *Sensor) Version() (VersionInfo, error) {
	reply, err := s.request([]byte{cmdVersion, subcodeRead})
	if err != nil {
		return VersionInfo{}, err
	}
	if len(reply) < 10 {
		return VersionInfo{}, fmt.Errorf("%w: short version reply", ErrProtocolViolation)
	}
	return VersionInfo{
		Firmware: Version{
			Major: reply[2],
			Minor: reply[3],
			Build: binary.LittleEndian.Uint16(reply[4:6]),
		},
		Hardware: Version{
			Major: reply[6],
			Minor: reply[7],
			Build: binary.LittleEndian.Uint16(reply[8:10]),
		},
	}, nil
}

// SerialNumber reports the sensor's serial number.
func (s *Sensor) SerialNumber() (string, error) {
	reply, err := s.request([]byte{cmdSerialNumber, subcodeRead})
	if err != nil {
		return "", err
	}
	if len(reply) < 10 {
		return "", fmt.Errorf("%w: short serial number reply", ErrProtocolViolation)
	}
	a := binary.LittleEndian.Uint32(reply[2:6])
	b := binary.LittleEndian.Uint32(reply[6:10])
	return fmt.Sprintf("%d-%d", a, b), nil
}

// Reset resets the sensor. ResetReboot restarts it; ResetFactorySettings
// also restores factory configuration.
func (s *Sensor) Reset(code ResetCode) error {
	if code > ResetFactorySettings {
		return fmt.Errorf("radariq: invalid reset code %d", code)
	}
	_, err := s.request([]byte{cmdReset, subcodeWrite, byte(code)})
	return err
}

// FrameRate reports the capture frame rate in frames per second.
func (s *Sensor) FrameRate() (int, error) {
	v, err := s.readByte(cmdFrameRate)
	return int(v), err
}

// SetFrameRate sets the capture frame rate, 0 to 20 frames per second.
func (s *Sensor) SetFrameRate(fps int) error {
	if fps < 0 || fps > 20 {
		return fmt.Errorf("radariq: frame rate must be 0 to 20 fps, got %d", fps)
	}
	return s.writeByte(cmdFrameRate, byte(fps))
}

// Mode reports the capture mode.
func (s *Sensor) Mode() (CaptureMode, error) {
	v, err := s.readByte(cmdMode)
	return CaptureMode(v), err
}

// SetMode sets the capture mode.
func (s *Sensor) SetMode(mode CaptureMode) error {
	if mode > ModeObjectTracking {
		return fmt.Errorf("radariq: invalid capture mode %d", mode)
	}
	return s.writeByte(cmdMode, byte(mode))
}

// DistanceFilter reports the distance filter bounds in the configured
// distance units.
func (s *Sensor) DistanceFilter() (min, max float64, err error) {
	reply, err := s.request([]byte{cmdDistanceFilter, subcodeRead})
	if err != nil {
		return 0, 0, err
	}
	if len(reply) < 6 {
		return 0, 0, fmt.Errorf("%w: short distance filter reply", ErrProtocolViolation)
	}
	minMM := binary.LittleEndian.Uint16(reply[2:4])
	maxMM := binary.LittleEndian.Uint16(reply[4:6])
	min, err = units.DistanceFromSI(s.cfg.distanceUnit, float64(minMM)/1000)
	if err != nil {
		return 0, 0, err
	}
	max, err = units.DistanceFromSI(s.cfg.distanceUnit, float64(maxMM)/1000)
	return min, max, err
}

// SetDistanceFilter sets the distance filter bounds, given in the
// configured distance units. The sensor accepts 0 to 10 metres.
func (s *Sensor) SetDistanceFilter(min, max float64) error {
	minMM, err := s.toMillimetres(min)
	if err != nil {
		return err
	}
	maxMM, err := s.toMillimetres(max)
	if err != nil {
		return err
	}
	if minMM < 0 || minMM > 10000 || maxMM < 0 || maxMM > 10000 {
		return fmt.Errorf("radariq: distance filter must be between 0 and 10000mm, got %d..%d", minMM, maxMM)
	}
	if maxMM < minMM {
		return fmt.Errorf("radariq: distance filter maximum must not be below the minimum")
	}

	req := []byte{cmdDistanceFilter, subcodeWrite}
	req = binary.LittleEndian.AppendUint16(req, uint16(minMM))
	req = binary.LittleEndian.AppendUint16(req, uint16(maxMM))
	reply, err := s.request(req)
	if err != nil {
		return err
	}
	if len(reply) < 6 || !bytes.Equal(reply[2:6], req[2:6]) {
		return fmt.Errorf("%w: distance filter echo mismatch", ErrProtocolViolation)
	}
	return nil
}

// AngleFilter reports the angle filter bounds in degrees. 0 is straight
// ahead, negative angles are to the sensor's left.
func (s *Sensor) AngleFilter() (min, max int, err error) {
	reply, err := s.request([]byte{cmdAngleFilter, subcodeRead})
	if err != nil {
		return 0, 0, err
	}
	if len(reply) < 4 {
		return 0, 0, fmt.Errorf("%w: short angle filter reply", ErrProtocolViolation)
	}
	return int(int8(reply[2])), int(int8(reply[3])), nil
}

// SetAngleFilter sets the angle filter bounds in degrees, -55 to +55.
func (s *Sensor) SetAngleFilter(min, max int) error {
	if min < -55 || min > 55 || max < -55 || max > 55 {
		return fmt.Errorf("radariq: angle filter must be between -55 and +55 degrees, got %d..%d", min, max)
	}
	if max < min {
		return fmt.Errorf("radariq: angle filter maximum must not be below the minimum")
	}
	_, err := s.request([]byte{cmdAngleFilter, subcodeWrite, byte(int8(min)), byte(int8(max))})
	return err
}

// MovingFilter reports whether the sensor filters out static returns.
func (s *Sensor) MovingFilter() (MovingFilter, error) {
	v, err := s.readByte(cmdMovingFilter)
	return MovingFilter(v), err
}

// SetMovingFilter selects between reporting all returns or moving objects
// only.
func (s *Sensor) SetMovingFilter(filter MovingFilter) error {
	if filter > MovingObjectsOnly {
		return fmt.Errorf("radariq: invalid moving filter %d", filter)
	}
	return s.writeByte(cmdMovingFilter, byte(filter))
}

// Save persists the current settings to the sensor's non-volatile storage.
func (s *Sensor) Save() error {
	_, err := s.request([]byte{cmdSave, subcodeWrite})
	return err
}

// PointDensity reports the point density setting.
func (s *Sensor) PointDensity() (PointDensity, error) {
	v, err := s.readByte(cmdPointDensity)
	return PointDensity(v), err
}

// SetPointDensity sets the point density.
func (s *Sensor) SetPointDensity(density PointDensity) error {
	if density > DensityVeryDense {
		return fmt.Errorf("radariq: invalid point density %d", density)
	}
	return s.writeByte(cmdPointDensity, byte(density))
}

// Sensitivity reports the detection sensitivity, 0 to 9.
func (s *Sensor) Sensitivity() (int, error) {
	v, err := s.readByte(cmdSensitivity)
	return int(v), err
}

// SetSensitivity sets the detection sensitivity, 0 (least) to 9 (most).
func (s *Sensor) SetSensitivity(sensitivity int) error {
	if sensitivity < 0 || sensitivity > 9 {
		return fmt.Errorf("radariq: sensitivity must be 0 to 9, got %d", sensitivity)
	}
	return s.writeByte(cmdSensitivity, byte(sensitivity))
}

// HeightFilter reports the height filter bounds in the configured distance
// units.
func (s *Sensor) HeightFilter() (min, max float64, err error) {
	reply, err := s.request([]byte{cmdHeightFilter, subcodeRead})
	if err != nil {
		return 0, 0, err
	}
	if len(reply) < 6 {
		return 0, 0, fmt.Errorf("%w: short height filter reply", ErrProtocolViolation)
	}
	minMM := int16(binary.LittleEndian.Uint16(reply[2:4]))
	maxMM := int16(binary.LittleEndian.Uint16(reply[4:6]))
	min, err = units.DistanceFromSI(s.cfg.distanceUnit, float64(minMM)/1000)
	if err != nil {
		return 0, 0, err
	}
	max, err = units.DistanceFromSI(s.cfg.distanceUnit, float64(maxMM)/1000)
	return min, max, err
}

// SetHeightFilter sets the height filter bounds, given in the configured
// distance units. Heights may be negative for returns below the sensor.
func (s *Sensor) SetHeightFilter(min, max float64) error {
	minMM, err := s.toMillimetres(min)
	if err != nil {
		return err
	}
	maxMM, err := s.toMillimetres(max)
	if err != nil {
		return err
	}
	if maxMM < minMM {
		return fmt.Errorf("radariq: height filter maximum must not be below the minimum")
	}

	req := []byte{cmdHeightFilter, subcodeWrite}
	req = binary.LittleEndian.AppendUint16(req, uint16(int16(minMM)))
	req = binary.LittleEndian.AppendUint16(req, uint16(int16(maxMM)))
	reply, err := s.request(req)
	if err != nil {
		return err
	}
	if len(reply) < 6 || !bytes.Equal(reply[2:6], req[2:6]) {
		return fmt.Errorf("%w: height filter echo mismatch", ErrProtocolViolation)
	}
	return nil
}

// ApplicationVersions reports the versions of the four radar application
// slots.
func (s *Sensor) ApplicationVersions() (ApplicationVersions, error) {
	var out ApplicationVersions
	slots := []*AppVersion{&out.Controller, &out.Application1, &out.Application2, &out.Application3}
	for i, slot := range slots {
		v, err := s.applicationVersion(byte(i + 1))
		if err != nil {
			return ApplicationVersions{}, err
		}
		*slot = v
	}
	return out, nil
}

func (s *Sensor) applicationVersion(slot byte) (AppVersion, error) {
	reply, err := s.request([]byte{cmdAppVersions, subcodeRead, slot})
	if err != nil {
		return AppVersion{}, err
	}
	if len(reply) < 27 || reply[2] != slot {
		return AppVersion{}, fmt.Errorf("%w: application version slot %d reply % x",
			ErrProtocolViolation, slot, reply)
	}
	return AppVersion{
		Name: string(bytes.TrimRight(reply[3:23], "\x00")),
		Version: Version{
			Major: reply[23],
			Minor: reply[24],
			Build: binary.LittleEndian.Uint16(reply[25:27]),
		},
	}, nil
}

// SceneCalibration calibrates out static near-field objects, such as an
// enclosure in front of the sensor. Mount the sensor with nothing within
// one metre before calling. The result is saved on the sensor.
func (s *Sensor) SceneCalibration() error {
	_, err := s.request([]byte{cmdSceneCalibration, subcodeWrite})
	return err
}

// ObjectTypeMode reports the target class the object tracker is tuned for.
func (s *Sensor) ObjectTypeMode() (ObjectType, error) {
	v, err := s.readByte(cmdObjectTypeMode)
	return ObjectType(v), err
}

// SetObjectTypeMode tunes the object tracker for a class of target.
func (s *Sensor) SetObjectTypeMode(mode ObjectType) error {
	if mode > ObjectTypeFastVehicle {
		return fmt.Errorf("radariq: invalid object type mode %d", mode)
	}
	return s.writeByte(cmdObjectTypeMode, byte(mode))
}

// AutoStart reports whether the sensor begins capturing on power-up.
func (s *Sensor) AutoStart() (bool, error) {
	v, err := s.readByte(cmdAutoStart)
	return v != 0, err
}

// SetAutoStart controls whether the sensor begins capturing on power-up.
func (s *Sensor) SetAutoStart(enabled bool) error {
	var v byte
	if enabled {
		v = 1
	}
	return s.writeByte(cmdAutoStart, v)
}

// toMillimetres converts a caller-units distance to whole millimetres.
func (s *Sensor) toMillimetres(v float64) (int, error) {
	si, err := units.DistanceToSI(s.cfg.distanceUnit, v)
	if err != nil {
		return 0, err
	}
	return int(si * 1000), nil
}
