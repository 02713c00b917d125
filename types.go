package radariq

import "fmt"

// CaptureMode selects what the sensor streams during capture.
type CaptureMode byte

const (
	ModePointCloud     CaptureMode = 0x00
	ModeObjectTracking CaptureMode = 0x01
)

func (m CaptureMode) String() string {
	switch m {
	case ModePointCloud:
		return "point_cloud"
	case ModeObjectTracking:
		return "object_tracking"
	default:
		return fmt.Sprintf("mode(%d)", byte(m))
	}
}

// ResetCode selects the kind of sensor reset.
type ResetCode byte

const (
	ResetReboot          ResetCode = 0x00
	ResetFactorySettings ResetCode = 0x01
)

// MovingFilter selects which returns the sensor reports.
type MovingFilter byte

const (
	MovingBoth        MovingFilter = 0x00
	MovingObjectsOnly MovingFilter = 0x01
)

// PointDensity selects how densely the sensor samples the scene.
type PointDensity byte

const (
	DensityNormal    PointDensity = 0x00
	DensityDense     PointDensity = 0x01
	DensityVeryDense PointDensity = 0x02
)

// ObjectType tunes the object tracker for a class of target.
type ObjectType byte

const (
	ObjectTypeDog         ObjectType = 0x00
	ObjectTypePerson      ObjectType = 0x01
	ObjectTypeCyclist     ObjectType = 0x02
	ObjectTypeSlowVehicle ObjectType = 0x03
	ObjectTypeFastVehicle ObjectType = 0x04
)

// Version is a sensor component version.
type Version struct {
	Major uint8
	Minor uint8
	Build uint16
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

// VersionInfo pairs the firmware and hardware versions.
type VersionInfo struct {
	Firmware Version
	Hardware Version
}

// AppVersion is one application slot's name and version.
type AppVersion struct {
	Name    string
	Version Version
}

// ApplicationVersions holds the four application slots reported by the
// sensor.
type ApplicationVersions struct {
	Controller   AppVersion
	Application1 AppVersion
	Application2 AppVersion
	Application3 AppVersion
}
