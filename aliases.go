package radariq

import (
	"github.com/banshee-data/radariq/internal/frames"
	"github.com/banshee-data/radariq/internal/transport"
)

// Frame data types are defined in internal/frames and re-exported here so
// applications only import this package.
type (
	Frame                = frames.Frame
	FrameKind            = frames.Kind
	Point                = frames.Point
	Object               = frames.Object
	CoreStatistics       = frames.CoreStatistics
	PointCloudStatistics = frames.PointCloudStatistics
)

const (
	KindPointCloud     = frames.KindPointCloud
	KindObjectTracking = frames.KindObjectTracking
)

// ConnectionState and its values come from the transport layer.
type ConnectionState = transport.ConnectionState

const (
	Connected    = transport.Connected
	Disconnected = transport.Disconnected
	Reconnected  = transport.Reconnected
	Fatal        = transport.Fatal
)

// PortOptions re-exports the serial parameters accepted by
// WithPortOptions.
type PortOptions = transport.PortOptions
