package frames

// CoreStatistics is the processing and thermal record the sensor emits
// alongside data frames. Times are in microseconds, temperatures in
// degrees Celsius.
type CoreStatistics struct {
	ActiveFrameCPU       uint32
	InterFrameCPU        uint32
	InterFrameProcTime   uint32
	TransmitOutputTime   uint32
	InterFrameProcMargin uint32
	InterChirpProcMargin uint32
	PacketTransmitTime   uint32
	TemperatureSensor0   int16
	TemperatureSensor1   int16
	TemperaturePowerMgmt int16
	TemperatureRx0       int16
	TemperatureRx1       int16
	TemperatureRx2       int16
	TemperatureRx3       int16
	TemperatureTx0       int16
	TemperatureTx1       int16
	TemperatureTx2       int16
}

// PointCloudStatistics is the point-cloud pipeline record. Times are in
// microseconds.
type PointCloudStatistics struct {
	PointsAggregationTime uint32
	IntensitySortTime     uint32
	NearestNeighboursTime uint32
	UARTTransmissionTime  uint32
	FilterPointsRemoved   uint32
	NumTransmittedPoints  uint32
	InputPointsTruncated  bool
	OutputPointsTruncated bool
}

// Statistics is a snapshot of the most recent sensor records plus the
// host-side health gauges sampled when they arrived.
type Statistics struct {
	Core       *CoreStatistics
	PointCloud *PointCloudStatistics

	// Host-side gauges.
	RxBufferLength     int
	PacketQueueDepth   int
	FramesDropped      uint64
	SubframesDiscarded uint64
}
