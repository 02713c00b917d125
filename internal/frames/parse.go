package frames

import (
	"encoding/binary"
	"fmt"
)

// Data-stream command bytes. Every capture payload opens with the command
// byte followed by a variant byte; only the data variant carries records.
const (
	OpMessage              = 0x00
	OpPointCloud           = 0x66
	OpObjectTracking       = 0x67
	OpCoreStatistics       = 0x68
	OpPointCloudStatistics = 0x70

	VariantData = 0x01

	// SubframeEnd marks the final subframe of a frame.
	SubframeEnd = 0x02
)

const (
	pointRecordSize  = 9
	objectRecordSize = 19
)

// rawPoint is one point record as it appears on the wire, in millimetres.
// The trailing reserved field is discarded.
type rawPoint struct {
	x, y, z   int16
	intensity uint8
}

// rawObject is one tracked-object record as it appears on the wire. Fields
// after the tracking ID are position, velocity and acceleration triples in
// milli-units.
type rawObject struct {
	trackingID int8
	fields     [9]int16
}

func parsePointSubframe(payload []byte) (subframe byte, points []rawPoint, err error) {
	if len(payload) < 4 {
		return 0, nil, fmt.Errorf("point subframe header truncated: %d bytes", len(payload))
	}
	subframe = payload[2]
	count := int(payload[3])
	body := payload[4:]
	if len(body) != count*pointRecordSize {
		return 0, nil, fmt.Errorf("point subframe body: have %d bytes, want %d for %d points",
			len(body), count*pointRecordSize, count)
	}
	points = make([]rawPoint, 0, count)
	for i := 0; i < count; i++ {
		rec := body[i*pointRecordSize:]
		points = append(points, rawPoint{
			x:         int16(binary.LittleEndian.Uint16(rec[0:2])),
			y:         int16(binary.LittleEndian.Uint16(rec[2:4])),
			z:         int16(binary.LittleEndian.Uint16(rec[4:6])),
			intensity: rec[6],
		})
	}
	return subframe, points, nil
}

func parseObjectSubframe(payload []byte) (subframe byte, objects []rawObject, err error) {
	if len(payload) < 4 {
		return 0, nil, fmt.Errorf("object subframe header truncated: %d bytes", len(payload))
	}
	subframe = payload[2]
	count := int(payload[3])
	body := payload[4:]
	if len(body) != count*objectRecordSize {
		return 0, nil, fmt.Errorf("object subframe body: have %d bytes, want %d for %d objects",
			len(body), count*objectRecordSize, count)
	}
	objects = make([]rawObject, 0, count)
	for i := 0; i < count; i++ {
		rec := body[i*objectRecordSize:]
		obj := rawObject{trackingID: int8(rec[0])}
		for f := 0; f < 9; f++ {
			obj.fields[f] = int16(binary.LittleEndian.Uint16(rec[1+2*f : 3+2*f]))
		}
		objects = append(objects, obj)
	}
	return subframe, objects, nil
}

func parseCoreStatistics(payload []byte) (CoreStatistics, error) {
	const want = 2 + 7*4 + 10*2
	if len(payload) != want {
		return CoreStatistics{}, fmt.Errorf("core statistics payload: have %d bytes, want %d",
			len(payload), want)
	}
	b := payload[2:]
	s := CoreStatistics{
		ActiveFrameCPU:       binary.LittleEndian.Uint32(b[0:4]),
		InterFrameCPU:        binary.LittleEndian.Uint32(b[4:8]),
		InterFrameProcTime:   binary.LittleEndian.Uint32(b[8:12]),
		TransmitOutputTime:   binary.LittleEndian.Uint32(b[12:16]),
		InterFrameProcMargin: binary.LittleEndian.Uint32(b[16:20]),
		InterChirpProcMargin: binary.LittleEndian.Uint32(b[20:24]),
		PacketTransmitTime:   binary.LittleEndian.Uint32(b[24:28]),
	}
	temps := b[28:]
	s.TemperatureSensor0 = int16(binary.LittleEndian.Uint16(temps[0:2]))
	s.TemperatureSensor1 = int16(binary.LittleEndian.Uint16(temps[2:4]))
	s.TemperaturePowerMgmt = int16(binary.LittleEndian.Uint16(temps[4:6]))
	s.TemperatureRx0 = int16(binary.LittleEndian.Uint16(temps[6:8]))
	s.TemperatureRx1 = int16(binary.LittleEndian.Uint16(temps[8:10]))
	s.TemperatureRx2 = int16(binary.LittleEndian.Uint16(temps[10:12]))
	s.TemperatureRx3 = int16(binary.LittleEndian.Uint16(temps[12:14]))
	s.TemperatureTx0 = int16(binary.LittleEndian.Uint16(temps[14:16]))
	s.TemperatureTx1 = int16(binary.LittleEndian.Uint16(temps[16:18]))
	s.TemperatureTx2 = int16(binary.LittleEndian.Uint16(temps[18:20]))
	return s, nil
}

func parsePointCloudStatistics(payload []byte) (PointCloudStatistics, error) {
	const want = 2 + 6*4 + 2
	if len(payload) != want {
		return PointCloudStatistics{}, fmt.Errorf("point cloud statistics payload: have %d bytes, want %d",
			len(payload), want)
	}
	b := payload[2:]
	return PointCloudStatistics{
		PointsAggregationTime: binary.LittleEndian.Uint32(b[0:4]),
		IntensitySortTime:     binary.LittleEndian.Uint32(b[4:8]),
		NearestNeighboursTime: binary.LittleEndian.Uint32(b[8:12]),
		UARTTransmissionTime:  binary.LittleEndian.Uint32(b[12:16]),
		FilterPointsRemoved:   binary.LittleEndian.Uint32(b[16:20]),
		NumTransmittedPoints:  binary.LittleEndian.Uint32(b[20:24]),
		InputPointsTruncated:  b[24] != 0,
		OutputPointsTruncated: b[25] != 0,
	}, nil
}
