package packet

// CRC16 computes the checksum the sensor firmware appends to every packet.
// This is a bit-reversed CCITT variant seeded with 0xFFFF, not the textbook
// table-driven algorithm; the byte mixing below must stay exactly as it is
// for wire compatibility. CRC16(nil) == 0xFFFF.
func CRC16(data []byte) uint16 {
	msb := uint16(0xFF)
	lsb := uint16(0xFF)
	for _, c := range data {
		x := uint16(c) ^ msb
		x ^= x >> 4
		msb = (lsb ^ (x >> 3) ^ (x << 4)) & 0xFF
		lsb = (x ^ (x << 5)) & 0xFF
	}
	return lsb<<8 | msb
}
