// Package packet implements the framed wire codec spoken by the RadarIQ-M1
// sensor. Packets are bounded by HEAD/FOOT marker bytes, protected by a
// CRC16 appended to the payload, and byte-stuffed so the markers can never
// appear literally inside the body.
//
// Wire format:
//
//	HEAD (0xB0)
//	stuffed( payload ++ CRC16_LE(payload) )
//	FOOT (0xB1)
//
// where stuffing replaces any literal HEAD, FOOT or ESC byte with
// ESC (0xB2) followed by the original byte XOR 0x04. A fully framed packet
// never exceeds 255 bytes; this is a protocol ceiling, not a buffer limit.
package packet

import "errors"

// Framing marker constants.
const (
	Head    = 0xB0
	Foot    = 0xB1
	Esc     = 0xB2
	XORMask = 0x04

	// MaxEncodedSize is the hard ceiling on a fully framed packet.
	MaxEncodedSize = 255
)

var (
	// ErrFraming reports a packet without the expected HEAD/FOOT markers or
	// with a body too short to carry a CRC.
	ErrFraming = errors.New("packet: malformed framing")

	// ErrCRCMismatch reports a packet whose CRC does not match its data.
	ErrCRCMismatch = errors.New("packet: crc mismatch")

	// ErrPacketTooLarge reports a payload whose encoded form would exceed
	// MaxEncodedSize.
	ErrPacketTooLarge = errors.New("packet: encoded packet exceeds 255 bytes")
)

func reserved(b byte) bool {
	return b == Head || b == Foot || b == Esc
}

// Encode frames payload into a complete wire packet: the CRC is appended,
// reserved bytes are escaped, and the result is wrapped in HEAD/FOOT.
func Encode(payload []byte) ([]byte, error) {
	crc := CRC16(payload)

	body := make([]byte, 0, len(payload)+2)
	body = append(body, payload...)
	body = append(body, byte(crc), byte(crc>>8))

	dst := make([]byte, 0, len(body)+2)
	dst = append(dst, Head)
	for _, b := range body {
		if reserved(b) {
			dst = append(dst, Esc, b^XORMask)
		} else {
			dst = append(dst, b)
		}
	}
	dst = append(dst, Foot)

	if len(dst) > MaxEncodedSize {
		return nil, ErrPacketTooLarge
	}
	return dst, nil
}

// Decode unescapes a framed packet and verifies its CRC, returning the
// payload with framing and CRC stripped. The input must begin with HEAD and
// end with FOOT.
func Decode(src []byte) ([]byte, error) {
	if len(src) < 2 || src[0] != Head || src[len(src)-1] != Foot {
		return nil, ErrFraming
	}

	dst := make([]byte, 0, len(src)-2)
	for i := 0; i < len(src)-1; i++ {
		switch src[i] {
		case Head:
			// An unescaped HEAD cannot occur inside a valid body. The scan
			// loop may hand us a slice whose leading bytes were resynced
			// onto a later HEAD, so skip rather than fail.
		case Esc:
			i++
			if i >= len(src)-1 {
				return nil, ErrFraming
			}
			dst = append(dst, src[i]^XORMask)
		default:
			dst = append(dst, src[i])
		}
	}

	if len(dst) < 2 {
		return nil, ErrFraming
	}
	data, tail := dst[:len(dst)-2], dst[len(dst)-2:]
	rx := uint16(tail[0]) | uint16(tail[1])<<8
	if CRC16(data) != rx {
		return nil, ErrCRCMismatch
	}
	return data, nil
}
