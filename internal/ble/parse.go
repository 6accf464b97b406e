package ble

import (
	"errors"
	"fmt"
)

// ErrShortPacket is returned when a measurement is too short to decode.
var ErrShortPacket = errors.New("measurement packet too short")

// ParseHeartRate decodes a Heart Rate Measurement (0x2A37). Bit 0 of the
// flags byte selects a UINT16 value instead of UINT8.
func ParseHeartRate(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("heart rate: %w (%d bytes)", ErrShortPacket, len(buf))
	}
	if buf[0]&0x01 == 0 {
		return int(buf[1]), nil
	}
	if len(buf) < 3 {
		return 0, fmt.Errorf("heart rate uint16: %w (%d bytes)", ErrShortPacket, len(buf))
	}
	return int(uint16(buf[1]) | uint16(buf[2])<<8), nil
}

// ParseCyclingPower decodes the SINT16 instantaneous power that follows the
// two flag bytes of a Cycling Power Measurement (0x2A63).
func ParseCyclingPower(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("cycling power: %w (%d bytes)", ErrShortPacket, len(buf))
	}
	return int(int16(uint16(buf[2]) | uint16(buf[3])<<8)), nil
}
