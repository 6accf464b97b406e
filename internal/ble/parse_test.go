package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeartRateUint8(t *testing.T) {
	v, err := ParseHeartRate([]byte{0x00, 145})
	require.NoError(t, err)
	assert.Equal(t, 145, v)

	// Trailing RR intervals are ignored.
	v, err = ParseHeartRate([]byte{0x10, 72, 0x20, 0x03})
	require.NoError(t, err)
	assert.Equal(t, 72, v)
}

func TestParseHeartRateUint16(t *testing.T) {
	v, err := ParseHeartRate([]byte{0x01, 0x2C, 0x01})
	require.NoError(t, err)
	assert.Equal(t, 300, v)
}

func TestParseHeartRateShort(t *testing.T) {
	for _, buf := range [][]byte{nil, {0x00}, {0x01, 0x2C}} {
		_, err := ParseHeartRate(buf)
		assert.ErrorIs(t, err, ErrShortPacket, "% x", buf)
	}
}

func TestParseCyclingPower(t *testing.T) {
	v, err := ParseCyclingPower([]byte{0x00, 0x00, 0xFA, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 250, v)

	v, err = ParseCyclingPower([]byte{0x20, 0x00, 0xB8, 0x0B, 0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, 3000, v)
}

func TestParseCyclingPowerNegative(t *testing.T) {
	v, err := ParseCyclingPower([]byte{0x00, 0x00, 0xFB, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, -5, v)
}

func TestParseCyclingPowerShort(t *testing.T) {
	_, err := ParseCyclingPower([]byte{0x00, 0x00, 0xFA})
	assert.ErrorIs(t, err, ErrShortPacket)
}
