package logic

import (
	"errors"
	"fmt"
	"math"
)

// MappingMode selects how a raw value is turned into a descriptor.
type MappingMode string

const (
	// ModeDiscrete maps every value in a band to the band's color.
	ModeDiscrete MappingMode = "discrete"
	// ModeInterpolated splits the strip between the band's low and high
	// colors in proportion to the value's position within the band.
	ModeInterpolated MappingMode = "interpolated"
)

// MaxDomain bounds the size of a precomputed zone map.
const MaxDomain = 1 << 16

// Configuration errors returned by BuildZoneMap.
var (
	ErrTooFewZones        = errors.New("at least two zone boundaries are required")
	ErrZonesNotIncreasing = errors.New("zone boundaries must be strictly increasing")
	ErrPaletteTooShort    = errors.New("palette has too few colors for the zones")
	ErrInvalidLEDCount    = errors.New("LED count must be positive")
	ErrDomainTooLarge     = errors.New("zone domain is too large")
	ErrUnknownMode        = errors.New("unknown mapping mode")
)

// MissError reports a lookup outside [Min, Max).
type MissError struct {
	Value int
	Min   int
	Max   int
}

func (e *MissError) Error() string {
	return fmt.Sprintf("value %d outside zone domain [%d, %d)", e.Value, e.Min, e.Max)
}

// ZoneMap is an immutable lookup table from raw value to descriptor.
type ZoneMap struct {
	zones     []int
	mode      MappingMode
	totalLeds int
	table     []Descriptor
	band      []uint16
}

// BuildZoneMap precomputes descriptors for every integer in
// [zones[0], zones[len-1]). Discrete mode needs len(zones)-1 colors,
// interpolated mode needs len(zones) (the last band sweeps into the final color).
func BuildZoneMap(zones []int, palette Palette, totalLeds int, mode MappingMode) (*ZoneMap, error) {
	if len(zones) < 2 {
		return nil, ErrTooFewZones
	}
	for i := 1; i < len(zones); i++ {
		if zones[i] <= zones[i-1] {
			return nil, fmt.Errorf("%w: zones[%d]=%d, zones[%d]=%d", ErrZonesNotIncreasing, i-1, zones[i-1], i, zones[i])
		}
	}

	need := len(zones) - 1
	switch mode {
	case ModeDiscrete:
	case ModeInterpolated:
		need = len(zones)
		if totalLeds <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidLEDCount, totalLeds)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if len(palette) < need {
		return nil, fmt.Errorf("%w: %s mode with %d zones needs %d colors, got %d", ErrPaletteTooShort, mode, len(zones), need, len(palette))
	}

	lo, hi := zones[0], zones[len(zones)-1]
	// Compared as uint64: hi-lo overflows int for extreme boundaries.
	if width := uint64(hi) - uint64(lo); width > MaxDomain {
		return nil, fmt.Errorf("%w: %d..%d (max %d values)", ErrDomainTooLarge, lo, hi, MaxDomain)
	}

	m := &ZoneMap{
		zones:     append([]int(nil), zones...),
		mode:      mode,
		totalLeds: totalLeds,
		table:     make([]Descriptor, hi-lo),
		band:      make([]uint16, hi-lo),
	}

	for i := 0; i < len(zones)-1; i++ {
		start, end := zones[i], zones[i+1]
		ledStep := float64(totalLeds) / float64(end-start)
		for x := start; x < end; x++ {
			var d Descriptor
			if mode == ModeDiscrete {
				d = Solid(palette[i])
			} else {
				countHigh := int(math.Floor(float64(x-start) * ledStep))
				d = Split(totalLeds-countHigh, palette[i], countHigh, palette[i+1])
			}
			m.table[x-lo] = d
			m.band[x-lo] = uint16(i)
		}
	}

	return m, nil
}

// Get returns the descriptor for v, or a *MissError if v is outside the domain.
func (m *ZoneMap) Get(v int) (Descriptor, error) {
	if v < m.Min() || v >= m.Max() {
		return Descriptor{}, &MissError{Value: v, Min: m.Min(), Max: m.Max()}
	}
	return m.table[v-m.Min()], nil
}

// Zone returns the band index containing v.
func (m *ZoneMap) Zone(v int) (int, bool) {
	if v < m.Min() || v >= m.Max() {
		return 0, false
	}
	return int(m.band[v-m.Min()]), true
}

// Min is the smallest value in the domain.
func (m *ZoneMap) Min() int { return m.zones[0] }

// Max is the exclusive upper bound of the domain.
func (m *ZoneMap) Max() int { return m.zones[len(m.zones)-1] }

// Len is the number of mapped values.
func (m *ZoneMap) Len() int { return len(m.table) }

// Bands is the number of zones.
func (m *ZoneMap) Bands() int { return len(m.zones) - 1 }

// Mode returns the mapping mode the table was built with.
func (m *ZoneMap) Mode() MappingMode { return m.mode }

// TotalLeds returns the strip length used for splits.
func (m *ZoneMap) TotalLeds() int { return m.totalLeds }

// Boundaries returns a copy of the zone boundaries.
func (m *ZoneMap) Boundaries() []int {
	return append([]int(nil), m.zones...)
}
