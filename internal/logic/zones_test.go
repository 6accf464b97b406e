package logic

import (
	"errors"
	"math"
	"testing"
)

var (
	hrZones    = []int{0, 141, 150, 158, 167, 172, 178, 255}
	powerZones = []int{0, 155, 214, 247, 267, 298, 340, 3000}
)

func TestBuildZoneMapInterpolatedHeartRateExample(t *testing.T) {
	m, err := BuildZoneMap(hrZones, DefaultPalette, 100, ModeInterpolated)
	if err != nil {
		t.Fatalf("BuildZoneMap: %v", err)
	}

	d, err := m.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	want := Split(100, DefaultPalette[0], 0, DefaultPalette[1])
	if d != want {
		t.Errorf("Get(0): got %v, want %v", d, want)
	}

	_, err = m.Get(255)
	var miss *MissError
	if !errors.As(err, &miss) {
		t.Fatalf("Get(255): expected MissError, got %v", err)
	}
	if miss.Value != 255 || miss.Min != 0 || miss.Max != 255 {
		t.Errorf("unexpected miss: %+v", miss)
	}

	if m.Len() != 255 {
		t.Errorf("Len: got %d, want 255", m.Len())
	}
}

func TestZoneMapDomain(t *testing.T) {
	zones := []int{10, 20, 35}
	for _, mode := range []MappingMode{ModeDiscrete, ModeInterpolated} {
		m, err := BuildZoneMap(zones, DefaultPalette, 30, mode)
		if err != nil {
			t.Fatalf("%s: BuildZoneMap: %v", mode, err)
		}
		for v := 0; v < 50; v++ {
			_, err := m.Get(v)
			inDomain := v >= 10 && v < 35
			if inDomain && err != nil {
				t.Errorf("%s: Get(%d): unexpected error %v", mode, v, err)
			}
			if !inDomain {
				var miss *MissError
				if !errors.As(err, &miss) {
					t.Errorf("%s: Get(%d): expected MissError, got %v", mode, v, err)
				}
			}
		}
	}
}

func TestZoneMapNegativeValueMisses(t *testing.T) {
	m, err := BuildZoneMap(powerZones, DefaultPalette, 30, ModeDiscrete)
	if err != nil {
		t.Fatalf("BuildZoneMap: %v", err)
	}
	if _, err := m.Get(-1); err == nil {
		t.Error("expected miss for -1")
	}
	if _, err := m.Get(3000); err == nil {
		t.Error("expected miss for 3000 (last band is half-open)")
	}
	if _, err := m.Get(2999); err != nil {
		t.Errorf("Get(2999): %v", err)
	}
}

func TestInterpolatedCountsSumToTotal(t *testing.T) {
	for _, total := range []int{1, 7, 30, 100, 144} {
		m, err := BuildZoneMap(powerZones, DefaultPalette, total, ModeInterpolated)
		if err != nil {
			t.Fatalf("BuildZoneMap(%d): %v", total, err)
		}
		for v := m.Min(); v < m.Max(); v++ {
			d, _ := m.Get(v)
			if d.Kind != DescriptorSplit {
				t.Fatalf("Get(%d): expected split descriptor", v)
			}
			if d.Low.Count+d.High.Count != total {
				t.Fatalf("total=%d Get(%d): %d + %d != %d", total, v, d.Low.Count, d.High.Count, total)
			}
			if d.Low.Count < 0 || d.High.Count < 0 {
				t.Fatalf("total=%d Get(%d): negative count %v", total, v, d)
			}
		}
	}
}

func TestInterpolatedMonotonicWithinBand(t *testing.T) {
	m, err := BuildZoneMap(hrZones, DefaultPalette, 100, ModeInterpolated)
	if err != nil {
		t.Fatalf("BuildZoneMap: %v", err)
	}

	for i := 0; i < len(hrZones)-1; i++ {
		start, end := hrZones[i], hrZones[i+1]

		d, _ := m.Get(start)
		if d.High.Count != 0 {
			t.Errorf("band %d lower edge %d: countHigh=%d, want 0", i, start, d.High.Count)
		}
		if d.Low.Color != DefaultPalette[i] || d.High.Color != DefaultPalette[i+1] {
			t.Errorf("band %d: colors %v/%v, want %v/%v", i, d.Low.Color, d.High.Color, DefaultPalette[i], DefaultPalette[i+1])
		}

		prev := -1
		for v := start; v < end; v++ {
			d, _ := m.Get(v)
			if d.High.Count < prev {
				t.Errorf("band %d: countHigh decreased at %d (%d < %d)", i, v, d.High.Count, prev)
			}
			prev = d.High.Count
		}

		// Approaching the upper edge covers almost the whole strip.
		last, _ := m.Get(end - 1)
		step := 100.0 / float64(end-start)
		if float64(last.High.Count) < 100-step-1 {
			t.Errorf("band %d: countHigh at %d is %d, want close to 100", i, end-1, last.High.Count)
		}
	}
}

func TestInterpolatedStepValues(t *testing.T) {
	// Band [0, 4) over 8 LEDs: 2 LEDs per unit.
	m, err := BuildZoneMap([]int{0, 4}, Palette{{1, 1, 1}, {2, 2, 2}}, 8, ModeInterpolated)
	if err != nil {
		t.Fatalf("BuildZoneMap: %v", err)
	}
	wantHigh := []int{0, 2, 4, 6}
	for v, want := range wantHigh {
		d, _ := m.Get(v)
		if d.High.Count != want || d.Low.Count != 8-want {
			t.Errorf("Get(%d): got %v, want high=%d", v, d, want)
		}
	}
}

func TestDiscreteMapping(t *testing.T) {
	m, err := BuildZoneMap(powerZones, DefaultPalette[:7], 30, ModeDiscrete)
	if err != nil {
		t.Fatalf("BuildZoneMap: %v", err)
	}

	cases := []struct {
		value int
		band  int
	}{
		{0, 0}, {154, 0}, {155, 1}, {213, 1}, {214, 2}, {266, 3}, {267, 4}, {339, 5}, {340, 6}, {2999, 6},
	}
	for _, c := range cases {
		d, err := m.Get(c.value)
		if err != nil {
			t.Fatalf("Get(%d): %v", c.value, err)
		}
		if d != Solid(DefaultPalette[c.band]) {
			t.Errorf("Get(%d): got %v, want %v", c.value, d, DefaultPalette[c.band])
		}
		band, ok := m.Zone(c.value)
		if !ok || band != c.band {
			t.Errorf("Zone(%d): got %d,%v want %d", c.value, band, ok, c.band)
		}
	}
}

func TestBuildZoneMapErrors(t *testing.T) {
	cases := []struct {
		name    string
		zones   []int
		palette Palette
		leds    int
		mode    MappingMode
		want    error
	}{
		{"single boundary", []int{0}, DefaultPalette, 10, ModeDiscrete, ErrTooFewZones},
		{"equal boundaries", []int{0, 10, 10}, DefaultPalette, 10, ModeDiscrete, ErrZonesNotIncreasing},
		{"decreasing", []int{0, 20, 10}, DefaultPalette, 10, ModeInterpolated, ErrZonesNotIncreasing},
		{"discrete palette short", powerZones, DefaultPalette[:6], 10, ModeDiscrete, ErrPaletteTooShort},
		// Seven colors cover seven bands, but the final sweep needs an eighth.
		{"interpolated palette short", hrZones, DefaultPalette[:7], 100, ModeInterpolated, ErrPaletteTooShort},
		{"zero leds", hrZones, DefaultPalette, 0, ModeInterpolated, ErrInvalidLEDCount},
		{"unknown mode", hrZones, DefaultPalette, 10, MappingMode("rainbow"), ErrUnknownMode},
		{"huge domain", []int{0, MaxDomain + 1}, DefaultPalette, 10, ModeDiscrete, ErrDomainTooLarge},
		{"overflowing domain", []int{math.MinInt, 0, math.MaxInt}, DefaultPalette, 30, ModeDiscrete, ErrDomainTooLarge},
		{"negative huge domain", []int{math.MinInt, -1}, DefaultPalette, 30, ModeDiscrete, ErrDomainTooLarge},
	}
	for _, c := range cases {
		m, err := BuildZoneMap(c.zones, c.palette, c.leds, c.mode)
		if !errors.Is(err, c.want) {
			t.Errorf("%s: got error %v, want %v", c.name, err, c.want)
		}
		if m != nil {
			t.Errorf("%s: expected no map on error", c.name)
		}
	}
}

func TestZoneMapCopiesBoundaries(t *testing.T) {
	zones := []int{0, 10, 20}
	m, err := BuildZoneMap(zones, DefaultPalette, 10, ModeDiscrete)
	if err != nil {
		t.Fatalf("BuildZoneMap: %v", err)
	}
	zones[2] = 5
	if m.Max() != 20 {
		t.Errorf("Max changed after caller mutated input: %d", m.Max())
	}
	b := m.Boundaries()
	b[0] = 99
	if m.Min() != 0 {
		t.Errorf("Min changed after caller mutated Boundaries(): %d", m.Min())
	}
}
