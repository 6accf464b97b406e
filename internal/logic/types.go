// Package logic contains the pure decision logic for the zone light.
// This package has NO external dependencies (no GPIO, MQTT, BLE, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Channel identifies which sensor produced a reading.
type Channel string

const (
	ChannelPower     Channel = "POWER"
	ChannelHeartRate Channel = "HEART_RATE"
)

// State represents which channel currently drives the display.
type State string

const (
	StateNoData          State = "NO_DATA"
	StatePowerActive     State = "POWER_ACTIVE"
	StateHeartRateActive State = "HEART_RATE_ACTIVE"
)

// Channel returns the channel driving the display in this state, or "" for NoData.
func (s State) Channel() Channel {
	switch s {
	case StatePowerActive:
		return ChannelPower
	case StateHeartRateActive:
		return ChannelHeartRate
	}
	return ""
}

// RGB is a single LED color.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

// Black is an unlit LED.
var Black = RGB{}

func (c RGB) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}

// Palette is an ordered set of colors, one per zone boundary.
type Palette []RGB

// DefaultPalette follows the common power zone colors, plus purple and white
// for the top zones.
var DefaultPalette = Palette{
	{132, 132, 130}, // grey
	{0, 0, 255},     // blue
	{0, 204, 34},    // green
	{255, 255, 0},   // yellow
	{255, 128, 0},   // orange
	{255, 0, 0},     // red
	{251, 3, 201},   // purple
	{255, 255, 255}, // white
}

// DescriptorKind distinguishes solid fills from two-color splits.
type DescriptorKind uint8

const (
	DescriptorSolid DescriptorKind = iota
	DescriptorSplit
)

// Segment is a run of LEDs sharing one color.
type Segment struct {
	Count int
	Color RGB
}

// Descriptor is what the strip should show for one raw value.
// It is comparable, so hysteresis can use ==.
type Descriptor struct {
	Kind DescriptorKind
	// Color is set for solid descriptors.
	Color RGB
	// Low occupies the start of the strip, High the end (split only).
	Low  Segment
	High Segment
}

// Solid returns a single-color descriptor.
func Solid(c RGB) Descriptor {
	return Descriptor{Kind: DescriptorSolid, Color: c}
}

// Split returns a two-color descriptor.
func Split(countLow int, colorLow RGB, countHigh int, colorHigh RGB) Descriptor {
	return Descriptor{
		Kind: DescriptorSplit,
		Low:  Segment{Count: countLow, Color: colorLow},
		High: Segment{Count: countHigh, Color: colorHigh},
	}
}

func (d Descriptor) String() string {
	if d.Kind == DescriptorSolid {
		return d.Color.String()
	}
	return fmt.Sprintf("%dx%s|%dx%s", d.Low.Count, d.Low.Color, d.High.Count, d.High.Color)
}

// Reading is a single decoded sensor value delivered by a transport.
type Reading struct {
	Channel   Channel
	Value     int
	Timestamp time.Time
}

// Emission is a command for the LED sink.
type Emission struct {
	Timestamp  time.Time
	Channel    Channel
	Value      int // value used for the lookup (averaged for smoothed power)
	Descriptor Descriptor
	// Zone is the 1-based band the value falls in.
	Zone int
	// Flash requests an attention animation; set on channel hand-off.
	Flash bool
}

// ArbiterState is a point-in-time copy of the arbiter's state.
type ArbiterState struct {
	State         State
	LastPower     time.Time
	LastHeartRate time.Time
	LastEmitted   Descriptor
	Zone          int // 1-based band of LastEmitted, 0 before the first emission
	HasEmitted    bool
	// Paired is true once any channel has delivered an accepted reading.
	Paired bool
}

// ArbiterCounts tracks arbiter activity since startup.
type ArbiterCounts struct {
	PowerReadings     int
	HeartRateReadings int
	Dropped           int
	Emissions         int
	Flashes           int
	Failovers         int
}

// HeartbeatData contains information for a periodic health log.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	State     State
	Counts    ArbiterCounts
}
