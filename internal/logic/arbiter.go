package logic

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownChannel is returned for readings from an unrecognised channel.
var ErrUnknownChannel = errors.New("unknown channel")

// DefaultChannel selects the arbiter's initial state.
type DefaultChannel string

const (
	DefaultNone  DefaultChannel = "none"
	DefaultPower DefaultChannel = "power"
)

// ArbiterConfig holds everything the arbiter needs. It is built once at
// startup and never mutated.
type ArbiterConfig struct {
	Power     *ZoneMap
	HeartRate *ZoneMap
	// TimeDelay is how long power must be silent before heart rate takes over.
	TimeDelay time.Duration
	// Smoothing enables the rolling average on the power channel.
	Smoothing      bool
	AverageSamples int
	DefaultChannel DefaultChannel
}

// Arbiter decides which channel drives the strip and what to show.
// It is not safe for concurrent use: readings must be delivered serially.
type Arbiter struct {
	power     *ZoneMap
	heartRate *ZoneMap
	timeDelay time.Duration
	filter    *RollingAverage

	state         State
	lastPower     time.Time
	lastHeartRate time.Time
	lastEmitted   Descriptor
	lastZone      int
	hasEmitted    bool
	paired        bool

	startTime     time.Time
	counts        ArbiterCounts
	lastHeartbeat time.Time
}

// NewArbiter creates an arbiter. The startTime is used for uptime and, when
// power is the default channel, as the initial power timestamp.
func NewArbiter(cfg ArbiterConfig, startTime time.Time) (*Arbiter, error) {
	if cfg.Power == nil || cfg.HeartRate == nil {
		return nil, errors.New("arbiter: both zone maps are required")
	}
	if cfg.TimeDelay < 0 {
		return nil, fmt.Errorf("arbiter: negative time delay %v", cfg.TimeDelay)
	}

	a := &Arbiter{
		power:         cfg.Power,
		heartRate:     cfg.HeartRate,
		timeDelay:     cfg.TimeDelay,
		state:         StateNoData,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}

	if cfg.Smoothing {
		f, err := NewRollingAverage(cfg.AverageSamples)
		if err != nil {
			return nil, fmt.Errorf("arbiter: %w", err)
		}
		a.filter = f
	}

	switch cfg.DefaultChannel {
	case "", DefaultNone:
	case DefaultPower:
		a.state = StatePowerActive
		a.lastPower = startTime
	default:
		return nil, fmt.Errorf("arbiter: unknown default channel %q", cfg.DefaultChannel)
	}

	return a, nil
}

// Process takes a reading and returns the emission it causes, if any.
// A non-nil error means the reading was dropped and the state is unchanged.
// (nil, nil) means the reading was accepted but nothing needs to be shown.
func (a *Arbiter) Process(r Reading) (*Emission, error) {
	switch r.Channel {
	case ChannelPower:
		return a.processPower(r)
	case ChannelHeartRate:
		return a.processHeartRate(r)
	default:
		a.counts.Dropped++
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, r.Channel)
	}
}

func (a *Arbiter) processPower(r Reading) (*Emission, error) {
	value := r.Value
	if a.filter != nil {
		value = a.filter.Push(r.Value)
	}

	d, err := a.power.Get(value)
	if err != nil {
		a.counts.Dropped++
		return nil, err
	}

	a.counts.PowerReadings++
	a.paired = true
	a.lastPower = r.Timestamp

	if a.state != StatePowerActive {
		if a.state == StateHeartRateActive {
			a.counts.Failovers++
		}
		a.state = StatePowerActive
		return a.emit(r, value, d, a.power, true), nil
	}

	if a.hasEmitted && d == a.lastEmitted {
		return nil, nil
	}
	return a.emit(r, value, d, a.power, false), nil
}

func (a *Arbiter) processHeartRate(r Reading) (*Emission, error) {
	d, err := a.heartRate.Get(r.Value)
	if err != nil {
		a.counts.Dropped++
		return nil, err
	}

	a.counts.HeartRateReadings++
	a.paired = true
	a.lastHeartRate = r.Timestamp

	switch a.state {
	case StateNoData:
		a.state = StateHeartRateActive
		return a.emit(r, r.Value, d, a.heartRate, true), nil

	case StatePowerActive:
		// Power keeps priority until it has been silent for longer than the delay.
		if r.Timestamp.Sub(a.lastPower) > a.timeDelay {
			a.state = StateHeartRateActive
			a.counts.Failovers++
			return a.emit(r, r.Value, d, a.heartRate, true), nil
		}
		return nil, nil

	default:
		if a.hasEmitted && d == a.lastEmitted {
			return nil, nil
		}
		return a.emit(r, r.Value, d, a.heartRate, false), nil
	}
}

func (a *Arbiter) emit(r Reading, value int, d Descriptor, m *ZoneMap, flash bool) *Emission {
	band, _ := m.Zone(value)
	a.lastEmitted = d
	a.lastZone = band + 1
	a.hasEmitted = true
	a.counts.Emissions++
	if flash {
		a.counts.Flashes++
	}
	return &Emission{
		Timestamp:  r.Timestamp,
		Channel:    r.Channel,
		Value:      value,
		Descriptor: d,
		Zone:       band + 1,
		Flash:      flash,
	}
}

// State returns a copy of the current arbiter state.
func (a *Arbiter) State() ArbiterState {
	return ArbiterState{
		State:         a.state,
		LastPower:     a.lastPower,
		LastHeartRate: a.lastHeartRate,
		LastEmitted:   a.lastEmitted,
		Zone:          a.lastZone,
		HasEmitted:    a.hasEmitted,
		Paired:        a.paired,
	}
}

// Counts returns a copy of the activity counters.
func (a *Arbiter) Counts() ArbiterCounts {
	return a.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (a *Arbiter) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(a.lastHeartbeat) < interval {
		return nil
	}

	a.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(a.startTime),
		State:     a.state,
		Counts:    a.counts,
	}
}
