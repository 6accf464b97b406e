// Package status provides a thread-safe status tracker for the zonelight daemon.
// It is written by the run loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/zonelight/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Mode           logic.MappingMode
	Smoothing      bool
	AverageSamples int
	TimeDelay      time.Duration
	LEDs           int
	LEDDriver      string
	Broker         string
	BLE            bool
	HTTPAddr       string
	PowerZones     []int
	HeartRateZones []int
	Palette        logic.Palette
}

// LastReading is the most recent raw reading seen on a channel.
type LastReading struct {
	Value     int
	Timestamp time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Arbiter       logic.ArbiterState
	Counts        logic.ArbiterCounts
	LastPower     *LastReading
	LastHeartRate *LastReading
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	BLEConnected  bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	cfg.PowerZones = append([]int(nil), cfg.PowerZones...)
	cfg.HeartRateZones = append([]int(nil), cfg.HeartRateZones...)
	cfg.Palette = append(logic.Palette(nil), cfg.Palette...)
	return &Tracker{
		snap: Snapshot{
			Arbiter:   logic.ArbiterState{State: logic.StateNoData},
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the arbiter state and counts.
// Called from runLoop after every reading.
func (t *Tracker) Update(state logic.ArbiterState, counts logic.ArbiterCounts) {
	t.mu.Lock()
	t.snap.Arbiter = state
	t.snap.Counts = counts
	t.mu.Unlock()
}

// RecordReading stores r as the latest raw reading for its channel,
// whether or not the arbiter accepted it.
func (t *Tracker) RecordReading(r logic.Reading) {
	last := &LastReading{Value: r.Value, Timestamp: r.Timestamp}
	t.mu.Lock()
	switch r.Channel {
	case logic.ChannelPower:
		t.snap.LastPower = last
	case logic.ChannelHeartRate:
		t.snap.LastHeartRate = last
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetBLEConnected sets the Bluetooth connection status.
func (t *Tracker) SetBLEConnected(connected bool) {
	t.mu.Lock()
	t.snap.BLEConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
