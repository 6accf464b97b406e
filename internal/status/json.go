package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/zonelight/internal/logic"
	"github.com/sweeney/zonelight/internal/strip"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	State         string       `json:"state"`
	Channel       string       `json:"channel,omitempty"`
	Paired        bool         `json:"paired"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	BLE           BLEStatus    `json:"ble"`
	Display       *DisplayJSON `json:"display,omitempty"`
	Readings      ReadingsJSON `json:"readings"`
	Counts        CountsJSON   `json:"counts"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// BLEStatus reports Bluetooth state.
type BLEStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// SegmentJSON is a run of LEDs.
type SegmentJSON struct {
	Count int    `json:"count"`
	Color string `json:"color"`
}

// DisplayJSON describes what the strip is showing.
type DisplayJSON struct {
	Kind  string       `json:"kind"`
	Zone  int          `json:"zone"`
	Color string       `json:"color,omitempty"`
	Low   *SegmentJSON `json:"low,omitempty"`
	High  *SegmentJSON `json:"high,omitempty"`
	// Frame holds one hex color per LED.
	Frame []string `json:"frame"`
}

// ReadingJSON is the last raw reading on a channel.
type ReadingJSON struct {
	Value     int    `json:"value"`
	Timestamp string `json:"timestamp"`
}

type ReadingsJSON struct {
	Power     *ReadingJSON `json:"power"`
	HeartRate *ReadingJSON `json:"heart_rate"`
}

// CountsJSON is the JSON representation of arbiter counts.
type CountsJSON struct {
	PowerReadings     int `json:"power_readings"`
	HeartRateReadings int `json:"heart_rate_readings"`
	Dropped           int `json:"dropped"`
	Emissions         int `json:"emissions"`
	Flashes           int `json:"flashes"`
	Failovers         int `json:"failovers"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Mode             string   `json:"mode"`
	Smoothing        bool     `json:"smoothing"`
	AverageSamples   int      `json:"average_samples"`
	TimeDelaySeconds float64  `json:"time_delay_seconds"`
	LEDs             int      `json:"leds"`
	LEDDriver        string   `json:"led_driver"`
	HTTPAddr         string   `json:"http_addr"`
	PowerZones       []int    `json:"power_zones"`
	HeartRateZones   []int    `json:"heart_rate_zones"`
	Palette          []string `json:"palette"`
}

func buildDisplay(snap Snapshot) *DisplayJSON {
	if !snap.Arbiter.HasEmitted {
		return nil
	}
	d := snap.Arbiter.LastEmitted
	out := &DisplayJSON{Zone: snap.Arbiter.Zone}
	if d.Kind == logic.DescriptorSolid {
		out.Kind = "solid"
		out.Color = strip.Hex(d.Color)
	} else {
		out.Kind = "split"
		out.Low = &SegmentJSON{Count: d.Low.Count, Color: strip.Hex(d.Low.Color)}
		out.High = &SegmentJSON{Count: d.High.Count, Color: strip.Hex(d.High.Color)}
	}
	for _, c := range strip.Render(d, snap.Config.LEDs) {
		out.Frame = append(out.Frame, strip.Hex(c))
	}
	return out
}

func buildReading(r *LastReading) *ReadingJSON {
	if r == nil {
		return nil
	}
	return &ReadingJSON{Value: r.Value, Timestamp: r.Timestamp.UTC().Format(time.RFC3339)}
}

// Build converts a snapshot into its JSON form.
func Build(snap Snapshot) StatusInner {
	state := string(snap.Arbiter.State)
	if state == "" {
		state = string(logic.StateNoData)
	}

	palette := make([]string, 0, len(snap.Config.Palette))
	for _, c := range snap.Config.Palette {
		palette = append(palette, strip.Hex(c))
	}

	return StatusInner{
		State:         state,
		Channel:       string(snap.Arbiter.State.Channel()),
		Paired:        snap.Arbiter.Paired,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		BLE:           BLEStatus{Enabled: snap.Config.BLE, Connected: snap.BLEConnected},
		Display:       buildDisplay(snap),
		Readings: ReadingsJSON{
			Power:     buildReading(snap.LastPower),
			HeartRate: buildReading(snap.LastHeartRate),
		},
		Counts: CountsJSON{
			PowerReadings:     snap.Counts.PowerReadings,
			HeartRateReadings: snap.Counts.HeartRateReadings,
			Dropped:           snap.Counts.Dropped,
			Emissions:         snap.Counts.Emissions,
			Flashes:           snap.Counts.Flashes,
			Failovers:         snap.Counts.Failovers,
		},
		Config: ConfigJSON{
			Mode:             string(snap.Config.Mode),
			Smoothing:        snap.Config.Smoothing,
			AverageSamples:   snap.Config.AverageSamples,
			TimeDelaySeconds: snap.Config.TimeDelay.Seconds(),
			LEDs:             snap.Config.LEDs,
			LEDDriver:        snap.Config.LEDDriver,
			HTTPAddr:         snap.Config.HTTPAddr,
			PowerZones:       snap.Config.PowerZones,
			HeartRateZones:   snap.Config.HeartRateZones,
			Palette:          palette,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: Build(snap)}, "", "  ")
	return data
}
