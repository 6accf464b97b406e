package config

import "time"

// Central place for application-wide defaults and timing constants.

const (
	// DefaultPath is where the daemon looks for its YAML file when --config is not given.
	DefaultPath = "/etc/zonelight/zonelight.yaml"

	// EnvPrefix prefixes environment overrides, e.g. ZONELIGHT_MQTT_BROKER.
	EnvPrefix = "ZONELIGHT"

	// HeartbeatInterval controls the periodic health log line.
	HeartbeatInterval = 15 * time.Minute

	// ReadingQueueSize is the buffer between transports and the arbiter loop.
	ReadingQueueSize = 64
)

// Values used when the YAML file leaves a key out.
const (
	defaultLEDs           = 30
	defaultTimeDelay      = 5
	defaultPowerAveraging = 3
	defaultMode           = "interpolated"
	defaultDefaultChannel = "none"
	defaultFlashCount     = 5
	defaultFlashPeriod    = 500 * time.Millisecond
	defaultLEDDriver      = "apa102"
	defaultChip           = "gpiochip0"
	defaultDataPin        = 10 // BCM 10 (SPI MOSI)
	defaultClockPin       = 11 // BCM 11 (SPI SCLK)
	defaultBrightness     = 31
	defaultTopicPrefix    = "zonelight/sensor"
	defaultClientID       = "zonelight"
	defaultScanTimeout    = 30 * time.Second
	defaultLogLevel       = "info"
	defaultLogMaxSizeMB   = 10
	defaultLogMaxBackups  = 3
	defaultLogMaxAgeDays  = 28
)

var defaultZonesPower = []int{0, 155, 214, 247, 267, 298, 340, 3000}

var defaultZonesHeartRate = []int{0, 141, 150, 158, 167, 172, 178, 255}

var defaultPalette = []string{
	"#848482", // grey
	"#0000ff", // blue
	"#00cc22", // green
	"#ffff00", // yellow
	"#ff8000", // orange
	"#ff0000", // red
	"#fb03c9", // purple
	"#ffffff", // white
}
