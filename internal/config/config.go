// Package config loads the zonelight YAML file with viper, applies
// environment and flag overrides, and validates the result.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/zonelight/internal/logic"
)

// ChannelConfig holds the zone boundaries for one sensor channel.
type ChannelConfig struct {
	Zones []int `mapstructure:"zones"`
}

// ANTConfig is the sensor section. Serial and NetKey identify the radio
// bridge; the remaining values drive the arbiter.
type ANTConfig struct {
	Serial         string `mapstructure:"serial"`
	NetKey         string `mapstructure:"netkey"`
	LEDs           int    `mapstructure:"leds"`
	TimeDelay      int    `mapstructure:"time_delay"` // seconds
	PowerAveraging int    `mapstructure:"power_averaging"`
}

type DisplayConfig struct {
	Mode           string        `mapstructure:"mode"`
	Smoothing      bool          `mapstructure:"smoothing"`
	DefaultChannel string        `mapstructure:"default_channel"`
	Palette        []string      `mapstructure:"palette"`
	FlashCount     int           `mapstructure:"flash_count"`
	FlashPeriod    time.Duration `mapstructure:"flash_period"`
	WipeDelay      time.Duration `mapstructure:"wipe_delay"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	SelfTest       bool          `mapstructure:"self_test"`
}

// LEDConfig selects the strip driver. Pins are GPIO line offsets on Chip.
type LEDConfig struct {
	Driver     string `mapstructure:"driver"`
	Chip       string `mapstructure:"chip"`
	DataPin    int    `mapstructure:"data_pin"`
	ClockPin   int    `mapstructure:"clock_pin"`
	Brightness int    `mapstructure:"brightness"`
}

type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type BLEConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	PowerAddress     string        `mapstructure:"power_address"`
	HeartRateAddress string        `mapstructure:"heart_rate_address"`
	ScanTimeout      time.Duration `mapstructure:"scan_timeout"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	Verbose    bool   `mapstructure:"verbose"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Config is the complete, immutable runtime configuration.
type Config struct {
	Power     ChannelConfig `mapstructure:"power"`
	HeartRate ChannelConfig `mapstructure:"heart rate"`
	ANT       ANTConfig     `mapstructure:"ant"`
	Display   DisplayConfig `mapstructure:"display"`
	LED       LEDConfig     `mapstructure:"led"`
	MQTT      MQTTConfig    `mapstructure:"mqtt"`
	BLE       BLEConfig     `mapstructure:"ble"`
	HTTP      HTTPConfig    `mapstructure:"http"`
	Log       LogConfig     `mapstructure:"log"`
}

// LED drivers.
const (
	DriverAPA102   = "apa102"
	DriverTerminal = "terminal"
	DriverNone     = "none"
)

// flagKeys maps command line flags to the config keys they override.
var flagKeys = map[string]string{
	"verbose":    "log.verbose",
	"http":       "http.addr",
	"broker":     "mqtt.broker",
	"led-driver": "led.driver",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("power.zones", defaultZonesPower)
	v.SetDefault("heart rate.zones", defaultZonesHeartRate)
	v.SetDefault("ant.serial", "")
	v.SetDefault("ant.netkey", "")
	v.SetDefault("ant.leds", defaultLEDs)
	v.SetDefault("ant.time_delay", defaultTimeDelay)
	v.SetDefault("ant.power_averaging", defaultPowerAveraging)
	v.SetDefault("display.mode", defaultMode)
	v.SetDefault("display.smoothing", true)
	v.SetDefault("display.default_channel", defaultDefaultChannel)
	v.SetDefault("display.palette", defaultPalette)
	v.SetDefault("display.flash_count", defaultFlashCount)
	v.SetDefault("display.flash_period", defaultFlashPeriod)
	v.SetDefault("display.wipe_delay", time.Duration(0))
	v.SetDefault("display.min_interval", time.Duration(0))
	v.SetDefault("display.self_test", true)
	v.SetDefault("led.driver", defaultLEDDriver)
	v.SetDefault("led.chip", defaultChip)
	v.SetDefault("led.data_pin", defaultDataPin)
	v.SetDefault("led.clock_pin", defaultClockPin)
	v.SetDefault("led.brightness", defaultBrightness)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic_prefix", defaultTopicPrefix)
	v.SetDefault("mqtt.client_id", defaultClientID)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("ble.enabled", false)
	v.SetDefault("ble.power_address", "")
	v.SetDefault("ble.heart_rate_address", "")
	v.SetDefault("ble.scan_timeout", defaultScanTimeout)
	v.SetDefault("http.addr", "")
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.file", "")
	v.SetDefault("log.verbose", false)
	v.SetDefault("log.max_size_mb", defaultLogMaxSizeMB)
	v.SetDefault("log.max_backups", defaultLogMaxBackups)
	v.SetDefault("log.max_age_days", defaultLogMaxAgeDays)
}

// Load reads the YAML file at path, overlays ZONELIGHT_* environment
// variables and any changed flags, and validates the result.
// A missing file is an error. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", " ", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks every invariant the rest of the program relies on.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.ANT.LEDs <= 0 {
		errs = append(errs, fmt.Errorf("ant.leds must be positive, got %d", c.ANT.LEDs))
	}
	if c.ANT.TimeDelay < 0 {
		errs = append(errs, fmt.Errorf("ant.time_delay must not be negative, got %d", c.ANT.TimeDelay))
	}
	if c.Display.Smoothing && c.ANT.PowerAveraging <= 0 {
		errs = append(errs, fmt.Errorf("ant.power_averaging must be positive when smoothing, got %d", c.ANT.PowerAveraging))
	}
	if c.ANT.NetKey != "" {
		if err := validateNetKey(c.ANT.NetKey); err != nil {
			errs = append(errs, err)
		}
	}

	switch logic.DefaultChannel(strings.ToLower(c.Display.DefaultChannel)) {
	case logic.DefaultNone, logic.DefaultPower:
	default:
		errs = append(errs, fmt.Errorf("display.default_channel must be none or power, got %q", c.Display.DefaultChannel))
	}
	if c.Display.FlashCount < 0 {
		errs = append(errs, fmt.Errorf("display.flash_count must not be negative, got %d", c.Display.FlashCount))
	}
	if c.Display.FlashPeriod < 0 || c.Display.WipeDelay < 0 || c.Display.MinInterval < 0 {
		errs = append(errs, errors.New("display durations must not be negative"))
	}

	if _, err := c.Palette(); err != nil {
		errs = append(errs, err)
	} else if _, _, err := c.ZoneMaps(); err != nil {
		errs = append(errs, err)
	}

	switch c.LED.Driver {
	case DriverAPA102:
		if c.LED.Chip == "" {
			errs = append(errs, errors.New("led.chip is required for the apa102 driver"))
		}
		if c.LED.DataPin < 0 || c.LED.ClockPin < 0 {
			errs = append(errs, fmt.Errorf("led pins must not be negative (data=%d clock=%d)", c.LED.DataPin, c.LED.ClockPin))
		}
		if c.LED.DataPin == c.LED.ClockPin {
			errs = append(errs, fmt.Errorf("led.data_pin and led.clock_pin must differ (both %d)", c.LED.DataPin))
		}
	case DriverTerminal, DriverNone:
	default:
		errs = append(errs, fmt.Errorf("led.driver must be apa102, terminal or none, got %q", c.LED.Driver))
	}
	if c.LED.Brightness < 0 || c.LED.Brightness > 31 {
		errs = append(errs, fmt.Errorf("led.brightness must be 0-31, got %d", c.LED.Brightness))
	}

	if c.MQTT.Broker != "" {
		if err := validateBroker(c.MQTT.Broker); err != nil {
			errs = append(errs, err)
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, errors.New("mqtt.topic_prefix is required when a broker is set"))
		}
	}

	if c.BLE.Enabled && c.BLE.ScanTimeout < 0 {
		errs = append(errs, errors.New("ble.scan_timeout must not be negative"))
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

func validateNetKey(key string) error {
	b, err := hex.DecodeString(key)
	if err != nil {
		return fmt.Errorf("ant.netkey: %w", err)
	}
	if len(b) != 8 {
		return fmt.Errorf("ant.netkey must be 8 bytes, got %d", len(b))
	}
	return nil
}

func validateBroker(broker string) error {
	u, err := url.Parse(broker)
	if err != nil {
		return fmt.Errorf("mqtt.broker: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("mqtt.broker scheme must be tcp, ssl, ws, wss, mqtt or mqtts, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("mqtt.broker has no host: %q", broker)
	}
	return nil
}

// Palette parses the configured hex colors.
func (c *Config) Palette() (logic.Palette, error) {
	p := make(logic.Palette, 0, len(c.Display.Palette))
	for i, s := range c.Display.Palette {
		col, err := colorful.Hex(s)
		if err != nil {
			return nil, fmt.Errorf("display.palette[%d]: %w", i, err)
		}
		r, g, b := col.RGB255()
		p = append(p, logic.RGB{R: r, G: g, B: b})
	}
	return p, nil
}

// Mode returns the configured mapping mode.
func (c *Config) Mode() logic.MappingMode {
	return logic.MappingMode(strings.ToLower(c.Display.Mode))
}

// TimeDelay returns the failover delay.
func (c *Config) TimeDelay() time.Duration {
	return time.Duration(c.ANT.TimeDelay) * time.Second
}

// ZoneMaps builds the power and heart rate zone maps.
func (c *Config) ZoneMaps() (power, heartRate *logic.ZoneMap, err error) {
	palette, err := c.Palette()
	if err != nil {
		return nil, nil, err
	}
	power, err = logic.BuildZoneMap(c.Power.Zones, palette, c.ANT.LEDs, c.Mode())
	if err != nil {
		return nil, nil, fmt.Errorf("power zones: %w", err)
	}
	heartRate, err = logic.BuildZoneMap(c.HeartRate.Zones, palette, c.ANT.LEDs, c.Mode())
	if err != nil {
		return nil, nil, fmt.Errorf("heart rate zones: %w", err)
	}
	return power, heartRate, nil
}

// ArbiterConfig builds the arbiter configuration, including both zone maps.
func (c *Config) ArbiterConfig() (logic.ArbiterConfig, error) {
	power, heartRate, err := c.ZoneMaps()
	if err != nil {
		return logic.ArbiterConfig{}, err
	}
	return logic.ArbiterConfig{
		Power:          power,
		HeartRate:      heartRate,
		TimeDelay:      c.TimeDelay(),
		Smoothing:      c.Display.Smoothing,
		AverageSamples: c.ANT.PowerAveraging,
		DefaultChannel: logic.DefaultChannel(strings.ToLower(c.Display.DefaultChannel)),
	}, nil
}
