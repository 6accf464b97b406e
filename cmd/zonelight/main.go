// Command zonelight lights an LED strip in the color of the rider's current
// training zone, driven by power or heart rate readings from MQTT or BLE.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"tinygo.org/x/bluetooth"

	"github.com/sweeney/zonelight/internal/ble"
	"github.com/sweeney/zonelight/internal/config"
	"github.com/sweeney/zonelight/internal/logging"
	"github.com/sweeney/zonelight/internal/logic"
	"github.com/sweeney/zonelight/internal/metrics"
	"github.com/sweeney/zonelight/internal/mqtt"
	"github.com/sweeney/zonelight/internal/status"
	"github.com/sweeney/zonelight/internal/strip"
	"github.com/sweeney/zonelight/internal/web"
)

var version = "dev"

// housekeepingInterval drives connectivity refresh and heartbeat checks.
const housekeepingInterval = time.Second

func main() {
	fs := pflag.NewFlagSet("zonelight", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", config.DefaultPath, "Path to the YAML configuration file")
	fs.BoolP("verbose", "v", false, "Enable debug logging")
	fs.String("http", "", "HTTP status address, e.g. :8080 (overrides http.addr)")
	fs.String("broker", "", "MQTT broker URL (overrides mqtt.broker)")
	fs.String("led-driver", "", "LED driver: apa102, terminal or none (overrides led.driver)")
	printZones := fs.Bool("print-zones", false, "Print the zone tables and exit")
	showVersion := fs.Bool("version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println("zonelight", version)
		return
	}

	cfg, err := config.Load(*configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	if *printZones {
		if err := writeZoneTables(os.Stdout, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Verbose:    cfg.Log.Verbose,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("zonelight stopped")
	}
	closer.Close()
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	arbiterCfg, err := cfg.ArbiterConfig()
	if err != nil {
		return err
	}
	palette, err := cfg.Palette()
	if err != nil {
		return err
	}

	writer, err := newWriter(cfg.LED, os.Stdout)
	if err != nil {
		return fmt.Errorf("init led strip: %w", err)
	}
	s := strip.New(writer, cfg.ANT.LEDs, strip.Options{
		FlashCount:  cfg.Display.FlashCount,
		FlashPeriod: cfg.Display.FlashPeriod,
		WipeDelay:   cfg.Display.WipeDelay,
		MinInterval: cfg.Display.MinInterval,
	})
	defer s.Close()

	logger.WithFields(logrus.Fields{
		"version": version,
		"leds":    cfg.ANT.LEDs,
		"driver":  cfg.LED.Driver,
		"mode":    cfg.Mode(),
	}).Info("Starting zonelight")

	if cfg.Display.SelfTest {
		if err := s.SelfTest(palette); err != nil {
			logger.WithError(err).Warn("LED self test failed")
		}
	}

	m := metrics.New()
	tracker := status.NewTracker(time.Now(), status.Config{
		Mode:           cfg.Mode(),
		Smoothing:      cfg.Display.Smoothing,
		AverageSamples: cfg.ANT.PowerAveraging,
		TimeDelay:      cfg.TimeDelay(),
		LEDs:           cfg.ANT.LEDs,
		LEDDriver:      cfg.LED.Driver,
		Broker:         cfg.MQTT.Broker,
		BLE:            cfg.BLE.Enabled,
		HTTPAddr:       cfg.HTTP.Addr,
		PowerZones:     cfg.Power.Zones,
		HeartRateZones: cfg.HeartRate.Zones,
		Palette:        palette,
	})

	readings := make(chan logic.Reading, config.ReadingQueueSize)
	var conns links

	if cfg.MQTT.Broker != "" {
		sub, err := mqtt.NewRealSubscriber(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			Recorder:    m,
		}, logging.Component(logger, "mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		if err := sub.Start(readings); err != nil {
			logger.WithError(err).Warn("MQTT not connected yet, retrying in background")
		}
		defer sub.Close()
		conns.mqtt = sub
	}

	if cfg.BLE.Enabled {
		src := ble.NewSource(bluetooth.DefaultAdapter, ble.Options{
			PowerAddress:     cfg.BLE.PowerAddress,
			HeartRateAddress: cfg.BLE.HeartRateAddress,
			ScanTimeout:      cfg.BLE.ScanTimeout,
			Recorder:         m,
		}, logging.Component(logger, "ble"))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := src.Run(ctx, readings); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Error("BLE source stopped")
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
		conns.ble = src
	}

	if conns.mqtt == nil && conns.ble == nil {
		logger.Warn("No reading source configured (set mqtt.broker or ble.enabled)")
	}

	if cfg.HTTP.Addr != "" {
		accessLog := logging.Component(logger, "http").WriterLevel(logrus.DebugLevel)
		defer accessLog.Close()

		srv := web.New(cfg.HTTP.Addr, tracker, m, accessLog)
		go func() {
			logger.WithField("addr", cfg.HTTP.Addr).Info("HTTP status server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("HTTP server error")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(readings, arbiterCfg, s, tracker, m, conns, logger, config.HeartbeatInterval, time.Now, ticker.C, abortOnSignal(sigCh, s))
}

type aborter interface {
	Abort()
}

// abortOnSignal relays the first signal from in after aborting a, so a
// flash in progress on the loop goroutine ends before shutdown is handled.
func abortOnSignal(in <-chan os.Signal, a aborter) <-chan os.Signal {
	out := make(chan os.Signal, 1)
	go func() {
		sig := <-in
		a.Abort()
		out <- sig
	}()
	return out
}

// newWriter opens the configured LED driver. out receives terminal frames.
func newWriter(led config.LEDConfig, out io.Writer) (strip.Writer, error) {
	switch led.Driver {
	case config.DriverAPA102:
		w, err := strip.NewGPIOWriter(led.Chip, led.DataPin, led.ClockPin, led.Brightness)
		if err != nil {
			return nil, err
		}
		return w, nil
	case config.DriverTerminal:
		return strip.NewTerminalWriter(out), nil
	case config.DriverNone:
		return strip.Discard, nil
	default:
		return nil, fmt.Errorf("unknown led driver %q", led.Driver)
	}
}

type connectionStatus interface {
	IsConnected() bool
}

// links holds the connectivity of each configured transport. Nil means
// the transport is not configured.
type links struct {
	mqtt connectionStatus
	ble  connectionStatus
}

func (l links) refresh(tracker *status.Tracker) {
	if l.mqtt != nil {
		tracker.SetMQTTConnected(l.mqtt.IsConnected())
	}
	if l.ble != nil {
		tracker.SetBLEConnected(l.ble.IsConnected())
	}
}

func runLoop(readings <-chan logic.Reading, cfg logic.ArbiterConfig, sink strip.Sink, tracker *status.Tracker, m *metrics.Metrics, links links, logger logrus.FieldLogger, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	arbiter, err := logic.NewArbiter(cfg, now())
	if err != nil {
		return err
	}
	m.SetState(arbiter.State().State)
	tracker.Update(arbiter.State(), arbiter.Counts())

	for {
		select {
		case s := <-sig:
			logger.WithField("signal", s.String()).Info("Shutting down")
			if err := sink.Clear(); err != nil {
				logger.WithError(err).Warn("Failed to blank strip")
			}
			return nil

		case r := <-readings:
			handleReading(arbiter, r, sink, tracker, m, logger)

		case <-tick:
			t := now()
			if err := sink.Flush(); err != nil {
				logger.WithError(err).Error("LED write failed")
			}
			links.refresh(tracker)
			if hb := arbiter.CheckHeartbeat(t, heartbeat); hb != nil {
				logger.WithFields(logrus.Fields{
					"uptime":     hb.Uptime.Round(time.Second).String(),
					"state":      hb.State,
					"power":      hb.Counts.PowerReadings,
					"heart_rate": hb.Counts.HeartRateReadings,
					"dropped":    hb.Counts.Dropped,
					"emissions":  hb.Counts.Emissions,
					"failovers":  hb.Counts.Failovers,
				}).Info("Heartbeat")
			}
		}
	}
}

// handleReading feeds one reading through the arbiter and shows the result.
func handleReading(arbiter *logic.Arbiter, r logic.Reading, sink strip.Sink, tracker *status.Tracker, m *metrics.Metrics, logger logrus.FieldLogger) {
	tracker.RecordReading(r)

	before := arbiter.State().State
	failovers := arbiter.Counts().Failovers

	e, err := arbiter.Process(r)
	if err != nil {
		reason := metrics.ReasonMiss
		if errors.Is(err, logic.ErrUnknownChannel) {
			reason = metrics.ReasonUnknown
		}
		m.Dropped(r.Channel, reason)
		logger.WithFields(logrus.Fields{
			"channel": r.Channel,
			"value":   r.Value,
		}).WithError(err).Debug("Dropped reading")
		tracker.Update(arbiter.State(), arbiter.Counts())
		return
	}
	m.Reading(r.Channel)

	if arbiter.Counts().Failovers > failovers {
		m.Failover()
	}

	after := arbiter.State()
	if after.State != before {
		m.SetState(after.State)
		logger.WithFields(logrus.Fields{
			"from":  before,
			"to":    after.State,
			"value": r.Value,
		}).Info("Active channel changed")
	}

	if e != nil {
		m.Emission(*e)
		logger.WithFields(logrus.Fields{
			"channel": e.Channel,
			"value":   e.Value,
			"zone":    e.Zone,
			"display": e.Descriptor.String(),
			"flash":   e.Flash,
		}).Debug("Emission")
		if err := sink.Emit(*e); err != nil {
			logger.WithError(err).Error("LED write failed")
		}
	}

	tracker.Update(after, arbiter.Counts())
}

// writeZoneTables prints the band boundaries and colors of both channels.
func writeZoneTables(w io.Writer, cfg *config.Config) error {
	power, heartRate, err := cfg.ZoneMaps()
	if err != nil {
		return err
	}
	palette, err := cfg.Palette()
	if err != nil {
		return err
	}

	for _, c := range []struct {
		name string
		zm   *logic.ZoneMap
	}{
		{"Power (W)", power},
		{"Heart rate (bpm)", heartRate},
	} {
		fmt.Fprintf(w, "%s, %s mode, %d LEDs\n", c.name, c.zm.Mode(), c.zm.TotalLeds())
		fmt.Fprintln(w, zoneTable(c.zm, palette))
	}
	return nil
}

func zoneTable(zm *logic.ZoneMap, palette logic.Palette) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Zone", "From", "To", "Colors")

	b := zm.Boundaries()
	for i := 0; i+1 < len(b); i++ {
		colors := strip.Hex(palette[i])
		if zm.Mode() == logic.ModeInterpolated {
			colors += " -> " + strip.Hex(palette[i+1])
		}
		t.Row(fmt.Sprint(i+1), fmt.Sprint(b[i]), fmt.Sprint(b[i+1]-1), colors)
	}
	return t.Render()
}
