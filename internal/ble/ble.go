// Package ble receives heart rate and cycling power readings directly from
// Bluetooth LE sensors.
package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/sweeney/zonelight/internal/logic"
	"github.com/sweeney/zonelight/internal/metrics"
)

// SourceName labels readings dropped by this transport.
const SourceName = "ble"

const retryInterval = 5 * time.Second

// GATT identifiers.
var (
	ServiceHeartRate    = bluetooth.New16BitUUID(0x180D)
	CharHeartRate       = bluetooth.New16BitUUID(0x2A37)
	ServiceCyclingPower = bluetooth.New16BitUUID(0x1818)
	CharCyclingPower    = bluetooth.New16BitUUID(0x2A63)
)

// Recorder receives drop notifications. *metrics.Metrics satisfies it.
type Recorder interface {
	Dropped(ch logic.Channel, reason string)
	QueueDrop(source string)
}

// Options configures the BLE source. Empty addresses accept the first
// sensor advertising the matching service.
type Options struct {
	PowerAddress     string
	HeartRateAddress string
	ScanTimeout      time.Duration
	Recorder         Recorder
}

// profile describes one sensor type.
type profile struct {
	channel        logic.Channel
	service        bluetooth.UUID
	characteristic bluetooth.UUID
	address        string
	parse          func([]byte) (int, error)
}

// Source connects to sensors and forwards their notifications as readings.
type Source struct {
	adapter  *bluetooth.Adapter
	profiles []profile
	opts     Options
	logger   logrus.FieldLogger
	now      func() time.Time

	out chan<- logic.Reading

	mu      sync.Mutex
	devices map[logic.Channel]bluetooth.Device
	address map[logic.Channel]string
}

// NewSource creates a source on adapter (usually bluetooth.DefaultAdapter).
func NewSource(adapter *bluetooth.Adapter, opts Options, logger logrus.FieldLogger) *Source {
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 30 * time.Second
	}
	return &Source{
		adapter: adapter,
		profiles: []profile{
			{logic.ChannelPower, ServiceCyclingPower, CharCyclingPower, opts.PowerAddress, ParseCyclingPower},
			{logic.ChannelHeartRate, ServiceHeartRate, CharHeartRate, opts.HeartRateAddress, ParseHeartRate},
		},
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		devices: make(map[logic.Channel]bluetooth.Device),
		address: make(map[logic.Channel]string),
	}
}

// Run enables the adapter and keeps both sensors connected until ctx is
// cancelled. Readings are sent to out without blocking.
func (s *Source) Run(ctx context.Context, out chan<- logic.Reading) error {
	s.out = out

	s.adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		if !connected {
			s.disconnected(d.Address.String())
		}
	})
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}
	s.logger.Info("BLE adapter enabled")

	for {
		if missing := s.missing(); len(missing) > 0 {
			if err := s.scanAndConnect(ctx, missing); err != nil {
				s.logger.WithError(err).Warn("BLE scan failed")
			}
		}

		select {
		case <-ctx.Done():
			s.disconnectAll()
			return nil
		case <-time.After(retryInterval):
		}
	}
}

// missing returns the profiles without a connected sensor.
func (s *Source) missing() []profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []profile
	for _, p := range s.profiles {
		if _, ok := s.devices[p.channel]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// match picks the first profile an advertisement satisfies.
func match(addr string, hasService func(bluetooth.UUID) bool, candidates []profile) (profile, bool) {
	for _, p := range candidates {
		if p.address != "" {
			if strings.EqualFold(p.address, addr) {
				return p, true
			}
			continue
		}
		if hasService(p.service) {
			return p, true
		}
	}
	return profile{}, false
}

func (s *Source) scanAndConnect(ctx context.Context, missing []profile) error {
	scanCtx, cancel := context.WithTimeout(ctx, s.opts.ScanTimeout)
	defer cancel()

	go func() {
		<-scanCtx.Done()
		s.adapter.StopScan()
	}()

	var mu sync.Mutex
	found := make(map[logic.Channel]bluetooth.ScanResult)

	s.logger.WithField("wanted", len(missing)).Debug("BLE scanning")
	err := s.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		p, ok := match(r.Address.String(), r.HasServiceUUID, missing)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, seen := found[p.channel]; seen {
			return
		}
		found[p.channel] = r
		s.logger.WithFields(logrus.Fields{
			"channel": p.channel,
			"address": r.Address.String(),
			"name":    r.LocalName(),
		}).Info("BLE sensor found")
		if len(found) == len(missing) {
			cancel()
		}
	})
	if err != nil && scanCtx.Err() == nil {
		return fmt.Errorf("scan: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	var errs []error
	for _, p := range missing {
		r, ok := found[p.channel]
		if !ok {
			continue
		}
		if err := s.connect(p, r.Address); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.channel, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Source) connect(p profile, addr bluetooth.Address) error {
	dev, err := s.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr.String(), err)
	}

	services, err := dev.DiscoverServices([]bluetooth.UUID{p.service})
	if err != nil || len(services) == 0 {
		dev.Disconnect()
		return fmt.Errorf("discover service %s: %v", p.service.String(), err)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{p.characteristic})
	if err != nil || len(chars) == 0 {
		dev.Disconnect()
		return fmt.Errorf("discover characteristic %s: %v", p.characteristic.String(), err)
	}
	if err := chars[0].EnableNotifications(s.notify(p)); err != nil {
		dev.Disconnect()
		return fmt.Errorf("enable notifications: %w", err)
	}

	s.mu.Lock()
	s.devices[p.channel] = dev
	s.address[p.channel] = addr.String()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"channel": p.channel,
		"address": addr.String(),
	}).Info("BLE sensor connected")
	return nil
}

// notify returns the notification callback for p.
func (s *Source) notify(p profile) func([]byte) {
	return func(buf []byte) {
		v, err := p.parse(buf)
		if err != nil {
			s.logger.WithError(err).WithField("channel", p.channel).Debug("Dropping malformed notification")
			if s.opts.Recorder != nil {
				s.opts.Recorder.Dropped(p.channel, metrics.ReasonParse)
			}
			return
		}

		r := logic.Reading{Channel: p.channel, Value: v, Timestamp: s.now()}
		select {
		case s.out <- r:
		default:
			s.logger.WithFields(logrus.Fields{
				"channel": p.channel,
				"value":   v,
			}).Warn("Reading queue full, dropping reading")
			if s.opts.Recorder != nil {
				s.opts.Recorder.QueueDrop(SourceName)
			}
		}
	}
}

func (s *Source) disconnected(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch, a := range s.address {
		if a == addr {
			delete(s.devices, ch)
			delete(s.address, ch)
			s.logger.WithFields(logrus.Fields{
				"channel": ch,
				"address": addr,
			}).Warn("BLE sensor disconnected")
		}
	}
}

func (s *Source) disconnectAll() {
	s.mu.Lock()
	devices := s.devices
	s.devices = make(map[logic.Channel]bluetooth.Device)
	s.address = make(map[logic.Channel]string)
	s.mu.Unlock()

	for ch, dev := range devices {
		if err := dev.Disconnect(); err != nil {
			s.logger.WithError(err).WithField("channel", ch).Warn("BLE disconnect failed")
		}
	}
}

// Connected reports whether a sensor for ch is connected.
func (s *Source) Connected(ch logic.Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.devices[ch]
	return ok
}

// IsConnected reports whether any sensor is connected.
func (s *Source) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices) > 0
}
