// Package metrics exposes zonelight counters in the Prometheus text format.
// All collectors live on a private registry so tests can create as many
// instances as they like.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/zonelight/internal/logic"
)

type Metrics struct {
	registry *prometheus.Registry

	readings      *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	emissions     *prometheus.CounterVec
	flashes       prometheus.Counter
	failovers     prometheus.Counter
	queueDrops    *prometheus.CounterVec
	activeChannel *prometheus.GaugeVec
	lastValue     *prometheus.GaugeVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// Drop reasons.
const (
	ReasonMiss    = "miss"
	ReasonUnknown = "unknown_channel"
	ReasonParse   = "parse"
)

var channels = []logic.Channel{logic.ChannelPower, logic.ChannelHeartRate}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonelight_readings_total",
			Help: "Readings accepted by the arbiter, by channel.",
		}, []string{"channel"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonelight_readings_dropped_total",
			Help: "Readings dropped before reaching the strip, by channel and reason.",
		}, []string{"channel", "reason"}),
		emissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonelight_emissions_total",
			Help: "Descriptors sent to the LED strip, by channel.",
		}, []string{"channel"}),
		flashes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonelight_flashes_total",
			Help: "Flash animations requested on channel hand-off.",
		}),
		failovers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonelight_failovers_total",
			Help: "Switches between power and heart rate.",
		}),
		queueDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonelight_queue_drops_total",
			Help: "Readings discarded because the arbiter queue was full, by source.",
		}, []string{"source"}),
		activeChannel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zonelight_active_channel",
			Help: "1 for the channel currently driving the strip, 0 otherwise.",
		}, []string{"channel"}),
		lastValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zonelight_last_value",
			Help: "Last value used for a zone lookup, by channel.",
		}, []string{"channel"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonelight_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zonelight_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.readings,
		m.dropped,
		m.emissions,
		m.flashes,
		m.failovers,
		m.queueDrops,
		m.activeChannel,
		m.lastValue,
		m.httpRequests,
		m.httpDuration,
	)

	for _, ch := range channels {
		m.readings.WithLabelValues(string(ch))
		m.emissions.WithLabelValues(string(ch))
		m.activeChannel.WithLabelValues(string(ch)).Set(0)
	}

	return m
}

// Handler serves the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Reading(ch logic.Channel) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(string(ch)).Inc()
}

func (m *Metrics) Dropped(ch logic.Channel, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(string(ch), reason).Inc()
}

// Emission records a descriptor sent to the strip.
func (m *Metrics) Emission(e logic.Emission) {
	if m == nil {
		return
	}
	m.emissions.WithLabelValues(string(e.Channel)).Inc()
	m.lastValue.WithLabelValues(string(e.Channel)).Set(float64(e.Value))
	if e.Flash {
		m.flashes.Inc()
	}
}

func (m *Metrics) Failover() {
	if m == nil {
		return
	}
	m.failovers.Inc()
}

func (m *Metrics) QueueDrop(source string) {
	if m == nil {
		return
	}
	m.queueDrops.WithLabelValues(source).Inc()
}

// SetState marks the channel driving the strip. NoData clears both.
func (m *Metrics) SetState(s logic.State) {
	if m == nil {
		return
	}
	active := s.Channel()
	for _, ch := range channels {
		v := 0.0
		if ch == active {
			v = 1
		}
		m.activeChannel.WithLabelValues(string(ch)).Set(v)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and their latency for route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}
