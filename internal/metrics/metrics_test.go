package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/zonelight/internal/logic"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewRegistersBaseline(t *testing.T) {
	body := scrape(t, New())
	assert.Contains(t, body, `zonelight_readings_total{channel="POWER"} 0`)
	assert.Contains(t, body, `zonelight_readings_total{channel="HEART_RATE"} 0`)
	assert.Contains(t, body, `zonelight_active_channel{channel="POWER"} 0`)
	assert.Contains(t, body, "zonelight_flashes_total 0")
}

func TestCounters(t *testing.T) {
	m := New()
	m.Reading(logic.ChannelPower)
	m.Reading(logic.ChannelPower)
	m.Dropped(logic.ChannelHeartRate, ReasonMiss)
	m.Emission(logic.Emission{Channel: logic.ChannelPower, Value: 250, Flash: true})
	m.Emission(logic.Emission{Channel: logic.ChannelPower, Value: 260})
	m.Failover()
	m.QueueDrop("mqtt")

	body := scrape(t, m)
	assert.Contains(t, body, `zonelight_readings_total{channel="POWER"} 2`)
	assert.Contains(t, body, `zonelight_readings_dropped_total{channel="HEART_RATE",reason="miss"} 1`)
	assert.Contains(t, body, `zonelight_emissions_total{channel="POWER"} 2`)
	assert.Contains(t, body, `zonelight_last_value{channel="POWER"} 260`)
	assert.Contains(t, body, "zonelight_flashes_total 1")
	assert.Contains(t, body, "zonelight_failovers_total 1")
	assert.Contains(t, body, `zonelight_queue_drops_total{source="mqtt"} 1`)
}

func TestSetState(t *testing.T) {
	m := New()

	m.SetState(logic.StateHeartRateActive)
	body := scrape(t, m)
	assert.Contains(t, body, `zonelight_active_channel{channel="HEART_RATE"} 1`)
	assert.Contains(t, body, `zonelight_active_channel{channel="POWER"} 0`)

	m.SetState(logic.StateNoData)
	body = scrape(t, m)
	assert.Contains(t, body, `zonelight_active_channel{channel="HEART_RATE"} 0`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Reading(logic.ChannelPower)
		m.Dropped(logic.ChannelPower, ReasonParse)
		m.Emission(logic.Emission{})
		m.Failover()
		m.QueueDrop("ble")
		m.SetState(logic.StatePowerActive)
	})
}

func TestWrapHandlerCountsRequests(t *testing.T) {
	m := New()
	h := m.WrapHandler("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	body := scrape(t, m)
	assert.Contains(t, body, `zonelight_http_requests_total{route="/healthz",status="503"} 1`)
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Failover()
	assert.Contains(t, scrape(t, b), "zonelight_failovers_total 0")
}
