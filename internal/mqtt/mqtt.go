// Package mqtt receives sensor readings over MQTT with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/zonelight/internal/logic"
	"github.com/sweeney/zonelight/internal/metrics"
)

// Topic suffixes under the configured prefix.
const (
	SuffixPower     = "power"
	SuffixHeartRate = "heart_rate"
)

// SourceName labels readings dropped by this transport.
const SourceName = "mqtt"

// ErrInvalidPayload is returned for payloads that carry no usable value.
var ErrInvalidPayload = errors.New("invalid payload")

// Recorder receives drop notifications. *metrics.Metrics satisfies it.
type Recorder interface {
	Dropped(ch logic.Channel, reason string)
	QueueDrop(source string)
}

// Topics returns the topic for each channel under prefix.
func Topics(prefix string) map[string]logic.Channel {
	prefix = strings.TrimSuffix(prefix, "/")
	return map[string]logic.Channel{
		prefix + "/" + SuffixPower:     logic.ChannelPower,
		prefix + "/" + SuffixHeartRate: logic.ChannelHeartRate,
	}
}

// Payload is the JSON form of a reading. Timestamp is optional RFC3339.
type Payload struct {
	Value     *json.Number `json:"value"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// ParsePayload decodes a bare number ("250") or a JSON object
// ({"value": 250, "timestamp": "..."}). Readings without a timestamp are
// stamped with now.
func ParsePayload(ch logic.Channel, payload []byte, now time.Time) (logic.Reading, error) {
	s := strings.TrimSpace(string(payload))
	if s == "" {
		return logic.Reading{}, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	r := logic.Reading{Channel: ch, Timestamp: now}

	if !strings.HasPrefix(s, "{") {
		v, err := parseValue(s)
		if err != nil {
			return logic.Reading{}, err
		}
		r.Value = v
		return r, nil
	}

	var p Payload
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return logic.Reading{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Value == nil {
		return logic.Reading{}, fmt.Errorf("%w: missing value", ErrInvalidPayload)
	}
	v, err := parseValue(p.Value.String())
	if err != nil {
		return logic.Reading{}, err
	}
	r.Value = v

	if p.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			return logic.Reading{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidPayload, err)
		}
		r.Timestamp = ts
	}
	return r, nil
}

// parseValue accepts integers and finite floats, rounding the latter.
func parseValue(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: value %q", ErrInvalidPayload, s)
	}
	return int(math.Round(f)), nil
}

// dispatcher turns broker messages into readings. It is shared by the real
// and fake subscribers so both follow the same drop rules.
type dispatcher struct {
	topics   map[string]logic.Channel
	out      chan<- logic.Reading
	logger   logrus.FieldLogger
	recorder Recorder
	now      func() time.Time
}

func (d *dispatcher) handle(topic string, payload []byte) {
	ch, ok := d.topics[topic]
	if !ok {
		d.logger.WithField("topic", topic).Debug("Ignoring message on unknown topic")
		return
	}

	r, err := ParsePayload(ch, payload, d.now())
	if err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"topic":   topic,
			"payload": string(payload),
		}).Warn("Dropping unparseable reading")
		if d.recorder != nil {
			d.recorder.Dropped(ch, metrics.ReasonParse)
		}
		return
	}

	select {
	case d.out <- r:
	default:
		d.logger.WithFields(logrus.Fields{
			"channel": ch,
			"value":   r.Value,
		}).Warn("Reading queue full, dropping reading")
		if d.recorder != nil {
			d.recorder.QueueDrop(SourceName)
		}
	}
}
