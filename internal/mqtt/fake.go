package mqtt

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/zonelight/internal/logic"
)

// FakeSubscriber is a test double. Messages are injected with Inject and go
// through the same parsing and drop rules as the real subscriber.
type FakeSubscriber struct {
	// StartError, if set, will be returned by Start.
	StartError error

	// Started tracks if Start was called successfully.
	Started bool

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	d *dispatcher
}

// NewFakeSubscriber creates a fake listening on the topics under prefix.
// now stamps readings that carry no timestamp.
func NewFakeSubscriber(prefix string, recorder Recorder, logger logrus.FieldLogger, now func() time.Time) *FakeSubscriber {
	return &FakeSubscriber{
		d: &dispatcher{
			topics:   Topics(prefix),
			logger:   logger,
			recorder: recorder,
			now:      now,
		},
	}
}

// Start records the output channel.
func (f *FakeSubscriber) Start(out chan<- logic.Reading) error {
	if f.StartError != nil {
		return f.StartError
	}
	f.d.out = out
	f.Started = true
	f.Connected = true
	return nil
}

// Inject delivers a message as if it arrived from the broker.
func (f *FakeSubscriber) Inject(topic string, payload []byte) {
	f.d.handle(topic, payload)
}

// Close marks the subscriber as closed.
func (f *FakeSubscriber) Close() error {
	f.Closed = true
	f.Connected = false
	return nil
}

// IsConnected reports whether the fake subscriber is "connected".
func (f *FakeSubscriber) IsConnected() bool {
	return f.Connected
}
