package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/zonelight/internal/logic"
)

const (
	connectTimeout   = 10 * time.Second
	subscribeTimeout = 5 * time.Second
)

// Options configures the real subscriber.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	Recorder    Recorder
}

// RealSubscriber reads from an actual MQTT broker.
type RealSubscriber struct {
	client paho.Client
	d      *dispatcher
	logger logrus.FieldLogger
}

// NormalizeBroker rewrites mqtt:// and mqtts:// to the tcp:// and ssl://
// schemes paho understands.
func NormalizeBroker(broker string) string {
	switch {
	case strings.HasPrefix(broker, "mqtt://"):
		return "tcp://" + strings.TrimPrefix(broker, "mqtt://")
	case strings.HasPrefix(broker, "mqtts://"):
		return "ssl://" + strings.TrimPrefix(broker, "mqtts://")
	}
	return broker
}

// NewRealSubscriber prepares a client. Nothing is sent until Start.
func NewRealSubscriber(opts Options, logger logrus.FieldLogger) (*RealSubscriber, error) {
	parsed, err := url.Parse(opts.Broker)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %w", err)
	}

	s := &RealSubscriber{
		d: &dispatcher{
			topics:   Topics(opts.TopicPrefix),
			logger:   logger,
			recorder: opts.Recorder,
			now:      time.Now,
		},
		logger: logger,
	}

	co := paho.NewClientOptions().
		AddBroker(NormalizeBroker(opts.Broker)).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetMaxReconnectInterval(10 * time.Second).
		SetOrderMatters(true)

	switch parsed.Scheme {
	case "ssl", "mqtts", "wss":
		co.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	username, password := opts.Username, opts.Password
	if parsed.User != nil && username == "" {
		username = parsed.User.Username()
		password, _ = parsed.User.Password()
	}
	if username != "" {
		co.SetUsername(username)
		co.SetPassword(password)
	}

	co.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.WithError(err).Warn("MQTT connection lost")
	})
	co.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Debug("MQTT reconnecting...")
	})
	// Subscriptions do not survive a clean session, so subscribe on every connect.
	co.SetOnConnectHandler(func(c paho.Client) {
		s.subscribe(c)
	})

	s.client = paho.NewClient(co)
	return s, nil
}

func (s *RealSubscriber) subscribe(c paho.Client) {
	filters := make(map[string]byte, len(s.d.topics))
	for topic := range s.d.topics {
		filters[topic] = 0
	}
	token := c.SubscribeMultiple(filters, func(_ paho.Client, msg paho.Message) {
		s.d.handle(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		s.logger.Error("MQTT subscribe timed out")
		return
	}
	if err := token.Error(); err != nil {
		s.logger.WithError(err).Error("MQTT subscribe failed")
		return
	}
	s.logger.WithField("topics", len(filters)).Info("MQTT subscribed")
}

// Start connects and subscribes. A timeout is returned as an error but the
// client keeps retrying in the background.
func (s *RealSubscriber) Start(out chan<- logic.Reading) error {
	s.d.out = out

	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connection timeout after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// IsConnected reports whether the client currently has a live connection.
func (s *RealSubscriber) IsConnected() bool {
	return s.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (s *RealSubscriber) Close() error {
	s.client.Disconnect(1000) // 1 second timeout
	return nil
}
