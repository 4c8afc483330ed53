// Package publish forwards gesture events to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/lgr"
)

// Config holds broker options.
type Config struct {
	// Broker is a URL such as tcp://localhost:1883.
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string

	// QoS is the publish quality of service, 0 to 2.
	QoS byte

	// Timeout bounds connect and publish waits.
	Timeout time.Duration
}

// Publisher publishes each event as JSON to <Topic>/<gesture>.
type Publisher struct {
	config Config
	client mqtt.Client

	mu  sync.Mutex
	sub *gesture.Subscription
}

// New creates a Publisher. Call Connect before Attach.
func New(config Config) (*Publisher, error) {
	if config.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if config.QoS > 2 {
		return nil, fmt.Errorf("invalid mqtt qos %d", config.QoS)
	}
	if config.Topic == "" {
		config.Topic = "mudra/gestures"
	}
	if config.ClientID == "" {
		config.ClientID = fmt.Sprintf("mudra-%d", time.Now().Unix())
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(config.Timeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		lgr.Logger.Info("mqtt connected", slog.String("broker", config.Broker))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		lgr.Logger.Warn("mqtt connection lost, reconnecting", slog.Any("error", err))
	}

	return &Publisher{config: config, client: mqtt.NewClient(opts)}, nil
}

// Connect dials the broker.
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(p.config.Timeout) {
		return fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect failed: %w", err)
	}
	return nil
}

// Topic returns the topic an event is published to.
func (p *Publisher) Topic(e gesture.Event) string {
	return p.config.Topic + "/" + topicSegment(e.Gesture)
}

// Attach subscribes the publisher to bus. Repeat events are skipped.
func (p *Publisher) Attach(bus *gesture.Bus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sub != nil {
		p.sub.Cancel()
	}
	p.sub = bus.Subscribe(func(e gesture.Event) {
		if e.Repeat {
			return
		}
		if err := p.Publish(e); err != nil {
			lgr.Logger.Warn("mqtt publish failed", slog.String("gesture", e.Gesture), slog.Any("error", err))
		}
	})
}

// Publish sends e without waiting for the broker to acknowledge it.
// Delivery failures are logged asynchronously.
func (p *Publisher) Publish(e gesture.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}

	topic := p.Topic(e)
	token := p.client.Publish(topic, p.config.QoS, false, payload)
	go func() {
		if !token.WaitTimeout(p.config.Timeout) {
			lgr.Logger.Warn("mqtt publish timeout", slog.String("topic", topic))
			return
		}
		if err := token.Error(); err != nil {
			lgr.Logger.Warn("mqtt publish error", slog.String("topic", topic), slog.Any("error", err))
		}
	}()
	return nil
}

// Close detaches from the bus and disconnects.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.sub != nil {
		p.sub.Cancel()
		p.sub = nil
	}
	p.mu.Unlock()

	if p.client.IsConnected() {
		p.client.Disconnect(1000)
	}
}

// topicSegment turns a gesture name into a single MQTT topic level.
func topicSegment(name string) string {
	if name == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ':
			return '_'
		}
		return r
	}, name)
}
