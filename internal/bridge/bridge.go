// Package bridge mirrors rig connection state and inbound frames to an MQTT
// broker so other tools on the bench can follow a test run.
package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tturner/brushrig/internal/config"
	"github.com/tturner/brushrig/internal/logging"
	"github.com/tturner/brushrig/internal/protocol"
	"github.com/tturner/brushrig/internal/rigconn"
)

const (
	publishTimeout = 2 * time.Second
	disconnectWait = 250 // milliseconds
	queueSize      = 64
)

// Publisher is the part of an MQTT client the bridge needs. mqtt.Client
// satisfies it.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// StatusPayload is published (retained) on every state change.
type StatusPayload struct {
	State     string `json:"state"`
	URL       string `json:"url,omitempty"`
	Timestamp string `json:"timestamp"`
}

// InboundPayload wraps one frame received from the rig.
type InboundPayload struct {
	Type       string          `json:"type,omitempty"`
	Status     string          `json:"status"`
	Frame      json.RawMessage `json:"frame,omitempty"`
	Text       string          `json:"text,omitempty"`
	ReceivedAt string          `json:"receivedAt"`
}

type event struct {
	topic    string
	retained bool
	payload  any
}

// Bridge publishes under a topic prefix. Updates from an attached manager go
// through a bounded queue drained by one worker, so a slow or absent broker
// never holds up the manager's callbacks. Updates are dropped when the queue
// is full.
type Bridge struct {
	pub    Publisher
	prefix string
	url    string
	logger *logging.Logger

	queue     chan event
	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once

	mu         sync.Mutex
	disconnect func()
}

// ClientID returns a unique MQTT client identifier.
func ClientID() string {
	return "brushrig_" + uuid.NewString()
}

// New wraps an existing publisher.
func New(pub Publisher, prefix, url string, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.Nop()
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = "brushrig"
	}
	return &Bridge{
		pub:    pub,
		prefix: prefix,
		url:    url,
		logger: logger,
		queue:  make(chan event, queueSize),
		stop:   make(chan struct{}),
	}
}

// Connect dials the broker described by cfg and returns a bridge publishing
// through it.
func Connect(cfg config.MQTTConfig, rigURL string, logger *logging.Logger) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker not configured")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(ClientID())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT: connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("MQTT: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		// SetConnectRetry keeps trying in the background.
		logger.Info("MQTT: broker %s not reachable yet, retrying", cfg.Broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", err)
	}

	b := New(client, cfg.TopicPrefix, rigURL, logger)
	b.disconnect = func() { client.Disconnect(disconnectWait) }
	return b, nil
}

// Attach subscribes the bridge to a connection manager. The callbacks only
// enqueue; publishing happens on the bridge's worker.
func (b *Bridge) Attach(m *rigconn.Manager) {
	b.startOnce.Do(func() { go b.run() })
	m.OnStatus(func(s rigconn.State) {
		b.enqueue(b.StatusTopic(), true, b.statusPayload(s))
	})
	m.OnMessage(func(in protocol.Inbound) {
		b.enqueue(b.InboundTopic(), false, inboundPayload(in))
	})
}

func (b *Bridge) enqueue(topic string, retained bool, payload any) {
	select {
	case <-b.stop:
		return
	default:
	}
	select {
	case b.queue <- event{topic: topic, retained: retained, payload: payload}:
	default:
		b.logger.Debug("MQTT: queue full, dropping update for %s", topic)
	}
}

func (b *Bridge) run() {
	for {
		select {
		case <-b.stop:
			return
		case ev := <-b.queue:
			_ = b.publish(ev.topic, ev.retained, ev.payload)
		}
	}
}

// StatusTopic is where state changes are published.
func (b *Bridge) StatusTopic() string {
	return b.prefix + "/status"
}

// InboundTopic is where inbound frames are published.
func (b *Bridge) InboundTopic() string {
	return b.prefix + "/inbound"
}

// PublishStatus publishes a retained state change.
func (b *Bridge) PublishStatus(s rigconn.State) error {
	return b.publish(b.StatusTopic(), true, b.statusPayload(s))
}

func (b *Bridge) statusPayload(s rigconn.State) StatusPayload {
	return StatusPayload{
		State:     s.String(),
		URL:       b.url,
		Timestamp: protocol.Timestamp(time.Now()),
	}
}

// PublishInbound publishes one inbound frame. Frames that are not JSON are
// carried as text.
func (b *Bridge) PublishInbound(in protocol.Inbound) error {
	return b.publish(b.InboundTopic(), false, inboundPayload(in))
}

func inboundPayload(in protocol.Inbound) InboundPayload {
	received := in.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	payload := InboundPayload{
		Type:       in.Type,
		Status:     in.Status,
		ReceivedAt: protocol.Timestamp(received),
	}
	if in.Parsed {
		payload.Frame = json.RawMessage(in.Raw)
	} else {
		payload.Text = string(in.Raw)
	}
	return payload
}

func (b *Bridge) publish(topic string, retained bool, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	token := b.pub.Publish(topic, 0, retained, data)
	if !token.WaitTimeout(publishTimeout) {
		b.logger.Debug("MQTT: publish to %s still pending", topic)
		return nil
	}
	if err := token.Error(); err != nil {
		b.logger.Error("MQTT: publish to %s failed: %v", topic, err)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	b.logger.Debug("MQTT: published %d bytes to %s", len(data), topic)
	return nil
}

// Close stops the worker and disconnects from the broker when the bridge
// owns the client. Queued updates are discarded.
func (b *Bridge) Close() {
	b.stopOnce.Do(func() { close(b.stop) })

	b.mu.Lock()
	disconnect := b.disconnect
	b.disconnect = nil
	b.mu.Unlock()
	if disconnect != nil {
		disconnect()
	}
}
