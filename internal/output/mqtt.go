// Package output delivers analysis results outside the process: MQTT, a
// WebSocket overlay feed and a speech command.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bdougie/mira/internal/analyzer"
	"github.com/bdougie/mira/internal/models"
)

// ErrNotConnected is returned by Publish before Connect succeeds or while
// the client is reconnecting.
var ErrNotConnected = errors.New("mqtt not connected")

// MQTTConfig configures the result publisher.
type MQTTConfig struct {
	// Broker is host:port; tcp:// is added when no scheme is given.
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Retain      bool

	// RetryInterval is the wait between connection attempts. Default 2s.
	RetryInterval time.Duration
}

// MQTTPublisher publishes each result to <prefix>/<session>/<analyzer>.
type MQTTPublisher struct {
	cfg     MQTTConfig
	session string
	logger  *slog.Logger
	client  mqtt.Client

	mu        sync.RWMutex
	connected bool

	published atomic.Uint64
	errors    atomic.Uint64
}

func NewMQTTPublisher(cfg MQTTConfig, session string, logger *slog.Logger) *MQTTPublisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "mira"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "mira-" + session
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTPublisher{cfg: cfg, session: session, logger: logger}
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Connect establishes connection to the MQTT broker
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(p.cfg.RetryInterval)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		p.logger.Info("mqtt connection established", "broker", p.cfg.Broker, "client_id", p.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		p.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", p.cfg.Broker)
	}

	p.client = mqtt.NewClient(opts)
	p.logger.Info("connecting to mqtt broker", "broker", p.cfg.Broker)

	// A failed Connect must stop paho's background retries.
	token := p.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		p.client.Disconnect(0)
		return ctx.Err()
	case <-time.After(5 * time.Second):
		p.client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		p.client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.setConnected(true)
	return nil
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *MQTTPublisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// Topic returns the topic results of analyzerName are published on.
func (p *MQTTPublisher) Topic(analyzerName string) string {
	return fmt.Sprintf("%s/%s/%s", p.cfg.TopicPrefix, p.session, analyzerName)
}

// Payload encodes res as published.
func (p *MQTTPublisher) Payload(res models.Result) ([]byte, error) {
	return json.Marshal(res.Record(p.session))
}

// Publish publishes one result.
func (p *MQTTPublisher) Publish(res models.Result) error {
	if !p.isConnected() {
		p.errors.Add(1)
		return ErrNotConnected
	}

	topic := p.Topic(res.Analyzer)
	payload, err := p.Payload(res)
	if err != nil {
		p.errors.Add(1)
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
	if !token.WaitTimeout(2 * time.Second) {
		p.errors.Add(1)
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.errors.Add(1)
		return fmt.Errorf("publish failed: %w", err)
	}

	p.published.Add(1)
	p.logger.Debug("result published", "topic", topic, "qos", p.cfg.QoS, "size", len(payload))
	return nil
}

// Listener adapts Publish to the analyzer listener contract.
func (p *MQTTPublisher) Listener() analyzer.Listener {
	return func(res models.Result) {
		if err := p.Publish(res); err != nil {
			p.logger.Warn("mqtt publish failed", "seq", res.Seq, "error", err)
		}
	}
}

// MQTTStats counts publish outcomes.
type MQTTStats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

func (p *MQTTPublisher) Stats() MQTTStats {
	return MQTTStats{Connected: p.isConnected(), Published: p.published.Load(), Errors: p.errors.Load()}
}

// Close disconnects, allowing 250ms for in-flight publishes.
func (p *MQTTPublisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(250)
	}
	p.setConnected(false)
	return nil
}
