package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sweeney/chamber-logger/internal/logic"
	"github.com/sweeney/chamber-logger/internal/metrics"
)

// ClientConfig configures the broker connection.
type ClientConfig struct {
	Broker      string // paho URL, e.g. tcp://broker.hivemq.com:1883
	ClientID    string // empty generates chamber-logger-<random>
	Username    string
	Password    string
	Topic       string // readings
	StatusTopic string // lifecycle events
	BufferSize  int    // publishes held while disconnected
}

// RealClient subscribes to readings and publishes lifecycle events on an
// actual MQTT broker. Publishes made while the connection is down are held
// in an outbox and replayed on reconnect.
type RealClient struct {
	client    paho.Client
	cfg       ClientConfig
	onReading func(logic.Reading)
	logger    zerolog.Logger

	mu     sync.Mutex
	outbox *outbox
}

// NewRealClient connects to the broker and subscribes to the readings topic.
// onReading is called from the paho goroutine for every decoded reading.
func NewRealClient(cfg ClientConfig, onReading func(logic.Reading), logger zerolog.Logger) (*RealClient, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "chamber-logger-" + uuid.NewString()[:8]
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 64
	}
	logger = logger.With().Str("component", "mqtt").Logger()

	c := &RealClient{
		cfg:       cfg,
		onReading: onReading,
		logger:    logger,
		outbox:    newOutbox(cfg.BufferSize, logger),
	}

	will, err := FormatStatusPayload(StatusEvent{Timestamp: time.Now(), Event: EventOffline, Reason: "connection lost"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(cfg.StatusTopic, string(will), 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// ConnectRetry keeps trying in the background
		logger.Warn().Str("broker", cfg.Broker).Msg("broker not reachable yet, retrying")
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

// onConnect runs on every (re)connect: subscribe, then replay the outbox.
func (c *RealClient) onConnect(client paho.Client) {
	c.logger.Info().Str("broker", c.cfg.Broker).Str("client_id", c.cfg.ClientID).Msg("connected")

	token := client.Subscribe(c.cfg.Topic, 1, c.handleMessage)
	if !token.WaitTimeout(10 * time.Second) {
		c.logger.Error().Str("topic", c.cfg.Topic).Msg("subscribe timeout")
	} else if err := token.Error(); err != nil {
		c.logger.Error().Err(err).Str("topic", c.cfg.Topic).Msg("subscribe failed")
	} else {
		c.logger.Info().Str("topic", c.cfg.Topic).Msg("subscribed")
	}

	c.mu.Lock()
	msgs, dropped := c.outbox.drain()
	c.mu.Unlock()
	if dropped > 0 {
		c.logger.Warn().Int("dropped", dropped).Msg("outbox overflowed while disconnected")
	}
	for _, m := range msgs {
		if err := c.send(m); err != nil {
			c.logger.Warn().Err(err).Str("topic", m.topic).Msg("replay failed")
		}
	}
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.logger.Warn().Err(err).Msg("connection lost")
}

// handleMessage decodes a reading; malformed payloads are logged and dropped.
func (c *RealClient) handleMessage(_ paho.Client, msg paho.Message) {
	reading, err := DecodeReading(msg.Payload())
	if err != nil {
		metrics.IngestMessages.WithLabelValues("invalid").Inc()
		c.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropping malformed reading")
		return
	}
	metrics.IngestMessages.WithLabelValues("ok").Inc()
	c.logger.Debug().Str("topic", msg.Topic()).Msg("reading received")
	c.onReading(reading)
}

// PublishStatus sends a lifecycle event, or holds it until reconnect.
func (c *RealClient) PublishStatus(event StatusEvent) error {
	payload, err := FormatStatusPayload(event)
	if err != nil {
		return fmt.Errorf("format status payload: %w", err)
	}
	msg := outboxMsg{topic: c.cfg.StatusTopic, payload: payload, qos: 1, retained: event.Retained}

	if !c.client.IsConnectionOpen() {
		c.hold(msg)
		return nil
	}
	if err := c.send(msg); err != nil {
		c.hold(msg)
		return err
	}
	return nil
}

func (c *RealClient) hold(msg outboxMsg) {
	c.mu.Lock()
	c.outbox.push(msg)
	n := c.outbox.len()
	c.mu.Unlock()
	c.logger.Debug().Int("held", n).Msg("publish held until reconnect")
}

func (c *RealClient) send(m outboxMsg) error {
	token := c.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is currently open.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000)
	return nil
}
