// Package bus connects the skill to the assistant's MQTT broker.
//
// Intents arrive as JSON on the intent topic and are decoded on the paho callback goroutine before
// being handed to the subscriber. Responses are encoded as JSON and published to the topic the
// request asked for.
package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qos               = 1
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250
)

// conn is the part of [mqtt.Client] the bus uses.
type conn interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// Client subscribes to intents and publishes responses over MQTT.
type Client struct {
	conn   conn
	logger *log.Logger

	mu   sync.Mutex
	subs map[string]mqtt.MessageHandler
}

// options builds the paho options for cfg. Subscriptions are restored on every (re)connect.
func (c *Client) options(cfg shared.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(cfg.BrokerURL())
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "spotskill-" + shared.GenerateID()[:8]
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOrderMatters(false)

	opts.OnConnect = func(mqtt.Client) {
		c.logger.Info("connected to broker", "broker", cfg.BrokerURL())
		c.resubscribeAll()
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.logger.Warn("connection to broker lost", "error", err)
	}
	return opts
}

// Connect dials the broker described by cfg.
func Connect(ctx context.Context, cfg shared.MQTTConfig, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	c := newClient(nil, logger)

	mqtt.ERROR = logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel})
	mqtt.CRITICAL = mqtt.ERROR
	mqtt.WARN = logger.StandardLog(log.StandardLogOptions{ForceLevel: log.WarnLevel})

	client := mqtt.NewClient(c.options(cfg))
	c.conn = client

	if err := wait(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %v", shared.ErrServiceUnavailable, cfg.BrokerURL(), err)
	}
	return c, nil
}

func newClient(cn conn, logger *log.Logger) *Client {
	return &Client{
		conn:   cn,
		logger: logger.With("component", "bus"),
		subs:   make(map[string]mqtt.MessageHandler),
	}
}

// Subscribe delivers every decodable intent published on topic to handle.
// Messages that are not valid intents are logged and dropped.
func (c *Client) Subscribe(ctx context.Context, topic string, handle func(models.Intent)) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		intent, err := DecodeIntent(msg.Payload())
		if err != nil {
			c.logger.Warn("dropping malformed intent", "topic", msg.Topic(), "error", err)
			return
		}
		handle(intent)
	}

	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if err := wait(ctx, c.conn.Subscribe(topic, qos, handler)); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	c.logger.Info("subscribed", "topic", topic)
	return nil
}

// Publish sends resp to topic.
func (c *Client) Publish(ctx context.Context, topic string, resp models.Response) error {
	payload, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	if err := wait(ctx, c.conn.Publish(topic, qos, false, payload)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	c.logger.Debug("published response", "topic", topic, "id", resp.ID)
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Disconnect(disconnectQuiesce)
	}
}

func (c *Client) resubscribeAll() {
	c.mu.Lock()
	subs := make(map[string]mqtt.MessageHandler, len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	c.mu.Unlock()

	for topic, h := range subs {
		token := c.conn.Subscribe(topic, qos, h)
		if !token.WaitTimeout(connectTimeout) {
			c.logger.Error("timed out resubscribing", "topic", topic)
			continue
		}
		if err := token.Error(); err != nil {
			c.logger.Error("failed to resubscribe", "topic", topic, "error", err)
		}
	}
}

// DecodeIntent parses an intent analysis result.
func DecodeIntent(payload []byte) (models.Intent, error) {
	var intent models.Intent
	if err := json.Unmarshal(payload, &intent); err != nil {
		return models.Intent{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return intent, nil
}

// EncodeResponse serializes a response for publishing.
func EncodeResponse(resp models.Response) ([]byte, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return payload, nil
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
