package mqtt

import (
	"context"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
)

// client implements the Client interface on paho.
type client struct {
	config    Config
	metrics   Metrics
	log       logger.Logger
	newClient func(*paho.ClientOptions) paho.Client

	mu       sync.Mutex
	internal paho.Client
}

// NewClient creates a new MQTT client from settings. metrics may be nil.
func NewClient(settings *conf.Settings, metrics Metrics) (Client, error) {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.Main.Name
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.Retain = settings.MQTT.Retain
	if settings.MQTT.Topic != "" {
		cfg.Topic = settings.MQTT.Topic
	}
	return newClient(cfg, metrics, paho.NewClient)
}

func newClient(cfg Config, metrics Metrics, factory func(*paho.ClientOptions) paho.Client) (*client, error) {
	u, err := url.Parse(cfg.Broker)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("invalid broker URL %q", cfg.Broker).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &client{config: cfg, metrics: metrics, log: GetLogger(), newClient: factory}, nil
}

// Connect establishes the broker connection. paho reconnects on its own
// after a connection loss.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectInterval)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internal = c.newClient(opts)

	token := c.internal.Connect()
	if err := waitToken(ctx, token, c.config.ConnectTimeout); err != nil {
		c.setConnected(false)
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("broker", c.config.Broker).
			Build()
	}
	c.setConnected(true)
	return nil
}

// Publish sends payload to topic.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	token := internal.Publish(topic, 1, c.config.Retain, payload)
	if err := waitToken(ctx, token, c.config.PublishTimeout); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal != nil && c.internal.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internal == nil {
		return
	}
	c.internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.internal = nil
	c.setConnected(false)
}

func (c *client) onConnect(paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.setConnected(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
	c.setConnected(false)
}

func (c *client) setConnected(connected bool) {
	if c.metrics != nil {
		c.metrics.SetConnected(SinkName, connected)
	}
}

// waitToken waits for token completion, the timeout, or ctx.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.NewStd("operation timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}
