// Package mqtt publishes violation alerts to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/campusfit/campusfit-go/internal/logger"
)

// SinkName labels MQTT deliveries in metrics and logs.
const SinkName = "mqtt"

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error
	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// IsConnected returns true if the client is currently connected.
	IsConnected() bool
	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Metrics receives connection and delivery measurements.
type Metrics interface {
	RecordDelivery(sink string, err error, elapsed time.Duration)
	SetConnected(sink string, connected bool)
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // alert topic
	Retain   bool

	ConnectTimeout       time.Duration
	PublishTimeout       time.Duration
	DisconnectTimeout    time.Duration
	MaxReconnectInterval time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		Topic:                "campusfit/violations",
		ConnectTimeout:       30 * time.Second,
		PublishTimeout:       10 * time.Second,
		DisconnectTimeout:    250 * time.Millisecond,
		MaxReconnectInterval: 5 * time.Minute,
	}
}

// GetLogger returns the mqtt module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
