package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/ratetracker"
)

// AlertPayload is the JSON message published for a new violation.
type AlertPayload struct {
	Node         string    `json:"node"`
	ID           string    `json:"id"`
	SourceID     string    `json:"sourceId"`
	Category     string    `json:"category"`
	CameraNumber string    `json:"cameraNumber"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	Timestamp    time.Time `json:"timestamp"`
	ImageRef     string    `json:"imageRef"`
	HourlyCount  int       `json:"hourlyCount"`
}

// Publisher sends violation alerts over a Client.
type Publisher struct {
	client  Client
	topic   string
	node    string
	metrics Metrics
}

// NewPublisher returns a Publisher for topic. metrics may be nil.
func NewPublisher(client Client, topic, node string, metrics Metrics) *Publisher {
	return &Publisher{client: client, topic: topic, node: node, metrics: metrics}
}

// Name identifies the sink.
func (p *Publisher) Name() string { return SinkName }

// Send publishes v as JSON. A disconnected client gets one connect attempt.
func (p *Publisher) Send(ctx context.Context, v *datastore.ViolationRecord, state ratetracker.State) error {
	start := time.Now()
	err := p.send(ctx, v, state)
	if p.metrics != nil {
		p.metrics.RecordDelivery(SinkName, err, time.Since(start))
	}
	return err
}

func (p *Publisher) send(ctx context.Context, v *datastore.ViolationRecord, state ratetracker.State) error {
	payload, err := json.Marshal(AlertPayload{
		Node:         p.node,
		ID:           v.ID,
		SourceID:     v.SourceID,
		Category:     v.Category,
		CameraNumber: v.CameraNumber,
		Date:         v.Date,
		Time:         v.Time,
		Timestamp:    v.Timestamp,
		ImageRef:     v.ImageRef,
		HourlyCount:  state.HourlyCount,
	})
	if err != nil {
		return errors.New(err).Component("mqtt").Category(errors.CategoryMQTTPublish).Build()
	}

	if !p.client.IsConnected() {
		if err := p.client.Connect(ctx); err != nil {
			return err
		}
	}
	return p.client.Publish(ctx, p.topic, payload)
}
