// Package notification sends violation alerts through shoutrrr services
// such as Telegram, Discord or generic webhooks.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"text/template"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/detection"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
	"github.com/campusfit/campusfit-go/internal/ratetracker"
)

// SinkName labels push deliveries in metrics and logs.
const SinkName = "shoutrrr"

const defaultTitle = "Dress code violation"

var messageTemplate = template.Must(template.New("alert").Parse(
	`{{.Category}} violation{{if .Label}} ({{.Label}}){{end}} on camera {{.CameraNumber}} at {{.Date}} {{.Time}}` +
		`{{if .Node}} ({{.Node}}){{end}}. {{.HourlyCount}} in the last hour.` +
		`{{if .ImageRef}} Evidence: {{.ImageRef}}{{end}}`))

type messageData struct {
	Node         string
	Category     string
	Label        string
	CameraNumber string
	Date         string
	Time         string
	ImageRef     string
	HourlyCount  int
}

// Metrics receives delivery measurements.
type Metrics interface {
	RecordDelivery(sink string, err error, elapsed time.Duration)
}

// Sender delivers alerts to every configured shoutrrr URL.
type Sender struct {
	node    string
	urls    []string
	timeout time.Duration
	metrics Metrics
	log     logger.Logger

	mu     sync.Mutex
	router *router.ServiceRouter
}

// NewSender validates urls and builds the shoutrrr router. metrics may be nil.
func NewSender(node string, urls []string, timeout time.Duration, metrics Metrics) (*Sender, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	r, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(errors.NewStd(errors.ScrubURLs(err.Error()))).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		r.Timeout = timeout
	}
	r.SetLogger(log.New(io.Discard, "", 0))

	return &Sender{
		node:    node,
		urls:    slices.Clone(urls),
		timeout: timeout,
		metrics: metrics,
		log:     logger.Global().Module("notification"),
		router:  r,
	}, nil
}

// NewSenderFromSettings builds a Sender from configuration.
func NewSenderFromSettings(settings *conf.Settings, metrics Metrics) (*Sender, error) {
	return NewSender(settings.Main.Name, settings.Notification.URLs, settings.Notification.Timeout, metrics)
}

// SetLogger routes service output, e.g. for the logger:// service.
func (s *Sender) SetLogger(l *log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.router.SetLogger(l)
}

// Name identifies the sink.
func (s *Sender) Name() string { return SinkName }

// Send notifies every service about v.
func (s *Sender) Send(ctx context.Context, v *datastore.ViolationRecord, state ratetracker.State) error {
	start := time.Now()
	err := s.send(ctx, v, state)
	if s.metrics != nil {
		s.metrics.RecordDelivery(SinkName, err, time.Since(start))
	}
	return err
}

func (s *Sender) send(ctx context.Context, v *datastore.ViolationRecord, state ratetracker.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := FormatMessage(s.node, v, state)
	if err != nil {
		return err
	}

	params := stypes.Params{}
	params.SetTitle(defaultTitle)

	s.mu.Lock()
	errs := s.router.Send(msg, &params)
	s.mu.Unlock()

	var failed []string
	for _, e := range errs {
		if e != nil {
			failed = append(failed, errors.ScrubURLs(e.Error()))
		}
	}
	if len(failed) > 0 {
		return errors.New(errors.NewStd(strings.Join(failed, "; "))).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("failed_services", len(failed)).
			Context("total_services", len(s.urls)).
			Build()
	}
	return nil
}

// FormatMessage renders the alert text for v.
func FormatMessage(node string, v *datastore.ViolationRecord, state ratetracker.State) (string, error) {
	var buf bytes.Buffer
	err := messageTemplate.Execute(&buf, messageData{
		Node:         node,
		Category:     v.Category,
		Label:        detection.DisplayLabel(v.RawLabel),
		CameraNumber: v.CameraNumber,
		Date:         v.Date,
		Time:         v.Time,
		ImageRef:     v.ImageRef,
		HourlyCount:  state.HourlyCount,
	})
	if err != nil {
		return "", fmt.Errorf("render alert message: %w", err)
	}
	return buf.String(), nil
}
