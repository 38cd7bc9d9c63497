// Package ingest polls the detection feed and turns each response into at
// most one detection.Event.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/campusfit/campusfit-go/internal/detection"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/httpclient"
	"github.com/campusfit/campusfit-go/internal/logger"
)

// maxResponseBytes caps the feed response size.
const maxResponseBytes = 1 << 20

// Response types sent by the feed.
const (
	TypeViolation = "violation"
	TypeUniform   = "uniform"
	TypeNone      = "none"
)

// Response is the feed polling payload.
type Response struct {
	Type   string        `json:"type"`
	Status string        `json:"status,omitempty"`
	Data   *ResponseData `json:"data,omitempty"`
}

// ResponseData carries one detection. Violations use ViolationID/Violation,
// uniform detections use DetectionID/Detection.
type ResponseData struct {
	ViolationID  string  `json:"violation_id,omitempty"`
	DetectionID  string  `json:"detection_id,omitempty"`
	CameraNumber string  `json:"camera_number"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	Violation    string  `json:"violation,omitempty"`
	Detection    string  `json:"detection,omitempty"`
	URL          string  `json:"url"`
	Status       string  `json:"status"`
	Confidence   float64 `json:"confidence,omitempty"`
}

// Fetcher retrieves the next event from the feed.
type Fetcher interface {
	Fetch(ctx context.Context) (*detection.Event, error)
}

// Observer receives poll outcomes, typically a metrics recorder.
type Observer interface {
	ObservePoll(outcome string, elapsed time.Duration)
}

// Poll outcomes reported to the Observer.
const (
	PollOutcomeEvent   = "event"
	PollOutcomeEmpty   = "empty"
	PollOutcomeFailure = "failure"
)

// Poller fetches from the feed over HTTP. Transport failures are logged at
// most once per failure-log interval and never stop polling.
type Poller struct {
	url      string
	client   *httpclient.Client
	logger   logger.Logger
	observer Observer
	failLog  *rate.Limiter
	now      func() time.Time
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithObserver attaches a poll outcome observer.
func WithObserver(o Observer) Option {
	return func(p *Poller) { p.observer = o }
}

// WithFailureLogInterval sets the minimum gap between transport failure logs.
func WithFailureLogInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.failLog = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// NewPoller creates a poller for url using client.
func NewPoller(url string, client *httpclient.Client, opts ...Option) *Poller {
	p := &Poller{
		url:     url,
		client:  client,
		logger:  logger.Global().Module("ingest"),
		failLog: rate.NewLimiter(rate.Every(30*time.Second), 1),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch performs one request and parses the response. A nil event with a
// nil error means the feed had nothing to report.
func (p *Poller) Fetch(ctx context.Context) (*detection.Event, error) {
	resp, err := p.client.Get(ctx, p.url)
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryNetwork).
			Context("operation", "poll_detection").
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("detection feed returned HTTP %d", resp.StatusCode).
			Component("ingest").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.New(err).Component("ingest").Category(errors.CategoryNetwork).Build()
	}
	return ParseResponse(body)
}

// PollOnce fetches one event. Failures are logged and reported as no event.
func (p *Poller) PollOnce(ctx context.Context) (*detection.Event, bool) {
	start := p.now()
	ev, err := p.Fetch(ctx)
	elapsed := p.now().Sub(start)

	switch {
	case err != nil:
		p.observe(PollOutcomeFailure, elapsed)
		if ctx.Err() == nil && p.failLog.Allow() {
			p.logger.Warn("detection poll failed",
				logger.String("url", p.url),
				logger.Error(err))
		}
		return nil, false
	case ev == nil:
		p.observe(PollOutcomeEmpty, elapsed)
		return nil, false
	default:
		p.observe(PollOutcomeEvent, elapsed)
		p.logger.Debug("detection received",
			logger.String("source_id", ev.SourceID),
			logger.String("kind", string(ev.Kind)),
			logger.String("label", ev.RawLabel))
		return ev, true
	}
}

func (p *Poller) observe(outcome string, elapsed time.Duration) {
	if p.observer != nil {
		p.observer.ObservePoll(outcome, elapsed)
	}
}

// ParseResponse decodes a feed payload. It returns (nil, nil) for
// {"type":"none"} and {"status":"no detection"}.
func ParseResponse(body []byte) (*detection.Event, error) {
	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileParsing).
			Context("operation", "decode_poll_response").
			Build()
	}

	switch strings.ToLower(r.Type) {
	case TypeViolation:
		if r.Data == nil || r.Data.ViolationID == "" {
			return nil, invalidPayload("violation without violation_id")
		}
		return r.Data.event(detection.KindViolation, r.Data.ViolationID, r.Data.Violation)
	case TypeUniform:
		if r.Data == nil || r.Data.DetectionID == "" {
			return nil, invalidPayload("uniform detection without detection_id")
		}
		return r.Data.event(detection.KindNonViolation, r.Data.DetectionID, r.Data.Detection)
	case TypeNone, "":
		return nil, nil
	default:
		return nil, invalidPayload(fmt.Sprintf("unknown response type %q", r.Type))
	}
}

func (d *ResponseData) event(kind detection.Kind, id, label string) (*detection.Event, error) {
	if _, err := time.Parse(detection.DateLayout, d.Date); err != nil {
		return nil, invalidPayload(fmt.Sprintf("invalid date %q", d.Date))
	}
	if _, err := time.Parse(detection.TimeLayout, d.Time); err != nil {
		return nil, invalidPayload(fmt.Sprintf("invalid time %q", d.Time))
	}
	return &detection.Event{
		SourceID:     id,
		Date:         d.Date,
		Time:         d.Time,
		CameraNumber: d.CameraNumber,
		RawLabel:     label,
		ImageRef:     d.URL,
		Confidence:   d.Confidence,
		Kind:         kind,
	}, nil
}

func invalidPayload(msg string) error {
	return errors.New(errors.NewStd(msg)).
		Component("ingest").
		Category(errors.CategoryValidation).
		Build()
}
