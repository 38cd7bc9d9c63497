package ingest

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfit/campusfit-go/internal/detection"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/httpclient"
	"github.com/campusfit/campusfit-go/internal/logger"
)

const feedURL = "http://detector.local:5000/api/detection"

const violationBody = `{
	"type": "violation",
	"data": {
		"camera_number": "1",
		"date": "2024-01-03",
		"time": "08:15:30",
		"violation": "no_sleeves",
		"violation_id": "VIO010324ABCD",
		"url": "https://storage.local/violations/VIO010324ABCD.jpg",
		"status": "Pending",
		"confidence": 0.91
	}
}`

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObservePoll(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func newTestPoller(t *testing.T, buf *bytes.Buffer, obs Observer) (*Poller, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{DefaultTimeout: time.Second, Transport: mock})
	opts := []Option{WithLogger(logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC))}
	if obs != nil {
		opts = append(opts, WithObserver(obs))
	}
	return NewPoller(feedURL, client, opts...), mock
}

func TestParseResponse_Violation(t *testing.T) {
	t.Parallel()

	ev, err := ParseResponse([]byte(violationBody))
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, detection.Event{
		SourceID:     "VIO010324ABCD",
		Date:         "2024-01-03",
		Time:         "08:15:30",
		CameraNumber: "1",
		RawLabel:     "no_sleeves",
		ImageRef:     "https://storage.local/violations/VIO010324ABCD.jpg",
		Confidence:   0.91,
		Kind:         detection.KindViolation,
	}, *ev)
}

func TestParseResponse_Uniform(t *testing.T) {
	t.Parallel()

	ev, err := ParseResponse([]byte(`{"type":"uniform","data":{"camera_number":"2","date":"2024-01-03","time":"09:00:00","detection":"pe_unif_f","detection_id":"DET010324WXYZ","url":"u","status":"Detected"}}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, detection.KindNonViolation, ev.Kind)
	assert.Equal(t, "DET010324WXYZ", ev.SourceID)
	assert.Equal(t, "pe_unif_f", ev.RawLabel)
}

func TestParseResponse_NoEvent(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"type":"none"}`, `{"status":"no detection"}`, `{}`} {
		ev, err := ParseResponse([]byte(body))
		require.NoError(t, err, body)
		assert.Nil(t, ev, body)
	}
}

func TestParseResponse_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":     `<html>`,
		"missing id":   `{"type":"violation","data":{"date":"2024-01-03","time":"08:00:00"}}`,
		"missing data": `{"type":"uniform"}`,
		"bad date":     `{"type":"violation","data":{"violation_id":"V1","date":"03/01/2024","time":"08:00:00"}}`,
		"bad time":     `{"type":"violation","data":{"violation_id":"V1","date":"2024-01-03","time":"8am"}}`,
		"unknown type": `{"type":"telemetry"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ev, err := ParseResponse([]byte(body))
			require.Error(t, err)
			assert.Nil(t, ev)
		})
	}

	_, err := ParseResponse([]byte(`{"type":"telemetry"}`))
	assert.True(t, errors.IsValidation(err))
}

func TestPoller_PollOnceReturnsEvent(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	p, mock := newTestPoller(t, &bytes.Buffer{}, obs)
	mock.RegisterResponder(http.MethodGet, feedURL, httpmock.NewStringResponder(http.StatusOK, violationBody))

	ev, ok := p.PollOnce(context.Background())
	require.True(t, ok)
	assert.Equal(t, "VIO010324ABCD", ev.SourceID)
	assert.Equal(t, []string{PollOutcomeEvent}, obs.outcomes)
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestPoller_PollOnceEmpty(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	p, mock := newTestPoller(t, &bytes.Buffer{}, obs)
	mock.RegisterResponder(http.MethodGet, feedURL, httpmock.NewStringResponder(http.StatusOK, `{"type":"none"}`))

	ev, ok := p.PollOnce(context.Background())
	assert.False(t, ok)
	assert.Nil(t, ev)
	assert.Equal(t, []string{PollOutcomeEmpty}, obs.outcomes)
}

func TestPoller_TransportFailureIsLoggedAndSwallowed(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	obs := &recordingObserver{}
	p, mock := newTestPoller(t, buf, obs)
	mock.RegisterResponder(http.MethodGet, feedURL, httpmock.NewErrorResponder(assert.AnError))

	for range 3 {
		ev, ok := p.PollOnce(context.Background())
		assert.False(t, ok)
		assert.Nil(t, ev)
	}

	assert.Equal(t, []string{PollOutcomeFailure, PollOutcomeFailure, PollOutcomeFailure}, obs.outcomes)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("detection poll failed")), "repeated failures are rate limited")
}

func TestPoller_HTTPErrorStatus(t *testing.T) {
	t.Parallel()

	p, mock := newTestPoller(t, &bytes.Buffer{}, nil)
	mock.RegisterResponder(http.MethodGet, feedURL, httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

	_, err := p.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}
