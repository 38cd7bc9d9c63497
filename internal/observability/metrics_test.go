package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RecordsAndExposes(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Ingest.ObservePoll("event", 3*time.Millisecond)
	m.Ingest.ObservePoll("failure", time.Millisecond)
	m.Ingest.ObserveDecision("duplicate")
	m.Tracker.SetState(4, true, false)
	m.Review.ObserveReview("approve", "conflict")
	m.Datastore.RecordOperation("insert_violation", "success", time.Millisecond)
	m.Datastore.RecordRetry("insert_violation")
	m.Alerts.RecordDelivery("mqtt", errors.New("broker down"), time.Millisecond)
	m.Alerts.SetConnected("mqtt", false)

	assert.InDelta(t, 4, testutil.ToFloat64(m.Tracker.HourlyCount), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Tracker.Active), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.Tracker.Alert), 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	for _, want := range []string{
		`campusfit_ingest_polls_total{outcome="event"} 1`,
		`campusfit_ingest_events_total{outcome="duplicate"} 1`,
		`campusfit_review_actions_total{action="approve",outcome="conflict"} 1`,
		`campusfit_datastore_retries_total{operation="insert_violation"} 1`,
		`campusfit_alert_deliveries_total{sink="mqtt",status="error"} 1`,
		"go_goroutines",
	} {
		assert.Contains(t, text, want)
	}
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	t.Parallel()
	a, err := NewMetrics()
	require.NoError(t, err)
	b, err := NewMetrics()
	require.NoError(t, err)
	assert.NotSame(t, a.Registry(), b.Registry())
}
