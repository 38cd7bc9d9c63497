package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfit/campusfit-go/internal/analytics"
	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/evidence"
	"github.com/campusfit/campusfit-go/internal/monitor"
	"github.com/campusfit/campusfit-go/internal/review"
)

var testToday = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

type fakeMonitor struct {
	mu      sync.Mutex
	removed []string
	updated []string
}

func (f *fakeMonitor) Snapshot() monitor.Snapshot {
	return monitor.Snapshot{HourlyCount: 2, IsActive: true}
}

func (f *fakeMonitor) ViolationRemoved(id, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
}

func (f *fakeMonitor) ViolationUpdated(v *datastore.ViolationRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, v.ID)
}

type testEnv struct {
	echo    *echo.Echo
	store   datastore.Interface
	reviews *review.Manager
	monitor *fakeMonitor
}

func setupTestEnvironment(t *testing.T) *testEnv {
	t.Helper()
	settings := &conf.Settings{}
	settings.Main.Timezone = "UTC"
	settings.Review.DefaultReviewer = "staff"
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = ":memory:"
	settings.Output.Retry.MaxAttempts = 1

	store, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	ev, err := evidence.New(t.TempDir(), "uploads", 1<<20)
	require.NoError(t, err)

	reviews := review.NewManager(store, review.Options{Now: func() time.Time { return testToday }})
	mon := &fakeMonitor{}
	e := echo.New()
	New(e, store, reviews, settings,
		WithMonitor(mon),
		WithEvidence(ev),
		WithMetricsHandler(promhttp.Handler()),
		WithClock(func() time.Time { return testToday }))

	return &testEnv{echo: e, store: store, reviews: reviews, monitor: mon}
}

func (env *testEnv) do(t *testing.T, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) createViolation(t *testing.T, sourceID, date string) *datastore.ViolationRecord {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", date+" 09:00:00")
	require.NoError(t, err)
	rec, _, err := env.reviews.Create(t.Context(), &datastore.ViolationRecord{
		SourceID:  sourceID,
		Category:  "Cap",
		RawLabel:  "cap",
		Date:      date,
		Time:      "09:00:00",
		Timestamp: ts,
		ImageRef:  "/violations/" + sourceID + ".jpg",
	})
	require.NoError(t, err)
	return rec
}

func studentBody(number string) review.StudentDetails {
	return review.StudentDetails{
		StudentNumber: number,
		StudentName:   "Juan Dela Cruz",
		Department:    "CCS",
		Program:       "Computer Science",
		YearLevel:     "2nd Year",
		Date:          "2025-01-10",
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestMonitorState(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)

	rec := env.do(t, http.MethodGet, "/api/v2/monitor/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[monitor.Snapshot](t, rec)
	assert.Equal(t, 2, snap.HourlyCount)
	assert.True(t, snap.IsActive)
}

func TestApproveViolation(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	v := env.createViolation(t, "src-1", "2025-01-10")

	rec := env.do(t, http.MethodPost, "/api/v2/violations/"+v.ID+"/approve", studentBody("2021001"), ReviewerHeader, "guard-7")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[datastore.ViolationRecord](t, rec)
	assert.Equal(t, datastore.StatusApproved, got.Status)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, "guard-7", *got.ReviewedBy)
	assert.Equal(t, []string{v.ID}, env.monitor.updated)

	rec = env.do(t, http.MethodPost, "/api/v2/violations/"+v.ID+"/approve", studentBody("2021001"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v2/violations/"+v.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApproveViolation_FieldErrors(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	v := env.createViolation(t, "src-2", "2025-01-10")

	rec := env.do(t, http.MethodPost, "/api/v2/violations/"+v.ID+"/approve", studentBody("12AB345"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Contains(t, resp.Fields, "studentNumber")
	assert.NotEmpty(t, resp.CorrelationID)

	rec = env.do(t, http.MethodGet, "/api/v2/violations/"+v.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, datastore.StatusPending, decode[datastore.ViolationRecord](t, rec).Status)
}

func TestApproveViolation_DefaultReviewer(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	v := env.createViolation(t, "src-3", "2025-01-10")

	rec := env.do(t, http.MethodPost, "/api/v2/violations/"+v.ID+"/approve", studentBody("2021002"))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[datastore.ViolationRecord](t, rec)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, "staff", *got.ReviewedBy)
}

func TestDenyViolation(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	v := env.createViolation(t, "src-4", "2025-01-10")

	rec := env.do(t, http.MethodDelete, "/api/v2/violations/"+v.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{v.ID}, env.monitor.removed)

	rec = env.do(t, http.MethodGet, "/api/v2/violations/"+v.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v2/violations/"+v.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListViolations(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	env.createViolation(t, "a", "2025-01-08")
	env.createViolation(t, "b", "2025-01-10")

	rec := env.do(t, http.MethodGet, "/api/v2/violations?start=2025-01-09&end=2025-01-10&status=Pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recs := decode[[]datastore.ViolationRecord](t, rec)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].SourceID)

	rec = env.do(t, http.MethodGet, "/api/v2/violations?start=2025-01-10&end=2025-01-01", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v2/violations?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConcernLifecycle(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)

	rec := env.do(t, http.MethodPost, "/api/v2/concerns", review.Submission{
		SubjectID:   "2021001",
		Kind:        datastore.KindConcern,
		Category:    "Facility Issue",
		Description: "Broken locker",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[datastore.ConcernRecord](t, rec)
	assert.Equal(t, review.StatusPending, created.Status)

	rec = env.do(t, http.MethodPost, "/api/v2/concerns", review.Submission{Kind: datastore.KindConcern})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v2/concerns?subject=2021001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]datastore.ConcernRecord](t, rec), 1)

	path := "/api/v2/concerns/" + created.ID
	rec = env.do(t, http.MethodPatch, path+"/review", ReviewUpdateRequest{Status: review.StatusApproved})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = env.do(t, http.MethodPatch, path+"/review", ReviewUpdateRequest{Status: review.StatusResolved, Notes: "fixed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, review.StatusResolved, decode[datastore.ConcernRecord](t, rec).Status)

	rec = env.do(t, http.MethodDelete, path, DeleteConfirmRequest{Token: "confirm"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/delete-request", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodDelete, path, DeleteConfirmRequest{Token: "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = env.do(t, http.MethodDelete, path, DeleteConfirmRequest{Token: "CONFIRM"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadEvidence(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "permit.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("image"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("folder", "permits"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/uploads", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[UploadResponse](t, rec)
	assert.True(t, strings.HasPrefix(resp.Path, "/permits/permit_"))
	assert.True(t, strings.HasSuffix(resp.Path, ".jpg"))

	req = httptest.NewRequest(http.MethodPost, "/api/v2/uploads", strings.NewReader(""))
	rec = httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	env.createViolation(t, "d1", "2025-01-08")
	env.createViolation(t, "d2", "2025-01-09")
	env.createViolation(t, "d3", "2025-01-10")
	env.createViolation(t, "d4", "2025-01-10")

	rec := env.do(t, http.MethodGet, "/api/v2/analytics/timeseries?start=2025-01-04&end=2025-01-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]analytics.DailyCounts](t, rec), 7)

	rec = env.do(t, http.MethodGet, "/api/v2/analytics/ranking?timeframe=week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ranking := decode[[]analytics.NamedCount](t, rec)
	require.Len(t, ranking, 1)
	assert.Equal(t, 4, ranking[0].Value)

	rec = env.do(t, http.MethodGet, "/api/v2/analytics/change", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	change := decode[ChangeResponse](t, rec)
	assert.Equal(t, "2025-01-10", change.Today)
	assert.Equal(t, 2, change.Violations.TodayCount)
	assert.Equal(t, 1, change.Violations.YesterdayCount)
	assert.True(t, change.Violations.Increased)

	rec = env.do(t, http.MethodGet, "/api/v2/analytics/peak?start=2025-01-04&end=2025-01-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	peak := decode[PeakResponse](t, rec)
	assert.Equal(t, "2025-01-10", peak.Date)
	assert.Equal(t, 2, peak.Count)
	assert.Equal(t, 1, peak.AveragePerDay)

	rec = env.do(t, http.MethodGet, "/api/v2/analytics/dashboard?timeframe=week&mode=year", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[analytics.Dashboard](t, rec)
	assert.Equal(t, 4, dash.TotalViolations)
	assert.Equal(t, analytics.ModeYear, dash.ComplianceMode)

	rec = env.do(t, http.MethodGet, "/api/v2/analytics/compliance?mode=decade", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v2/analytics/dashboard?timeframe=week&mode=bogus", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotContains(t, rec.Body.String(), "complianceMode")
	rec = env.do(t, http.MethodGet, "/api/v2/analytics/ratio?start=bad&end=2025-01-10", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	rec := env.do(t, http.MethodGet, "/api/v2/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "unknown", body["version"])
}
