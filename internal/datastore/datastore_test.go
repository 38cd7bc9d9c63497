package datastore

import (
	"context"
	"database/sql/driver"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = ":memory:"
	settings.Output.Retry = conf.RetrySettings{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	store, err := New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	sqliteStore, ok := store.(*SQLiteStore)
	require.True(t, ok)
	return sqliteStore
}

func newViolation(sourceID, date string) *ViolationRecord {
	ts, _ := time.Parse("2006-01-02 15:04:05", date+" 10:00:00")
	return &ViolationRecord{
		SourceID:     sourceID,
		Category:     "Cap",
		RawLabel:     "cap",
		CameraNumber: "1",
		Date:         date,
		Time:         "10:00:00",
		Timestamp:    ts,
	}
}

func newStudent(violationID string) *DisciplinaryRecord {
	return &DisciplinaryRecord{
		ViolationID:   violationID,
		StudentNumber: "2021001",
		StudentName:   "Juan Dela Cruz",
		Department:    "CCS",
		Program:       "Computer Science",
		YearLevel:     "2nd Year",
		Category:      "Cap",
		Date:          "2025-01-10",
	}
}

type recorderStub struct {
	mu      sync.Mutex
	ops     map[string]int
	retries atomic.Int32
}

func (r *recorderStub) RecordOperation(op, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = map[string]int{}
	}
	r.ops[op+":"+status]++
}

func (r *recorderStub) RecordRetry(string) { r.retries.Add(1) }

func TestNew_RequiresBackend(t *testing.T) {
	t.Parallel()
	_, err := New(&conf.Settings{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestInsertViolation_DefaultsPendingAndRejectsDuplicateSource(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := t.Context()

	v := newViolation("12AB345", "2025-01-10")
	require.NoError(t, store.InsertViolation(ctx, v))
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, StatusPending, v.Status)

	err := store.InsertViolation(ctx, newViolation("12AB345", "2025-01-10"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.True(t, errors.IsConflict(err))

	got, err := store.GetViolationBySourceID(ctx, "12AB345")
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
}

func TestGetViolation_NotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.GetViolation(t.Context(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, errors.IsNotFound(err))
}

func TestApproveViolation_OnlyOnce(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := t.Context()

	v := newViolation("src-1", "2025-01-10")
	require.NoError(t, store.InsertViolation(ctx, v))

	stamp := ReviewStamp{Status: StatusApproved, ReviewedBy: "guard", ReviewedAt: time.Now()}
	rec := newStudent("")
	require.NoError(t, store.ApproveViolation(ctx, v.ID, stamp, rec))
	assert.Equal(t, v.ID, rec.ViolationID)

	got, err := store.GetViolation(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	require.NotNil(t, got.StudentRecordID)
	assert.Equal(t, rec.ID, *got.StudentRecordID)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, "guard", *got.ReviewedBy)

	err = store.ApproveViolation(ctx, v.ID, stamp, newStudent(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatusConflict)

	recs, err := store.QueryDisciplinary(ctx, DisciplinaryFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestApproveViolation_Concurrent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := t.Context()

	v := newViolation("src-race", "2025-01-10")
	require.NoError(t, store.InsertViolation(ctx, v))

	var wg sync.WaitGroup
	var ok atomic.Int32
	for range 5 {
		wg.Go(func() {
			stamp := ReviewStamp{Status: StatusApproved, ReviewedBy: "guard", ReviewedAt: time.Now()}
			if store.ApproveViolation(ctx, v.ID, stamp, newStudent("")) == nil {
				ok.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	recs, err := store.QueryDisciplinary(ctx, DisciplinaryFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestDeletePendingViolation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := t.Context()

	pending := newViolation("p", "2025-01-10")
	approved := newViolation("a", "2025-01-10")
	require.NoError(t, store.InsertViolation(ctx, pending))
	require.NoError(t, store.InsertViolation(ctx, approved))
	require.NoError(t, store.ApproveViolation(ctx, approved.ID,
		ReviewStamp{Status: StatusApproved, ReviewedBy: "guard", ReviewedAt: time.Now()}, newStudent("")))

	deniedAt := time.Date(2025, 1, 10, 11, 0, 0, 0, time.UTC)
	require.NoError(t, store.DeletePendingViolation(ctx, pending.ID, deniedAt))
	_, err := store.GetViolation(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.DeletePendingViolation(ctx, approved.ID, deniedAt)
	assert.ErrorIs(t, err, ErrStatusConflict)

	err = store.DeletePendingViolation(ctx, "missing", deniedAt)
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := store.QueryDeniedSourceIDs(ctx, deniedAt.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, ids)
}

func TestDeletePendingViolation_SourceDeniedTwice(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := t.Context()
	first := time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	for _, at := range []time.Time{first, second} {
		v := newViolation("again", "2025-01-10")
		require.NoError(t, store.InsertViolation(ctx, v))
		require.NoError(t, store.DeletePendingViolation(ctx, v.ID, at))
	}

	ids, err := store.QueryDeniedSourceIDs(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"again"}, ids)

	ids, err = store.QueryDeniedSourceIDs(ctx, second.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestQueryViolations_SinceAcrossOffsets(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := t.Context()
	manila := time.FixedZone("PHT", 8*3600)
	eastern := time.FixedZone("EST", -5*3600)

	// 14:00Z stored with a negative offset, 12:30Z with a positive one.
	inside := newViolation("inside", "2025-01-10")
	inside.Timestamp = time.Date(2025, 1, 10, 9, 0, 0, 0, eastern)
	outside := newViolation("outside", "2025-01-10")
	outside.Timestamp = time.Date(2025, 1, 10, 20, 30, 0, 0, manila)
	require.NoError(t, store.InsertViolation(ctx, inside))
	require.NoError(t, store.InsertViolation(ctx, outside))

	since := time.Date(2025, 1, 10, 13, 0, 0, 0, time.UTC)
	for _, loc := range []*time.Location{time.UTC, manila, eastern} {
		recs, err := store.QueryViolations(ctx, ViolationFilter{Since: since.In(loc)})
		require.NoError(t, err, loc.String())
		require.Len(t, recs, 1, loc.String())
		assert.Equal(t, "inside", recs[0].SourceID)
		assert.True(t, recs[0].Timestamp.Equal(inside.Timestamp))
	}
}

func TestInsertNonViolation_StoresUTC(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := t.Context()
	ts := time.Date(2025, 1, 10, 9, 0, 0, 0, time.FixedZone("PHT", 8*3600))

	rec := &NonViolationRecord{SourceID: "n", Quadrant: "male_pe", Date: "2025-01-10", Time: "09:00:00", Timestamp: ts}
	require.NoError(t, store.InsertNonViolation(ctx, rec))

	recs, err := store.QueryNonViolations(ctx, DateFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Timestamp.Equal(ts))
	_, offset := recs[0].Timestamp.Zone()
	assert.Zero(t, offset)
}

func TestQueryViolations_Filters(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := t.Context()

	for i, date := range []string{"2025-01-08", "2025-01-09", "2025-01-10"} {
		v := newViolation(string(rune('a'+i)), date)
		if i == 1 {
			v.Category = "Shorts"
		}
		require.NoError(t, store.InsertViolation(ctx, v))
	}

	all, err := store.QueryViolations(ctx, ViolationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2025-01-10", all[0].Date, "newest first")

	ranged, err := store.QueryViolations(ctx, ViolationFilter{DateFilter: DateFilter{StartDate: "2025-01-09", EndDate: "2025-01-10"}})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	shorts, err := store.QueryViolations(ctx, ViolationFilter{Category: "Shorts"})
	require.NoError(t, err)
	require.Len(t, shorts, 1)
	assert.Equal(t, "2025-01-09", shorts[0].Date)

	pending, err := store.QueryViolations(ctx, ViolationFilter{Statuses: []string{StatusPending}, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestConcerns_Lifecycle(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := t.Context()

	c := &ConcernRecord{SubjectID: "2021001", Kind: KindConcern, Category: "Facility Issue", Description: "broken fan", Status: "Pending"}
	require.NoError(t, store.InsertConcern(ctx, c))

	notes := "fixed"
	require.NoError(t, store.UpdateConcernReview(ctx, c.ID, ReviewStamp{Status: "Resolved", ReviewedBy: "admin", ReviewedAt: time.Now(), Notes: &notes}))

	got, err := store.GetConcern(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Resolved", got.Status)
	require.NotNil(t, got.ReviewNotes)
	assert.Equal(t, "fixed", *got.ReviewNotes)

	list, err := store.QueryConcerns(ctx, ConcernFilter{Kind: KindConcern, SubjectID: "2021001"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, store.UpdateConcernReview(ctx, "missing", ReviewStamp{Status: "Reviewed"}), ErrNotFound)

	require.NoError(t, store.DeleteConcern(ctx, c.ID))
	assert.ErrorIs(t, store.DeleteConcern(ctx, c.ID), ErrNotFound)
}

func TestSnapshot_ReadsAllInputs(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := t.Context()

	v := newViolation("v1", "2025-01-10")
	require.NoError(t, store.InsertViolation(ctx, v))
	require.NoError(t, store.InsertViolation(ctx, newViolation("v2", "2024-12-31")))
	require.NoError(t, store.InsertNonViolation(ctx, &NonViolationRecord{SourceID: "n1", Quadrant: "Male PE", Date: "2025-01-10"}))
	require.NoError(t, store.ApproveViolation(ctx, v.ID,
		ReviewStamp{Status: StatusApproved, ReviewedBy: "guard", ReviewedAt: time.Now()}, newStudent("")))

	snap, err := store.Snapshot(ctx, DateFilter{StartDate: "2025-01-01", EndDate: "2025-01-31"})
	require.NoError(t, err)
	assert.Len(t, snap.Violations, 1)
	assert.Len(t, snap.NonViolations, 1)
	assert.Len(t, snap.Disciplinary, 1)
}

func TestWrite_RetriesTransientErrors(t *testing.T) {
	t.Parallel()
	rec := &recorderStub{}
	ds := &DataStore{Retry: RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond}, Metrics: rec}

	calls := 0
	err := ds.write(t.Context(), OpInsertViolation, func() error {
		calls++
		if calls < 3 {
			return errors.NewStd("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, int32(2), rec.retries.Load())
	assert.Equal(t, 1, rec.ops[OpInsertViolation+":success"])
}

func TestWrite_StopsOnPermanentError(t *testing.T) {
	t.Parallel()
	ds := &DataStore{Retry: RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond}}

	calls := 0
	err := ds.write(t.Context(), OpInsertConcern, func() error {
		calls++
		return errors.NewStd("syntax error")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}

func TestWrite_HonorsCancellation(t *testing.T) {
	t.Parallel()
	ds := &DataStore{Retry: RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour}}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := ds.write(ctx, OpInsertConcern, func() error { return driver.ErrBadConn })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_Delay(t *testing.T) {
	t.Parallel()
	p := RetryPolicy{InitialDelay: 10 * time.Millisecond, MaxDelay: 30 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, p.delay(0))
	assert.Equal(t, 20*time.Millisecond, p.delay(1))
	assert.Equal(t, 30*time.Millisecond, p.delay(2))
	assert.Equal(t, 1, RetryPolicy{}.attempts())
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()
	dsn := mysqlDSN(conf.MySQLSettings{Username: "u", Password: "p", Host: "db", Port: "3306", Database: "campusfit"})
	assert.Equal(t, "u:p@tcp(db:3306)/campusfit?charset=utf8mb4&parseTime=True&loc=Local", dsn)
}
