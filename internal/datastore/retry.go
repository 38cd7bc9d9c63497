package datastore

import (
	"context"
	"database/sql/driver"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
)

// Operation names used for logging and metrics.
const (
	OpInsertViolation    = "insert_violation"
	OpGetViolation       = "get_violation"
	OpQueryViolations    = "query_violations"
	OpApproveViolation   = "approve_violation"
	OpDeleteViolation    = "delete_violation"
	OpInsertNonViolation = "insert_non_violation"
	OpQueryNonViolations = "query_non_violations"
	OpQueryDisciplinary  = "query_disciplinary"
	OpInsertConcern      = "insert_concern"
	OpGetConcern         = "get_concern"
	OpQueryConcerns      = "query_concerns"
	OpUpdateConcern      = "update_concern"
	OpDeleteConcern      = "delete_concern"
	OpQueryDenied        = "query_denied"
	OpSnapshot           = "snapshot"
)

// Recorder receives datastore operation metrics.
type Recorder interface {
	RecordOperation(operation, status string, duration time.Duration)
	RecordRetry(operation string)
}

// RetryPolicy is a bounded exponential backoff for transient write failures.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// RetryPolicyFromSettings converts config to a policy.
func RetryPolicyFromSettings(s conf.RetrySettings) RetryPolicy {
	return RetryPolicy{MaxAttempts: s.MaxAttempts, InitialDelay: s.InitialDelay, MaxDelay: s.MaxDelay}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.InitialDelay
	if d <= 0 {
		d = 50 * time.Millisecond
	}
	for range attempt {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// write runs fn with retries for transient errors. Non-transient errors and
// context cancellation stop immediately.
func (ds *DataStore) write(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	var err error
	for attempt := range ds.Retry.attempts() {
		if attempt > 0 {
			ds.recordRetry(op)
			GetLogger().Debug("retrying datastore write",
				logger.String("operation", op),
				logger.Int("attempt", attempt+1),
				logger.Error(err))
			select {
			case <-ctx.Done():
				return ds.finish(op, start, ctx.Err())
			case <-time.After(ds.Retry.delay(attempt - 1)):
			}
		}
		if err = fn(); err == nil || !isTransient(err) {
			break
		}
	}
	return ds.finish(op, start, err)
}

func (ds *DataStore) read(_ context.Context, op string, fn func() error) error {
	return ds.finish(op, time.Now(), fn())
}

func (ds *DataStore) finish(op string, start time.Time, err error) error {
	err = translateError(op, err)
	if ds.Metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		ds.Metrics.RecordOperation(op, status, time.Since(start))
	}
	return err
}

func (ds *DataStore) recordRetry(op string) {
	if ds.Metrics != nil {
		ds.Metrics.RecordRetry(op)
	}
}

// isTransient reports whether a database error is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"database is locked", "database table is locked", "busy", "deadlock", "lock wait timeout", "connection refused", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// translateError maps gorm errors to datastore sentinels wrapped as
// enhanced errors. Already enhanced errors pass through.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.New(ErrNotFound).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("operation", op).
			Build()
	case errors.Is(err, gorm.ErrDuplicatedKey), strings.Contains(err.Error(), "UNIQUE constraint failed"), strings.Contains(err.Error(), "Duplicate entry"):
		return errors.New(errors.Join(ErrDuplicate, err)).
			Component("datastore").
			Category(errors.CategoryConflict).
			Context("operation", op).
			Build()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryTimeout).
			Context("operation", op).
			Build()
	default:
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", op).
			Build()
	}
}
