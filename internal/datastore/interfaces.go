// interfaces.go defines the store interface and its gorm implementation
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/errors"
)

// Interface abstracts the underlying database.
type Interface interface {
	Open() error
	Close() error

	InsertViolation(ctx context.Context, rec *ViolationRecord) error
	GetViolation(ctx context.Context, id string) (*ViolationRecord, error)
	GetViolationBySourceID(ctx context.Context, sourceID string) (*ViolationRecord, error)
	QueryViolations(ctx context.Context, filter ViolationFilter) ([]ViolationRecord, error)
	// ApproveViolation moves a Pending violation to stamp.Status and creates
	// its disciplinary record in one transaction.
	ApproveViolation(ctx context.Context, id string, stamp ReviewStamp, rec *DisciplinaryRecord) error
	// DeletePendingViolation hard-deletes a violation that is still Pending
	// and remembers its source ID as denied.
	DeletePendingViolation(ctx context.Context, id string, deniedAt time.Time) error
	QueryDeniedSourceIDs(ctx context.Context, since time.Time) ([]string, error)

	InsertNonViolation(ctx context.Context, rec *NonViolationRecord) error
	QueryNonViolations(ctx context.Context, filter DateFilter) ([]NonViolationRecord, error)

	QueryDisciplinary(ctx context.Context, filter DisciplinaryFilter) ([]DisciplinaryRecord, error)

	InsertConcern(ctx context.Context, rec *ConcernRecord) error
	GetConcern(ctx context.Context, id string) (*ConcernRecord, error)
	QueryConcerns(ctx context.Context, filter ConcernFilter) ([]ConcernRecord, error)
	UpdateConcernReview(ctx context.Context, id string, stamp ReviewStamp) error
	DeleteConcern(ctx context.Context, id string) error

	// Snapshot reads violations, detections and disciplinary records for a
	// date range inside one read transaction.
	Snapshot(ctx context.Context, filter DateFilter) (*Snapshot, error)
}

// DateFilter selects records by calendar date, inclusive. Empty bounds are open.
type DateFilter struct {
	StartDate string
	EndDate   string
}

// ViolationFilter selects violations.
type ViolationFilter struct {
	DateFilter
	Statuses []string
	Category string
	Since    time.Time // Timestamp >= Since when non-zero
	Limit    int
	Offset   int
}

// DisciplinaryFilter selects disciplinary records.
type DisciplinaryFilter struct {
	DateFilter
	Department    string
	StudentNumber string
}

// ConcernFilter selects concerns and permits.
type ConcernFilter struct {
	Kind      string
	SubjectID string
	Status    string
}

// Snapshot is a consistent read of the analytics inputs.
type Snapshot struct {
	Violations    []ViolationRecord
	NonViolations []NonViolationRecord
	Disciplinary  []DisciplinaryRecord
}

// DataStore implements Interface on a gorm database.
type DataStore struct {
	DB      *gorm.DB
	Retry   RetryPolicy
	Metrics Recorder
}

// New creates a store for the configured backend. SQLite takes precedence.
func New(settings *conf.Settings) (Interface, error) {
	retry := RetryPolicyFromSettings(settings.Output.Retry)
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{DataStore: DataStore{Retry: retry}, Settings: settings}, nil
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{DataStore: DataStore{Retry: retry}, Settings: settings}, nil
	default:
		return nil, errors.Newf("no database backend enabled").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// SetMetrics attaches a metrics recorder to a store created by New.
func SetMetrics(store Interface, m Recorder) {
	switch s := store.(type) {
	case *SQLiteStore:
		s.Metrics = m
	case *MySQLStore:
		s.Metrics = m
	case *DataStore:
		s.Metrics = m
	}
}

// Models lists every auto-migrated model.
func Models() []any {
	return []any{&ViolationRecord{}, &NonViolationRecord{}, &DisciplinaryRecord{}, &ConcernRecord{}, &DeniedViolation{}}
}

// Open is implemented by the backend stores.
func (ds *DataStore) Open() error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ds.DB.AutoMigrate(Models()...)
}

// Close closes the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func applyDateFilter(q *gorm.DB, f DateFilter) *gorm.DB {
	if f.StartDate != "" {
		q = q.Where("date >= ?", f.StartDate)
	}
	if f.EndDate != "" {
		q = q.Where("date <= ?", f.EndDate)
	}
	return q
}
