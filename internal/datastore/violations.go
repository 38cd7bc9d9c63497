package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusfit/campusfit-go/internal/errors"
)

// InsertViolation inserts rec. A second insert for the same SourceID fails
// with ErrDuplicate.
func (ds *DataStore) InsertViolation(ctx context.Context, rec *ViolationRecord) error {
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	return ds.write(ctx, OpInsertViolation, func() error {
		return ds.DB.WithContext(ctx).Create(rec).Error
	})
}

func (ds *DataStore) GetViolation(ctx context.Context, id string) (*ViolationRecord, error) {
	var rec ViolationRecord
	err := ds.read(ctx, OpGetViolation, func() error {
		return ds.DB.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (ds *DataStore) GetViolationBySourceID(ctx context.Context, sourceID string) (*ViolationRecord, error) {
	var rec ViolationRecord
	err := ds.read(ctx, OpGetViolation, func() error {
		return ds.DB.WithContext(ctx).Where("source_id = ?", sourceID).First(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// QueryViolations returns matching violations, newest first.
func (ds *DataStore) QueryViolations(ctx context.Context, filter ViolationFilter) ([]ViolationRecord, error) {
	var recs []ViolationRecord
	err := ds.read(ctx, OpQueryViolations, func() error {
		return violationQuery(ds.DB.WithContext(ctx), filter).Find(&recs).Error
	})
	return recs, err
}

func violationQuery(db *gorm.DB, filter ViolationFilter) *gorm.DB {
	q := applyDateFilter(db.Model(&ViolationRecord{}), filter.DateFilter)
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since.UTC())
	}
	q = q.Order("timestamp DESC").Order("id")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	return q
}

// ApproveViolation updates the violation only if it is still Pending, and
// creates rec in the same transaction. rec.ID is assigned before the update
// so the violation can reference it.
func (ds *DataStore) ApproveViolation(ctx context.Context, id string, stamp ReviewStamp, rec *DisciplinaryRecord) error {
	if err := rec.BeforeCreate(nil); err != nil {
		return err
	}
	rec.ViolationID = id

	return ds.write(ctx, OpApproveViolation, func() error {
		return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&ViolationRecord{}).
				Where("id = ? AND status = ?", id, StatusPending).
				Updates(map[string]any{
					"status":            stamp.Status,
					"reviewed_by":       stamp.ReviewedBy,
					"reviewed_at":       stamp.ReviewedAt.UTC(),
					"review_notes":      stamp.Notes,
					"student_record_id": rec.ID,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return missingOrConflict(tx, &ViolationRecord{}, id)
			}
			return tx.Create(rec).Error
		})
	})
}

// DeletePendingViolation removes a Pending violation and records its source
// ID as denied at deniedAt. Finalized violations yield ErrStatusConflict.
func (ds *DataStore) DeletePendingViolation(ctx context.Context, id string, deniedAt time.Time) error {
	return ds.write(ctx, OpDeleteViolation, func() error {
		return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var rec ViolationRecord
			if err := tx.Select("id", "source_id").Where("id = ?", id).Take(&rec).Error; err != nil {
				return err
			}
			res := tx.Where("id = ? AND status = ?", id, StatusPending).Delete(&ViolationRecord{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return missingOrConflict(tx, &ViolationRecord{}, id)
			}
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "source_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"denied_at"}),
			}).Create(&DeniedViolation{SourceID: rec.SourceID, DeniedAt: deniedAt}).Error
		})
	})
}

// QueryDeniedSourceIDs returns the source IDs denied at or after since.
func (ds *DataStore) QueryDeniedSourceIDs(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	err := ds.read(ctx, OpQueryDenied, func() error {
		return ds.DB.WithContext(ctx).Model(&DeniedViolation{}).
			Where("denied_at >= ?", since.UTC()).
			Order("denied_at").
			Pluck("source_id", &ids).Error
	})
	return ids, err
}

// missingOrConflict explains why a conditional statement matched no rows.
func missingOrConflict(tx *gorm.DB, model any, id string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return errors.New(ErrStatusConflict).
		Component("datastore").
		Category(errors.CategoryConflict).
		Context("id", id).
		Build()
}
