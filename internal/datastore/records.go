package datastore

import (
	"context"

	"gorm.io/gorm"
)

func (ds *DataStore) InsertNonViolation(ctx context.Context, rec *NonViolationRecord) error {
	return ds.write(ctx, OpInsertNonViolation, func() error {
		return ds.DB.WithContext(ctx).Create(rec).Error
	})
}

func (ds *DataStore) QueryNonViolations(ctx context.Context, filter DateFilter) ([]NonViolationRecord, error) {
	var recs []NonViolationRecord
	err := ds.read(ctx, OpQueryNonViolations, func() error {
		return nonViolationQuery(ds.DB.WithContext(ctx), filter).Find(&recs).Error
	})
	return recs, err
}

func nonViolationQuery(db *gorm.DB, filter DateFilter) *gorm.DB {
	return applyDateFilter(db.Model(&NonViolationRecord{}), filter).Order("timestamp").Order("id")
}

func (ds *DataStore) QueryDisciplinary(ctx context.Context, filter DisciplinaryFilter) ([]DisciplinaryRecord, error) {
	var recs []DisciplinaryRecord
	err := ds.read(ctx, OpQueryDisciplinary, func() error {
		return disciplinaryQuery(ds.DB.WithContext(ctx), filter).Find(&recs).Error
	})
	return recs, err
}

func disciplinaryQuery(db *gorm.DB, filter DisciplinaryFilter) *gorm.DB {
	q := applyDateFilter(db.Model(&DisciplinaryRecord{}), filter.DateFilter)
	if filter.Department != "" {
		q = q.Where("department = ?", filter.Department)
	}
	if filter.StudentNumber != "" {
		q = q.Where("student_number = ?", filter.StudentNumber)
	}
	return q.Order("date").Order("created_at").Order("id")
}

func (ds *DataStore) InsertConcern(ctx context.Context, rec *ConcernRecord) error {
	return ds.write(ctx, OpInsertConcern, func() error {
		return ds.DB.WithContext(ctx).Create(rec).Error
	})
}

func (ds *DataStore) GetConcern(ctx context.Context, id string) (*ConcernRecord, error) {
	var rec ConcernRecord
	err := ds.read(ctx, OpGetConcern, func() error {
		return ds.DB.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// QueryConcerns returns matching concerns, newest first.
func (ds *DataStore) QueryConcerns(ctx context.Context, filter ConcernFilter) ([]ConcernRecord, error) {
	var recs []ConcernRecord
	err := ds.read(ctx, OpQueryConcerns, func() error {
		q := ds.DB.WithContext(ctx).Model(&ConcernRecord{})
		if filter.Kind != "" {
			q = q.Where("kind = ?", filter.Kind)
		}
		if filter.SubjectID != "" {
			q = q.Where("subject_id = ?", filter.SubjectID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return q.Order("created_at DESC").Order("id").Find(&recs).Error
	})
	return recs, err
}

func (ds *DataStore) UpdateConcernReview(ctx context.Context, id string, stamp ReviewStamp) error {
	return ds.write(ctx, OpUpdateConcern, func() error {
		res := ds.DB.WithContext(ctx).Model(&ConcernRecord{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":       stamp.Status,
				"reviewed_by":  stamp.ReviewedBy,
				"reviewed_at":  stamp.ReviewedAt,
				"review_notes": stamp.Notes,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (ds *DataStore) DeleteConcern(ctx context.Context, id string) error {
	return ds.write(ctx, OpDeleteConcern, func() error {
		res := ds.DB.WithContext(ctx).Where("id = ?", id).Delete(&ConcernRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// Snapshot reads all analytics inputs in a single transaction so concurrent
// ingestion cannot produce a torn view.
func (ds *DataStore) Snapshot(ctx context.Context, filter DateFilter) (*Snapshot, error) {
	snap := &Snapshot{}
	err := ds.read(ctx, OpSnapshot, func() error {
		return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := violationQuery(tx, ViolationFilter{DateFilter: filter}).Find(&snap.Violations).Error; err != nil {
				return err
			}
			if err := nonViolationQuery(tx, filter).Find(&snap.NonViolations).Error; err != nil {
				return err
			}
			return disciplinaryQuery(tx, DisciplinaryFilter{DateFilter: filter}).Find(&snap.Disciplinary).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
