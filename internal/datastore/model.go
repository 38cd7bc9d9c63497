// model.go defines the persisted records
package datastore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Violation statuses. Denied is realized as deletion and never stored.
const (
	StatusPending   = "Pending"
	StatusApproved  = "Approved"
	StatusProcessed = "Processed"
)

// IsFinalStatus reports whether a violation status is terminal.
func IsFinalStatus(status string) bool {
	return status == StatusApproved || status == StatusProcessed
}

// ViolationRecord is one reviewed-or-pending dress-code violation, at most
// one per source detection ID.
type ViolationRecord struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SourceID        string     `gorm:"uniqueIndex;type:varchar(64);not null" json:"sourceId"`
	Category        string     `gorm:"index;type:varchar(20);not null" json:"category"`
	RawLabel        string     `gorm:"type:varchar(64)" json:"rawLabel"`
	CameraNumber    string     `gorm:"type:varchar(16)" json:"cameraNumber"`
	Date            string     `gorm:"index;type:varchar(10);not null" json:"date"` // YYYY-MM-DD
	Time            string     `gorm:"type:varchar(8)" json:"time"`                 // HH:MM:SS
	Timestamp       time.Time  `gorm:"index" json:"timestamp"`
	ImageRef        string     `gorm:"type:varchar(512)" json:"imageRef"`
	Confidence      float64    `json:"confidence"`
	Status          string     `gorm:"index;type:varchar(20);not null" json:"status"`
	ReviewedBy      *string    `gorm:"type:varchar(64)" json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes     *string    `gorm:"type:text" json:"reviewNotes,omitempty"`
	StudentRecordID *string    `gorm:"type:varchar(36)" json:"studentRecordId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (r *ViolationRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave stores timestamps in UTC. SQLite compares them as text, so
// mixed offsets would break range queries.
func (r *ViolationRecord) BeforeSave(_ *gorm.DB) error {
	r.Timestamp = r.Timestamp.UTC()
	if r.ReviewedAt != nil {
		t := r.ReviewedAt.UTC()
		r.ReviewedAt = &t
	}
	return nil
}

// NonViolationRecord is one compliant uniform detection.
type NonViolationRecord struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SourceID     string    `gorm:"uniqueIndex;type:varchar(64);not null" json:"sourceId"`
	Quadrant     string    `gorm:"index;type:varchar(20)" json:"quadrant"`
	RawLabel     string    `gorm:"type:varchar(64)" json:"rawLabel"`
	CameraNumber string    `gorm:"type:varchar(16)" json:"cameraNumber"`
	Date         string    `gorm:"index;type:varchar(10);not null" json:"date"`
	Time         string    `gorm:"type:varchar(8)" json:"time"`
	Timestamp    time.Time `gorm:"index" json:"timestamp"`
	ImageRef     string    `gorm:"type:varchar(512)" json:"imageRef"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (r *NonViolationRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *NonViolationRecord) BeforeSave(_ *gorm.DB) error {
	r.Timestamp = r.Timestamp.UTC()
	return nil
}

// DeniedViolation remembers the source ID of a denied violation so a
// redelivered detection is not recorded again after a restart.
type DeniedViolation struct {
	SourceID string    `gorm:"primaryKey;type:varchar(64)" json:"sourceId"`
	DeniedAt time.Time `gorm:"index" json:"deniedAt"`
}

func (r *DeniedViolation) BeforeSave(_ *gorm.DB) error {
	r.DeniedAt = r.DeniedAt.UTC()
	return nil
}

// DisciplinaryRecord is created once per approved violation and is
// immutable afterwards.
type DisciplinaryRecord struct {
	ID                 string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ViolationID        string    `gorm:"uniqueIndex;type:varchar(36);not null" json:"violationId"`
	StudentNumber      string    `gorm:"index;type:varchar(7);not null" json:"studentNumber"`
	StudentName        string    `gorm:"type:varchar(128);not null" json:"studentName"`
	Department         string    `gorm:"index;type:varchar(8);not null" json:"department"`
	Program            string    `gorm:"type:varchar(128);not null" json:"program"`
	YearLevel          string    `gorm:"type:varchar(16);not null" json:"yearLevel"`
	Category           string    `gorm:"index;type:varchar(20)" json:"category"`
	Date               string    `gorm:"index;type:varchar(10);not null" json:"date"`
	ViolationTicketRef string    `gorm:"type:varchar(64)" json:"violationTicketRef"`
	EvidenceImageRef   string    `gorm:"type:varchar(512)" json:"evidenceImageRef"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (r *DisciplinaryRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Concern kinds.
const (
	KindConcern      = "concern"
	KindGadgetPermit = "gadget_permit"
)

// ConcernRecord is a staff or student concern, or a gadget permit request.
type ConcernRecord struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SubjectID   string     `gorm:"index;type:varchar(64);not null" json:"subjectId"`
	Kind        string     `gorm:"index;type:varchar(20);not null" json:"kind"`
	Category    string     `gorm:"type:varchar(64)" json:"category,omitempty"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	EvidenceRef string     `gorm:"type:varchar(512)" json:"evidenceRef,omitempty"`
	Status      string     `gorm:"index;type:varchar(24);not null" json:"status"`
	ReviewedBy  *string    `gorm:"type:varchar(64)" json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes *string    `gorm:"type:text" json:"reviewNotes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (r *ConcernRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ReviewStamp is the reviewer identity written on a status transition.
type ReviewStamp struct {
	Status     string
	ReviewedBy string
	ReviewedAt time.Time
	Notes      *string
}
