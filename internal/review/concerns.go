package review

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
)

// Concern and permit statuses.
const (
	StatusPending           = "Pending"
	StatusReviewed          = "Reviewed"
	StatusResolved          = "Resolved"
	StatusApproved          = "Approved"
	StatusDenied            = "Denied"
	StatusNoPermitSubmitted = "NoPermitSubmitted"
)

// ConcernCategories are the categories a concern may be filed under.
var ConcernCategories = []string{"Facility Issue", "Academic Concern", "Behavioral Concern", "Other"}

// reviewStatuses holds the allowed statuses per record kind.
var reviewStatuses = map[string][]string{
	datastore.KindConcern:      {StatusPending, StatusReviewed, StatusResolved},
	datastore.KindGadgetPermit: {StatusPending, StatusReviewed, StatusApproved, StatusDenied, StatusNoPermitSubmitted},
}

// AllowedStatuses returns the review statuses allowed for kind.
func AllowedStatuses(kind string) []string {
	return slices.Clone(reviewStatuses[kind])
}

// Submission is a new concern or permit request.
type Submission struct {
	SubjectID   string `json:"subjectId"`
	Kind        string `json:"kind"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	EvidenceRef string `json:"evidenceRef,omitempty"`
}

func (s Submission) validate() error {
	errs := ValidationErrors{}
	if strings.TrimSpace(s.SubjectID) == "" {
		errs["subjectId"] = "subject is required"
	}
	switch s.Kind {
	case datastore.KindConcern:
		if !slices.Contains(ConcernCategories, s.Category) {
			errs["category"] = "unknown concern category"
		}
		if strings.TrimSpace(s.Description) == "" {
			errs["description"] = "description is required"
		}
	case datastore.KindGadgetPermit:
	default:
		errs["kind"] = "unknown kind"
	}
	if len(errs) > 0 {
		return errors.New(errs).
			Component("review").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// Submit stores a new Pending concern or permit request.
func (m *Manager) Submit(ctx context.Context, s Submission) (rec *datastore.ConcernRecord, err error) {
	defer func() { m.observe(ActionSubmit, err) }()

	if err := s.validate(); err != nil {
		return nil, err
	}
	rec = &datastore.ConcernRecord{
		SubjectID:   strings.TrimSpace(s.SubjectID),
		Kind:        s.Kind,
		Category:    s.Category,
		Description: s.Description,
		EvidenceRef: s.EvidenceRef,
		Status:      StatusPending,
	}
	if err := m.store.InsertConcern(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListConcerns returns records of kind, optionally for one subject.
func (m *Manager) ListConcerns(ctx context.Context, kind, subjectID string) ([]datastore.ConcernRecord, error) {
	return m.store.QueryConcerns(ctx, datastore.ConcernFilter{Kind: kind, SubjectID: subjectID})
}

// GetConcern returns a concern or permit by ID.
func (m *Manager) GetConcern(ctx context.Context, id string) (*datastore.ConcernRecord, error) {
	rec, err := m.store.GetConcern(ctx, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, notFound("concern", id)
	}
	return rec, err
}

// UpdateReview sets the status of a concern or permit and stamps the
// reviewer. status must be allowed for the record's kind.
func (m *Manager) UpdateReview(ctx context.Context, id, reviewer, status, notes string) (rec *datastore.ConcernRecord, err error) {
	defer func() { m.observe(ActionUpdate, err) }()

	rec, err = m.GetConcern(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(reviewStatuses[rec.Kind], status) {
		return nil, invalidTransition(rec.Kind, status)
	}

	stamp := datastore.ReviewStamp{Status: status, ReviewedBy: reviewer, ReviewedAt: m.now()}
	if notes != "" {
		stamp.Notes = &notes
	}
	if err := m.store.UpdateConcernReview(ctx, id, stamp); err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, notFound("concern", id)
		}
		return nil, err
	}
	return m.GetConcern(ctx, id)
}

// RequestDelete opens a delete request for a concern that must be
// confirmed with ConfirmDelete before it expires.
func (m *Manager) RequestDelete(ctx context.Context, id string) (time.Time, error) {
	if _, err := m.GetConcern(ctx, id); err != nil {
		return time.Time{}, err
	}
	m.pendingDeletes.Set(id, struct{}{}, m.deleteTTL)
	return m.now().Add(m.deleteTTL), nil
}

// ConfirmDelete deletes a concern if a delete request is open and token
// equals the confirm word, ignoring case. A wrong token leaves the request
// open.
func (m *Manager) ConfirmDelete(ctx context.Context, id, token string) (err error) {
	defer func() { m.observe(ActionDelete, err) }()

	if _, ok := m.pendingDeletes.Get(id); !ok {
		return errors.New(ErrConfirmationRequired).
			Component("review").
			Category(errors.CategoryState).
			Context("id", id).
			Build()
	}
	if !strings.EqualFold(token, m.confirmToken) {
		return errors.New(ErrConfirmationMismatch).
			Component("review").
			Category(errors.CategoryValidation).
			Context("id", id).
			Build()
	}

	if err := m.store.DeleteConcern(ctx, id); err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			m.pendingDeletes.Delete(id)
			return notFound("concern", id)
		}
		return err
	}
	m.pendingDeletes.Delete(id)
	m.log.Info("concern deleted", logger.String("id", id))
	return nil
}
