// Package review owns the violation review lifecycle: idempotent creation,
// approval with student details, denial by deletion, and the lighter
// concern and gadget permit workflow.
package review

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
)

// Review actions reported to the Observer.
const (
	ActionCreate  = "create"
	ActionApprove = "approve"
	ActionDeny    = "deny"
	ActionUpdate  = "update_review"
	ActionSubmit  = "submit"
	ActionDelete  = "delete"
)

// Observer receives review outcomes, typically for metrics.
type Observer interface {
	ObserveReview(action, outcome string)
}

// Options configure a Manager.
type Options struct {
	// TerminalStatus is written on approval, Approved or Processed.
	TerminalStatus   string
	ConfirmToken     string
	DeleteRequestTTL time.Duration
	Now              func() time.Time
	Observer         Observer
	Logger           logger.Logger
}

// OptionsFromSettings builds Options from configuration.
func OptionsFromSettings(s conf.ReviewSettings) Options {
	return Options{
		TerminalStatus:   s.TerminalStatus,
		ConfirmToken:     s.ConfirmToken,
		DeleteRequestTTL: s.DeleteRequestTTL,
	}
}

// Manager serializes state changes per source ID and delegates
// persistence to the store.
type Manager struct {
	store          datastore.Interface
	locks          *keyLock
	pendingDeletes *cache.Cache
	terminalStatus string
	confirmToken   string
	deleteTTL      time.Duration
	now            func() time.Time
	observer       Observer
	log            logger.Logger
}

// NewManager returns a Manager backed by store.
func NewManager(store datastore.Interface, opts Options) *Manager {
	m := &Manager{
		store:          store,
		locks:          newKeyLock(),
		terminalStatus: datastore.StatusApproved,
		confirmToken:   conf.DefaultConfirmToken,
		deleteTTL:      opts.DeleteRequestTTL,
		now:            opts.Now,
		observer:       opts.Observer,
		log:            opts.Logger,
	}
	if strings.EqualFold(opts.TerminalStatus, datastore.StatusProcessed) {
		m.terminalStatus = datastore.StatusProcessed
	}
	if opts.ConfirmToken != "" {
		m.confirmToken = opts.ConfirmToken
	}
	if m.deleteTTL <= 0 {
		m.deleteTTL = 2 * time.Minute
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.log == nil {
		m.log = GetLogger()
	}
	// No janitor: expired entries are ignored by Get and replaced on Set.
	m.pendingDeletes = cache.New(m.deleteTTL, 0)
	return m
}

// TerminalStatus returns the status written on approval.
func (m *Manager) TerminalStatus() string { return m.terminalStatus }

func (m *Manager) observe(action string, err error) {
	if m.observer == nil {
		return
	}
	outcome := "success"
	switch {
	case err == nil:
	case errors.IsValidation(err):
		outcome = "invalid"
	case errors.IsConflict(err):
		outcome = "conflict"
	case errors.IsNotFound(err):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	m.observer.ObserveReview(action, outcome)
}

// Create persists draft as a Pending violation. It is idempotent on
// SourceID: when a record already exists it is returned with created false.
func (m *Manager) Create(ctx context.Context, draft *datastore.ViolationRecord) (rec *datastore.ViolationRecord, created bool, err error) {
	defer func() { m.observe(ActionCreate, err) }()

	unlock := m.locks.Lock(draft.SourceID)
	defer unlock()

	existing, err := m.store.GetViolationBySourceID(ctx, draft.SourceID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, datastore.ErrNotFound):
		return nil, false, err
	}

	draft.Status = datastore.StatusPending
	draft.ReviewedBy, draft.ReviewedAt, draft.ReviewNotes, draft.StudentRecordID = nil, nil, nil, nil
	if err := m.store.InsertViolation(ctx, draft); err != nil {
		// Another writer without our lock, e.g. a second process.
		if errors.Is(err, datastore.ErrDuplicate) {
			existing, getErr := m.store.GetViolationBySourceID(ctx, draft.SourceID)
			if getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	m.log.Info("violation recorded",
		logger.String("id", draft.ID),
		logger.String("source_id", draft.SourceID),
		logger.String("category", draft.Category))
	return draft, true, nil
}

// Get returns a violation by ID.
func (m *Manager) Get(ctx context.Context, id string) (*datastore.ViolationRecord, error) {
	rec, err := m.store.GetViolation(ctx, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, notFound("violation", id)
	}
	return rec, err
}

// List returns violations matching filter.
func (m *Manager) List(ctx context.Context, filter datastore.ViolationFilter) ([]datastore.ViolationRecord, error) {
	return m.store.QueryViolations(ctx, filter)
}

// Approve validates details, creates the disciplinary record and moves the
// violation to the terminal status in one transaction. Nothing is written
// when validation fails or the violation is already finalized.
func (m *Manager) Approve(ctx context.Context, id, reviewer string, details StudentDetails) (rec *datastore.ViolationRecord, err error) {
	defer func() { m.observe(ActionApprove, err) }()

	v, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(v.SourceID)
	defer unlock()

	// Re-read under the lock; a concurrent reviewer may have finished first.
	if v, err = m.Get(ctx, id); err != nil {
		return nil, err
	}
	if datastore.IsFinalStatus(v.Status) {
		return nil, alreadyFinalized(id, v.Status)
	}
	if err := details.Validate(); err != nil {
		return nil, errors.New(err).
			Component("review").
			Category(errors.CategoryValidation).
			Context("id", id).
			Build()
	}

	ticket := details.ViolationTicketRef
	if ticket == "" {
		ticket = v.SourceID
	}
	student := &datastore.DisciplinaryRecord{
		StudentNumber:      strings.TrimSpace(details.StudentNumber),
		StudentName:        strings.Join(strings.Fields(details.StudentName), " "),
		Department:         details.Department,
		Program:            details.Program,
		YearLevel:          details.YearLevel,
		Category:           v.Category,
		Date:               details.Date,
		ViolationTicketRef: ticket,
		EvidenceImageRef:   v.ImageRef,
	}
	stamp := datastore.ReviewStamp{
		Status:     m.terminalStatus,
		ReviewedBy: reviewer,
		ReviewedAt: m.now(),
	}
	if details.Notes != "" {
		stamp.Notes = &details.Notes
	}

	if err := m.store.ApproveViolation(ctx, id, stamp, student); err != nil {
		switch {
		case errors.Is(err, datastore.ErrStatusConflict):
			return nil, alreadyFinalized(id, m.terminalStatus)
		case errors.Is(err, datastore.ErrNotFound):
			return nil, notFound("violation", id)
		}
		return nil, err
	}

	m.log.Info("violation approved",
		logger.String("id", id),
		logger.String("status", m.terminalStatus),
		logger.String("reviewer", reviewer),
		logger.String("student_record_id", student.ID))
	return m.Get(ctx, id)
}

// Deny permanently deletes a violation that is not finalized.
func (m *Manager) Deny(ctx context.Context, id, reviewer string) (err error) {
	defer func() { m.observe(ActionDeny, err) }()

	v, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	unlock := m.locks.Lock(v.SourceID)
	defer unlock()

	if err := m.store.DeletePendingViolation(ctx, id, m.now()); err != nil {
		switch {
		case errors.Is(err, datastore.ErrStatusConflict):
			return alreadyFinalized(id, v.Status)
		case errors.Is(err, datastore.ErrNotFound):
			return notFound("violation", id)
		}
		return err
	}

	m.log.Info("violation denied",
		logger.String("id", id),
		logger.String("source_id", v.SourceID),
		logger.String("reviewer", reviewer))
	return nil
}
