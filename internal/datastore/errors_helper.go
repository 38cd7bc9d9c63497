package datastore

import "github.com/campusfit/campusfit-go/internal/errors"

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrNotFound       = errors.NewStd("record not found")
	ErrDuplicate      = errors.NewStd("record already exists")
	ErrStatusConflict = errors.NewStd("record status does not allow this change")
)
