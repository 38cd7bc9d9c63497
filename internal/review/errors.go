package review

import (
	"sort"
	"strings"

	"github.com/campusfit/campusfit-go/internal/errors"
)

// Sentinel errors returned by Manager. Callers match them with errors.Is.
var (
	ErrNotFound             = errors.NewStd("record not found")
	ErrAlreadyFinalized     = errors.NewStd("record is already finalized")
	ErrInvalidTransition    = errors.NewStd("status not allowed for this record kind")
	ErrConfirmationRequired = errors.NewStd("delete was not requested or the request expired")
	ErrConfirmationMismatch = errors.NewStd("confirmation token does not match")
)

// ValidationErrors maps a field name to its validation message.
type ValidationErrors map[string]string

func (ve ValidationErrors) Error() string {
	fields := make([]string, 0, len(ve))
	for f := range ve {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f)
		b.WriteString(": ")
		b.WriteString(ve[f])
	}
	return b.String()
}

func notFound(kind, id string) error {
	return errors.New(ErrNotFound).
		Component("review").
		Category(errors.CategoryNotFound).
		Context("kind", kind).
		Context("id", id).
		Build()
}

func alreadyFinalized(id, status string) error {
	return errors.New(ErrAlreadyFinalized).
		Component("review").
		Category(errors.CategoryConflict).
		Context("id", id).
		Context("status", status).
		Build()
}

func invalidTransition(kind, status string) error {
	return errors.New(ErrInvalidTransition).
		Component("review").
		Category(errors.CategoryValidation).
		Context("kind", kind).
		Context("status", status).
		Build()
}
