package detection

import (
	"time"

	"github.com/campusfit/campusfit-go/internal/errors"
)

// Exemption allows one violation category on every calendar date in
// [Start, End].
type Exemption struct {
	Category Category
	Start    time.Time
	End      time.Time
}

// NewExemption parses an exemption window from config strings.
func NewExemption(category, start, end string) (Exemption, error) {
	c, ok := ParseCategory(category)
	if !ok || c == CategoryOther {
		return Exemption{}, errors.Newf("unknown exemption category %q", category).
			Component("detection").
			Category(errors.CategoryValidation).
			Build()
	}
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Exemption{}, errors.New(err).Component("detection").Category(errors.CategoryValidation).Build()
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Exemption{}, errors.New(err).Component("detection").Category(errors.CategoryValidation).Build()
	}
	return Exemption{Category: c, Start: s, End: e}, nil
}

// Covers reports whether category is allowed on the given YYYY-MM-DD date.
func (x Exemption) Covers(category Category, date string) bool {
	if category != x.Category {
		return false
	}
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return false
	}
	return !d.Before(x.Start) && !d.After(x.End)
}
