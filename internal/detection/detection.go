// Package detection holds the transient detection event produced by the
// ingestion poller, the canonical category and quadrant classifiers, and the
// deduplicator that decides whether an event is new.
package detection

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind distinguishes violations from compliant uniform detections.
type Kind string

const (
	KindViolation    Kind = "violation"
	KindNonViolation Kind = "non_violation"
)

// Category is the canonical violation category.
type Category string

const (
	CategoryCap        Category = "Cap"
	CategoryShorts     Category = "Shorts"
	CategorySleeveless Category = "Sleeveless"
	CategoryOther      Category = "Other"
)

// Categories lists the canonical categories in their stable display order.
var Categories = []Category{CategoryCap, CategoryShorts, CategorySleeveless, CategoryOther}

// Quadrant is the {Male|Female}x{PE|Regular} class of a compliant detection.
type Quadrant string

const (
	QuadrantMalePE        Quadrant = "Male PE"
	QuadrantFemalePE      Quadrant = "Female PE"
	QuadrantMaleRegular   Quadrant = "Male Regular"
	QuadrantFemaleRegular Quadrant = "Female Regular"
	QuadrantUnknown       Quadrant = "Unknown"
)

// Quadrants lists the four known quadrants in display order.
var Quadrants = []Quadrant{QuadrantMalePE, QuadrantFemalePE, QuadrantMaleRegular, QuadrantFemaleRegular}

// Date and time layouts used by the detection feed.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Event is a raw detection as delivered by the feed. It is never persisted
// directly.
type Event struct {
	SourceID     string
	Date         string // YYYY-MM-DD
	Time         string // HH:MM:SS
	CameraNumber string
	RawLabel     string
	ImageRef     string
	Confidence   float64
	Kind         Kind
}

// Timestamp combines Date and Time in loc.
func (e Event) Timestamp(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, e.Date+" "+e.Time, loc)
}

// ClassifyCategory maps a free-text label to a canonical category by
// case-insensitive substring match. The first matching rule wins so a label
// is counted under exactly one category.
func ClassifyCategory(label string) Category {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "cap"), strings.Contains(l, "hat"):
		return CategoryCap
	case strings.Contains(l, "short"):
		return CategoryShorts
	case strings.Contains(l, "sleeve"):
		return CategorySleeveless
	default:
		return CategoryOther
	}
}

var titleCaser = cases.Title(language.English)

// DisplayLabel turns a detector label such as "long_sleeve-shirt" into
// "Long Sleeve Shirt".
func DisplayLabel(label string) string {
	words := strings.FieldsFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return titleCaser.String(strings.Join(words, " "))
}

// ClassifyQuadrant maps a uniform label such as "pe_unif_m" or "Female Regular"
// to a quadrant. Matching is token based so "female" never matches "male".
func ClassifyQuadrant(label string) Quadrant {
	var female, male, pe, regular bool
	for _, tok := range strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		switch tok {
		case "female", "f":
			female = true
		case "male", "m":
			male = true
		case "pe":
			pe = true
		case "reg", "regular":
			regular = true
		}
	}

	switch {
	case female == male, pe == regular:
		return QuadrantUnknown
	case female && pe:
		return QuadrantFemalePE
	case female:
		return QuadrantFemaleRegular
	case pe:
		return QuadrantMalePE
	default:
		return QuadrantMaleRegular
	}
}

// IsPE reports whether q is one of the PE quadrants.
func (q Quadrant) IsPE() bool {
	return q == QuadrantMalePE || q == QuadrantFemalePE
}

// IsRegular reports whether q is one of the Regular quadrants.
func (q Quadrant) IsRegular() bool {
	return q == QuadrantMaleRegular || q == QuadrantFemaleRegular
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(name string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), name) {
			return c, true
		}
	}
	return "", false
}
