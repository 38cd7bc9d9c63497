package analytics

import (
	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/detection"
	"github.com/campusfit/campusfit-go/internal/errors"
)

// ComplianceMode selects the compliance view granularity.
type ComplianceMode string

const (
	// ModeQuadrant splits detections by gender and uniform type.
	ModeQuadrant ComplianceMode = "quadrant"
	// ModeYear merges genders into PE and Regular totals.
	ModeYear ComplianceMode = "year"
)

// ParseComplianceMode validates a mode name. Empty selects ModeQuadrant.
func ParseComplianceMode(s string) (ComplianceMode, error) {
	switch mode := ComplianceMode(s); mode {
	case "":
		return ModeQuadrant, nil
	case ModeQuadrant, ModeYear:
		return mode, nil
	default:
		return "", errors.Newf("compliance mode must be %s or %s", ModeQuadrant, ModeYear).
			Component("analytics").
			Category(errors.CategoryValidation).
			Context("mode", s).
			Build()
	}
}

// Uniform group names used in year mode.
const (
	GroupPE      = "PE"
	GroupRegular = "Regular"
)

// Compliance counts compliant detections in r. Quadrant mode returns the
// four quadrants in display order; year mode returns PE and Regular.
// Detections whose label matches no quadrant are not counted.
func Compliance(recs []datastore.NonViolationRecord, r DateRange, mode ComplianceMode) []NamedCount {
	counts := make(map[detection.Quadrant]int, len(detection.Quadrants))
	for i := range recs {
		if !r.Contains(recs[i].Date) {
			continue
		}
		counts[quadrantOf(&recs[i])]++
	}

	if mode == ModeYear {
		var pe, regular int
		for q, n := range counts {
			switch {
			case q.IsPE():
				pe += n
			case q.IsRegular():
				regular += n
			}
		}
		return []NamedCount{{Name: GroupPE, Value: pe}, {Name: GroupRegular, Value: regular}}
	}

	out := make([]NamedCount, len(detection.Quadrants))
	for i, q := range detection.Quadrants {
		out[i] = NamedCount{Name: string(q), Value: counts[q]}
	}
	return out
}

func quadrantOf(rec *datastore.NonViolationRecord) detection.Quadrant {
	for _, q := range detection.Quadrants {
		if rec.Quadrant == string(q) {
			return q
		}
	}
	return detection.ClassifyQuadrant(rec.RawLabel)
}
