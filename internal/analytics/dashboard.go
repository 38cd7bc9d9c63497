package analytics

import (
	"time"

	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/detection"
)

// PeakDayInfo is the busiest day of a range.
type PeakDayInfo struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Dashboard bundles every view for one range.
type Dashboard struct {
	StartDate         string              `json:"startDate"`
	EndDate           string              `json:"endDate"`
	TotalViolations   int                 `json:"totalViolations"`
	TotalDetections   int                 `json:"totalDetections"`
	TimeSeries        []DailyCounts       `json:"timeSeries"`
	Ratio             []RatioEntry        `json:"ratio"`
	Ranking           []NamedCount        `json:"ranking"`
	Compliance        []NamedCount        `json:"compliance"`
	ComplianceMode    ComplianceMode      `json:"complianceMode"`
	ViolationChange   Change              `json:"violationChange"`
	UniformChange     Change              `json:"uniformChange"`
	ComparedToday     string              `json:"comparedToday"`
	ComparedYesterday string              `json:"comparedYesterday"`
	PeakDay           *PeakDayInfo        `json:"peakDay,omitempty"`
	AveragePerDay     int                 `json:"averagePerDay"`
	Disciplinary      DisciplinarySummary `json:"disciplinary"`
}

// SnapshotRange widens r so a snapshot also covers today and yesterday for
// the day-over-day comparison.
func SnapshotRange(r DateRange, today time.Time) DateRange {
	t := truncateDay(today)
	y := t.AddDate(0, 0, -1)
	out := r
	if y.Before(out.Start) {
		out.Start = y
	}
	if t.After(out.End) {
		out.End = t
	}
	return out
}

// BuildDashboard computes every view from snap. snap should cover
// SnapshotRange(r, today).
func BuildDashboard(snap *datastore.Snapshot, r DateRange, today time.Time, mode ComplianceMode) Dashboard {
	t := truncateDay(today)
	todayStr := t.Format(detection.DateLayout)
	yesterdayStr := t.AddDate(0, 0, -1).Format(detection.DateLayout)

	violations := FilterViolations(snap.Violations, r)
	detections := FilterNonViolations(snap.NonViolations, r)
	if mode == "" {
		mode = ModeQuadrant
	}

	d := Dashboard{
		StartDate:         r.StartDate(),
		EndDate:           r.EndDate(),
		TotalViolations:   len(violations),
		TotalDetections:   len(detections),
		TimeSeries:        TimeSeries(violations, r),
		Ratio:             Ratio(violations, r),
		Ranking:           Ranking(violations, r),
		Compliance:        Compliance(detections, r, mode),
		ViolationChange:   PercentChange(CountOn(snap.Violations, todayStr), CountOn(snap.Violations, yesterdayStr)),
		UniformChange:     UniformChange(CountDetectionsOn(snap.NonViolations, todayStr), CountDetectionsOn(snap.NonViolations, yesterdayStr)),
		AveragePerDay:     AveragePerDay(violations, r),
		Disciplinary:      SummarizeDisciplinary(snap.Disciplinary, r, ""),
		ComplianceMode:    mode,
		ComparedToday:     todayStr,
		ComparedYesterday: yesterdayStr,
	}
	if date, n, ok := PeakDay(violations, r); ok {
		d.PeakDay = &PeakDayInfo{Date: date, Count: n}
	}
	return d
}
