package analytics

import (
	"time"

	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/detection"
	"github.com/campusfit/campusfit-go/internal/errors"
)

// Timeframes accepted by RangeForTimeframe.
const (
	TimeframeWeek  = "week"
	TimeframeMonth = "month"
	TimeframeYear  = "year"
)

// maxRangeDays bounds per-day series so a typo cannot allocate years of buckets.
const maxRangeDays = 366 * 5

// DateRange is a closed range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses two YYYY-MM-DD dates into a range.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(detection.DateLayout, start)
	if err != nil {
		return DateRange{}, rangeError("start date must be YYYY-MM-DD", start, end)
	}
	e, err := time.Parse(detection.DateLayout, end)
	if err != nil {
		return DateRange{}, rangeError("end date must be YYYY-MM-DD", start, end)
	}
	if e.Before(s) {
		return DateRange{}, rangeError("end date is before start date", start, end)
	}
	r := DateRange{Start: s, End: e}
	if r.Days() > maxRangeDays {
		return DateRange{}, rangeError("date range is too long", start, end)
	}
	return r, nil
}

func rangeError(msg, start, end string) error {
	return errors.New(errors.NewStd(msg)).
		Component("analytics").
		Category(errors.CategoryValidation).
		Context("start", start).
		Context("end", end).
		Build()
}

// RangeForTimeframe returns the range ending on today's calendar date:
// 7 days for week, 30 for month, 365 for year.
func RangeForTimeframe(timeframe string, today time.Time) DateRange {
	end := truncateDay(today)
	days := 7
	switch timeframe {
	case TimeframeMonth:
		days = 30
	case TimeframeYear:
		days = 365
	}
	return DateRange{Start: end.AddDate(0, 0, -(days - 1)), End: end}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Days returns the number of calendar days in the range, inclusive.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// StartDate returns the first day as YYYY-MM-DD.
func (r DateRange) StartDate() string { return r.Start.Format(detection.DateLayout) }

// EndDate returns the last day as YYYY-MM-DD.
func (r DateRange) EndDate() string { return r.End.Format(detection.DateLayout) }

// Dates lists every day in the range in order.
func (r DateRange) Dates() []string {
	dates := make([]string, 0, r.Days())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(detection.DateLayout))
	}
	return dates
}

// Contains reports whether a YYYY-MM-DD date lies in the range. The check
// is by calendar date only; malformed dates are never contained.
func (r DateRange) Contains(date string) bool {
	d, err := time.Parse(detection.DateLayout, date)
	if err != nil {
		return false
	}
	return !d.Before(r.Start) && !d.After(r.End)
}

// Filter returns the store filter for the range.
func (r DateRange) Filter() datastore.DateFilter {
	return datastore.DateFilter{StartDate: r.StartDate(), EndDate: r.EndDate()}
}

// FilterViolations keeps violations dated inside r.
func FilterViolations(recs []datastore.ViolationRecord, r DateRange) []datastore.ViolationRecord {
	out := make([]datastore.ViolationRecord, 0, len(recs))
	for i := range recs {
		if r.Contains(recs[i].Date) {
			out = append(out, recs[i])
		}
	}
	return out
}

// FilterNonViolations keeps detections dated inside r.
func FilterNonViolations(recs []datastore.NonViolationRecord, r DateRange) []datastore.NonViolationRecord {
	out := make([]datastore.NonViolationRecord, 0, len(recs))
	for i := range recs {
		if r.Contains(recs[i].Date) {
			out = append(out, recs[i])
		}
	}
	return out
}
