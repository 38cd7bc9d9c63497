// Package analytics computes compliance views over persisted records. All
// functions are pure and safe to call concurrently.
package analytics

import (
	"math"
	"sort"

	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/detection"
)

// categoryColors gives every canonical category a fixed chart color.
var categoryColors = map[detection.Category]string{
	detection.CategoryCap:        "#8884d8",
	detection.CategoryShorts:     "#82ca9d",
	detection.CategorySleeveless: "#ff6b6b",
	detection.CategoryOther:      "#ffc658",
}

// CategoryOf returns the canonical category of a violation. A stored
// category wins; otherwise the raw label is classified.
func CategoryOf(rec *datastore.ViolationRecord) detection.Category {
	if c, ok := detection.ParseCategory(rec.Category); ok {
		return c
	}
	return detection.ClassifyCategory(rec.RawLabel)
}

// DailyCounts is one time series bucket.
type DailyCounts struct {
	Date   string                     `json:"date"`
	Counts map[detection.Category]int `json:"counts"`
	Total  int                        `json:"total"`
}

// TimeSeries returns one bucket per day in r, including empty days.
func TimeSeries(recs []datastore.ViolationRecord, r DateRange) []DailyCounts {
	dates := r.Dates()
	index := make(map[string]int, len(dates))
	series := make([]DailyCounts, len(dates))
	for i, d := range dates {
		index[d] = i
		counts := make(map[detection.Category]int, len(detection.Categories))
		for _, c := range detection.Categories {
			counts[c] = 0
		}
		series[i] = DailyCounts{Date: d, Counts: counts}
	}

	for i := range recs {
		idx, ok := index[recs[i].Date]
		if !ok {
			continue
		}
		series[idx].Counts[CategoryOf(&recs[i])]++
		series[idx].Total++
	}
	return series
}

// RatioEntry is one slice of the category ratio view.
type RatioEntry struct {
	Name  detection.Category `json:"name"`
	Value int                `json:"value"`
	Share float64            `json:"share"`
	Color string             `json:"color"`
}

// Ratio returns each category's share of the violations in r. Categories
// with no violations are omitted; values sum to the filtered total.
func Ratio(recs []datastore.ViolationRecord, r DateRange) []RatioEntry {
	counts, total := countCategories(FilterViolations(recs, r))
	if total == 0 {
		return []RatioEntry{}
	}
	out := make([]RatioEntry, 0, len(counts))
	for _, c := range detection.Categories {
		n := counts[c]
		if n == 0 {
			continue
		}
		out = append(out, RatioEntry{
			Name:  c,
			Value: n,
			Share: float64(n) / float64(total),
			Color: categoryColors[c],
		})
	}
	return out
}

func countCategories(recs []datastore.ViolationRecord) (map[detection.Category]int, int) {
	counts := make(map[detection.Category]int, len(detection.Categories))
	for i := range recs {
		counts[CategoryOf(&recs[i])]++
	}
	return counts, len(recs)
}

// NamedCount is a label with its count.
type NamedCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Ranking returns categories by count, highest first. Equal counts keep the
// order in which the categories were first seen.
func Ranking(recs []datastore.ViolationRecord, r DateRange) []NamedCount {
	c := newCounter()
	for i := range recs {
		if r.Contains(recs[i].Date) {
			c.add(string(CategoryOf(&recs[i])))
		}
	}
	return c.ranked()
}

// counter counts labels and remembers first-seen order.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(name string) {
	if _, ok := c.counts[name]; !ok {
		c.order = append(c.order, name)
	}
	c.counts[name]++
}

func (c *counter) ranked() []NamedCount {
	out := make([]NamedCount, len(c.order))
	for i, name := range c.order {
		out[i] = NamedCount{Name: name, Value: c.counts[name]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// Change compares two daily counts.
type Change struct {
	Percent        int  `json:"percent"`
	Increased      bool `json:"increased"`
	Difference     int  `json:"difference"`
	TodayCount     int  `json:"todayCount"`
	YesterdayCount int  `json:"yesterdayCount"`
}

// PercentChange compares today's violation count with yesterday's. With no
// violations yesterday any violation today counts as a 100% increase.
func PercentChange(today, yesterday int) Change {
	ch := Change{TodayCount: today, YesterdayCount: yesterday}
	if yesterday == 0 {
		ch.Increased = today > 0
		ch.Difference = today
		if today > 0 {
			ch.Percent = 100
		}
		return ch
	}
	diff := today - yesterday
	ch.Difference = absInt(diff)
	ch.Increased = diff > 0
	ch.Percent = int(math.Round(float64(ch.Difference) / float64(yesterday) * 100))
	return ch
}

// UniformChange compares compliant detection counts. Unlike PercentChange
// an empty yesterday reports no change.
func UniformChange(today, yesterday int) Change {
	if yesterday == 0 {
		return Change{TodayCount: today, Difference: today}
	}
	return PercentChange(today, yesterday)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// PeakDay returns the date with the most violations in r. Ties go to the
// earliest date. ok is false when r holds no violations.
func PeakDay(recs []datastore.ViolationRecord, r DateRange) (date string, count int, ok bool) {
	byDate := make(map[string]int)
	for i := range recs {
		if r.Contains(recs[i].Date) {
			byDate[recs[i].Date]++
		}
	}
	for d, n := range byDate {
		if n > count || (n == count && d < date) {
			date, count = d, n
		}
	}
	return date, count, count > 0
}

// AveragePerDay returns the violations in r divided by the days in r,
// rounded to the nearest whole number.
func AveragePerDay(recs []datastore.ViolationRecord, r DateRange) int {
	total := 0
	for i := range recs {
		if r.Contains(recs[i].Date) {
			total++
		}
	}
	return int(math.Round(float64(total) / float64(r.Days())))
}

// CountOn counts violations dated on date.
func CountOn(recs []datastore.ViolationRecord, date string) int {
	n := 0
	for i := range recs {
		if recs[i].Date == date {
			n++
		}
	}
	return n
}

// CountDetectionsOn counts compliant detections dated on date.
func CountDetectionsOn(recs []datastore.NonViolationRecord, date string) int {
	n := 0
	for i := range recs {
		if recs[i].Date == date {
			n++
		}
	}
	return n
}
