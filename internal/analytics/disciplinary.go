package analytics

import (
	"sort"

	"github.com/campusfit/campusfit-go/internal/datastore"
)

// Offender is a student with more than one disciplinary record.
type Offender struct {
	StudentNumber string `json:"studentNumber"`
	StudentName   string `json:"studentName"`
	Department    string `json:"department"`
	Count         int    `json:"count"`
	LatestDate    string `json:"latestDate"`
}

// DisciplinarySummary aggregates disciplinary records.
type DisciplinarySummary struct {
	Total           int          `json:"total"`
	ByDepartment    []NamedCount `json:"byDepartment"`
	ByYearLevel     []NamedCount `json:"byYearLevel"`
	ByProgram       []NamedCount `json:"byProgram"`
	ByCategory      []NamedCount `json:"byCategory"`
	RepeatOffenders []Offender   `json:"repeatOffenders"`
}

// SummarizeDisciplinary aggregates records dated in r, optionally limited
// to one department.
func SummarizeDisciplinary(recs []datastore.DisciplinaryRecord, r DateRange, department string) DisciplinarySummary {
	dept, year, program, category := newCounter(), newCounter(), newCounter(), newCounter()
	offenders := make(map[string]*Offender)
	var order []string

	total := 0
	for i := range recs {
		rec := &recs[i]
		if !r.Contains(rec.Date) || (department != "" && rec.Department != department) {
			continue
		}
		total++
		dept.add(rec.Department)
		year.add(rec.YearLevel)
		program.add(rec.Program)
		category.add(rec.Category)

		o, ok := offenders[rec.StudentNumber]
		if !ok {
			o = &Offender{StudentNumber: rec.StudentNumber}
			offenders[rec.StudentNumber] = o
			order = append(order, rec.StudentNumber)
		}
		o.Count++
		if rec.Date >= o.LatestDate {
			o.LatestDate = rec.Date
			o.StudentName = rec.StudentName
			o.Department = rec.Department
		}
	}

	repeat := make([]Offender, 0)
	for _, num := range order {
		if o := offenders[num]; o.Count > 1 {
			repeat = append(repeat, *o)
		}
	}
	sort.SliceStable(repeat, func(i, j int) bool {
		if repeat[i].Count != repeat[j].Count {
			return repeat[i].Count > repeat[j].Count
		}
		return repeat[i].StudentNumber < repeat[j].StudentNumber
	})

	return DisciplinarySummary{
		Total:           total,
		ByDepartment:    dept.ranked(),
		ByYearLevel:     year.ranked(),
		ByProgram:       program.ranked(),
		ByCategory:      category.ranked(),
		RepeatOffenders: repeat,
	}
}
