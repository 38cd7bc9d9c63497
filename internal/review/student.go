package review

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/campusfit/campusfit-go/internal/detection"
)

// StudentDetails is the reviewer input required to approve a violation.
type StudentDetails struct {
	StudentNumber      string `json:"studentNumber"`
	StudentName        string `json:"studentName"`
	Department         string `json:"department"`
	Program            string `json:"program"`
	YearLevel          string `json:"yearLevel"`
	Date               string `json:"date"`                         // YYYY-MM-DD
	ViolationTicketRef string `json:"violationTicketRef,omitempty"` // defaults to the violation source ID
	Notes              string `json:"notes,omitempty"`
}

var (
	studentNumberPattern = regexp.MustCompile(`^\d{7}$`)
	fullNamePattern      = regexp.MustCompile(`^[A-Za-z]+(\s+[A-Za-z]+)+$`)
)

// YearLevels are the accepted year levels.
var YearLevels = []string{"1st Year", "2nd Year", "3rd Year", "4th Year", "5th Year"}

// Departments are the accepted department codes in display order.
var Departments = []string{"CBE", "CCS", "CEA", "CoA", "CoE"}

// Programs lists the programs offered by each department. Spellings match
// historical records.
var Programs = map[string][]string{
	"CBE": {
		"Accountancy",
		"Accounting Information Sytems",
		"Financial Management",
		"Human Resource Management",
		"Logistics and Supply Management",
		"Marketing Management",
	},
	"CCS": {
		"Computer Science",
		"Data Science and Analytics",
		"Information Systems",
		"Information Technology",
	},
	"CEA": {
		"Architecture",
		"Civil Engineering",
		"Computer Engineering",
		"Electrical Engineering",
		"Electronics Engineering",
		"Environmental and Sanitary Engineering",
		"Industrial Engineering",
		"Mechanical Engineering",
	},
	"CoA": {
		"BA English",
		"BA Political Science",
	},
	"CoE": {
		"BSE Major in English",
		"BSE Major in Mathematics",
		"BSE Major in Sciences",
		"Bachelor of Special Needs Education",
	},
}

// Validate checks every field and returns all problems at once, or nil.
func (s StudentDetails) Validate() error {
	errs := ValidationErrors{}

	switch num := strings.TrimSpace(s.StudentNumber); {
	case num == "":
		errs["studentNumber"] = "student number is required"
	case !studentNumberPattern.MatchString(num):
		errs["studentNumber"] = "student number must be exactly 7 digits"
	}

	switch name := strings.TrimSpace(s.StudentName); {
	case name == "":
		errs["studentName"] = "student name is required"
	case !fullNamePattern.MatchString(name):
		errs["studentName"] = "enter first and last name using letters only"
	}

	programs, knownDept := Programs[s.Department]
	switch {
	case s.Department == "":
		errs["department"] = "department is required"
	case !knownDept:
		errs["department"] = "unknown department"
	}

	switch {
	case s.Program == "":
		errs["program"] = "program is required"
	case knownDept && !slices.Contains(programs, s.Program):
		errs["program"] = "program is not offered by " + s.Department
	}

	switch {
	case s.YearLevel == "":
		errs["yearLevel"] = "year level is required"
	case !slices.Contains(YearLevels, s.YearLevel):
		errs["yearLevel"] = "unknown year level"
	}

	if s.Date == "" {
		errs["date"] = "date is required"
	} else if _, err := time.Parse(detection.DateLayout, s.Date); err != nil {
		errs["date"] = "date must be YYYY-MM-DD"
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
