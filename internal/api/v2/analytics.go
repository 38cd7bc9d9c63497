package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusfit/campusfit-go/internal/analytics"
	"github.com/campusfit/campusfit-go/internal/datastore"
)

// ChangeResponse is the day-over-day comparison.
type ChangeResponse struct {
	Today      string           `json:"today"`
	Yesterday  string           `json:"yesterday"`
	Violations analytics.Change `json:"violations"`
	Uniforms   analytics.Change `json:"uniforms"`
}

// PeakResponse is the busiest day of the range and the daily average.
type PeakResponse struct {
	Date          string `json:"date,omitempty"`
	Count         int    `json:"count"`
	AveragePerDay int    `json:"averagePerDay"`
}

func (c *Controller) initAnalyticsRoutes() {
	g := c.Group.Group("/analytics")
	g.GET("/timeseries", c.GetTimeSeries)
	g.GET("/ratio", c.GetRatio)
	g.GET("/ranking", c.GetRanking)
	g.GET("/compliance", c.GetCompliance)
	g.GET("/change", c.GetChange)
	g.GET("/peak", c.GetPeakDay)
	g.GET("/summary", c.GetDisciplinarySummary)
	g.GET("/dashboard", c.GetDashboard)
}

// dateRange resolves ?start=&end= or ?timeframe=, defaulting to the last week.
func (c *Controller) dateRange(ctx echo.Context) (analytics.DateRange, error) {
	start, end := ctx.QueryParam("start"), ctx.QueryParam("end")
	switch {
	case start != "" || end != "":
		return analytics.ParseDateRange(start, end)
	default:
		return analytics.RangeForTimeframe(ctx.QueryParam("timeframe"), c.today()), nil
	}
}

// snapshot reads every analytics input for r in one consistent read.
func (c *Controller) snapshot(ctx echo.Context, r analytics.DateRange) (*datastore.Snapshot, error) {
	return c.DS.Snapshot(ctx.Request().Context(), r.Filter())
}

// withSnapshot resolves the range, loads the snapshot and calls fn.
func (c *Controller) withSnapshot(ctx echo.Context, fn func(snap *datastore.Snapshot, r analytics.DateRange) any) error {
	r, err := c.dateRange(ctx)
	if err != nil {
		return c.handleServiceError(ctx, err, "Invalid date range")
	}
	snap, err := c.snapshot(ctx, r)
	if err != nil {
		return c.handleServiceError(ctx, err, "Failed to load analytics data")
	}
	return ctx.JSON(http.StatusOK, fn(snap, r))
}

// GetTimeSeries returns per-day category counts.
func (c *Controller) GetTimeSeries(ctx echo.Context) error {
	return c.withSnapshot(ctx, func(snap *datastore.Snapshot, r analytics.DateRange) any {
		return analytics.TimeSeries(snap.Violations, r)
	})
}

// GetRatio returns category shares.
func (c *Controller) GetRatio(ctx echo.Context) error {
	return c.withSnapshot(ctx, func(snap *datastore.Snapshot, r analytics.DateRange) any {
		return analytics.Ratio(snap.Violations, r)
	})
}

// GetRanking returns categories ordered by count.
func (c *Controller) GetRanking(ctx echo.Context) error {
	return c.withSnapshot(ctx, func(snap *datastore.Snapshot, r analytics.DateRange) any {
		return analytics.Ranking(snap.Violations, r)
	})
}

// GetCompliance returns compliant detections by quadrant or uniform group.
func (c *Controller) GetCompliance(ctx echo.Context) error {
	mode, err := analytics.ParseComplianceMode(ctx.QueryParam("mode"))
	if err != nil {
		return c.handleServiceError(ctx, err, "Invalid compliance mode")
	}
	return c.withSnapshot(ctx, func(snap *datastore.Snapshot, r analytics.DateRange) any {
		return analytics.Compliance(snap.NonViolations, r, mode)
	})
}

// GetChange compares today with yesterday.
func (c *Controller) GetChange(ctx echo.Context) error {
	today := c.today()
	r := analytics.RangeForTimeframe("", today)
	r.Start = r.End.AddDate(0, 0, -1)
	snap, err := c.snapshot(ctx, r)
	if err != nil {
		return c.handleServiceError(ctx, err, "Failed to load analytics data")
	}
	todayStr := r.EndDate()
	yesterdayStr := r.StartDate()
	return ctx.JSON(http.StatusOK, ChangeResponse{
		Today:     todayStr,
		Yesterday: yesterdayStr,
		Violations: analytics.PercentChange(
			analytics.CountOn(snap.Violations, todayStr),
			analytics.CountOn(snap.Violations, yesterdayStr)),
		Uniforms: analytics.UniformChange(
			analytics.CountDetectionsOn(snap.NonViolations, todayStr),
			analytics.CountDetectionsOn(snap.NonViolations, yesterdayStr)),
	})
}

// GetPeakDay returns the busiest day in the range.
func (c *Controller) GetPeakDay(ctx echo.Context) error {
	return c.withSnapshot(ctx, func(snap *datastore.Snapshot, r analytics.DateRange) any {
		resp := PeakResponse{AveragePerDay: analytics.AveragePerDay(snap.Violations, r)}
		if date, count, ok := analytics.PeakDay(snap.Violations, r); ok {
			resp.Date, resp.Count = date, count
		}
		return resp
	})
}

// GetDisciplinarySummary aggregates disciplinary records.
func (c *Controller) GetDisciplinarySummary(ctx echo.Context) error {
	department := ctx.QueryParam("department")
	return c.withSnapshot(ctx, func(snap *datastore.Snapshot, r analytics.DateRange) any {
		return analytics.SummarizeDisciplinary(snap.Disciplinary, r, department)
	})
}

// GetDashboard returns every view for the range in one response.
func (c *Controller) GetDashboard(ctx echo.Context) error {
	mode, err := analytics.ParseComplianceMode(ctx.QueryParam("mode"))
	if err != nil {
		return c.handleServiceError(ctx, err, "Invalid compliance mode")
	}
	r, err := c.dateRange(ctx)
	if err != nil {
		return c.handleServiceError(ctx, err, "Invalid date range")
	}
	today := c.today()
	snap, err := c.snapshot(ctx, analytics.SnapshotRange(r, today))
	if err != nil {
		return c.handleServiceError(ctx, err, "Failed to load analytics data")
	}
	return ctx.JSON(http.StatusOK, analytics.BuildDashboard(snap, r, today, mode))
}
