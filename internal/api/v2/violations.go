package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/campusfit/campusfit-go/internal/analytics"
	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/logger"
	"github.com/campusfit/campusfit-go/internal/review"
)

const maxViolationPageSize = 500

func (c *Controller) initViolationRoutes() {
	c.Group.GET("/violations", c.ListViolations)
	c.Group.GET("/violations/:id", c.GetViolation)
	c.Group.POST("/violations/:id/approve", c.ApproveViolation)
	c.Group.DELETE("/violations/:id", c.DenyViolation)
	c.Group.GET("/disciplinary", c.ListDisciplinary)
}

// ListViolations returns violations filtered by status, category and date.
func (c *Controller) ListViolations(ctx echo.Context) error {
	filter := datastore.ViolationFilter{
		DateFilter: datastore.DateFilter{
			StartDate: ctx.QueryParam("start"),
			EndDate:   ctx.QueryParam("end"),
		},
		Category: ctx.QueryParam("category"),
	}
	if filter.StartDate != "" && filter.EndDate != "" {
		if _, err := analytics.ParseDateRange(filter.StartDate, filter.EndDate); err != nil {
			return c.handleServiceError(ctx, err, "Invalid date range")
		}
	}
	if s := ctx.QueryParam("status"); s != "" {
		filter.Statuses = strings.Split(s, ",")
	}
	if s := ctx.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return c.HandleError(ctx, err, "Invalid limit", http.StatusBadRequest)
		}
		filter.Limit = min(n, maxViolationPageSize)
	}
	if s := ctx.QueryParam("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return c.HandleError(ctx, err, "Invalid offset", http.StatusBadRequest)
		}
		filter.Offset = n
	}

	recs, err := c.Reviews.List(ctx.Request().Context(), filter)
	if err != nil {
		return c.handleServiceError(ctx, err, "Failed to list violations")
	}
	return ctx.JSON(http.StatusOK, recs)
}

// GetViolation returns one violation.
func (c *Controller) GetViolation(ctx echo.Context) error {
	rec, err := c.Reviews.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.handleServiceError(ctx, err, "Violation not found")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// ApproveViolation finalizes a violation with the offending student's details.
func (c *Controller) ApproveViolation(ctx echo.Context) error {
	var details review.StudentDetails
	if err := ctx.Bind(&details); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	reviewer := c.reviewer(ctx)
	rec, err := c.Reviews.Approve(ctx.Request().Context(), ctx.Param("id"), reviewer, details)
	if err != nil {
		return c.handleServiceError(ctx, err, "Failed to approve violation")
	}
	if c.Monitor != nil {
		c.Monitor.ViolationUpdated(rec)
	}
	c.logger.Info("violation approved",
		logger.String("id", rec.ID),
		logger.String("reviewer", reviewer))
	return ctx.JSON(http.StatusOK, rec)
}

// DenyViolation rejects a pending violation, removing it.
func (c *Controller) DenyViolation(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	id := ctx.Param("id")

	rec, err := c.Reviews.Get(reqCtx, id)
	if err != nil {
		return c.handleServiceError(ctx, err, "Violation not found")
	}
	if err := c.Reviews.Deny(reqCtx, id, c.reviewer(ctx)); err != nil {
		return c.handleServiceError(ctx, err, "Failed to deny violation")
	}
	if c.Monitor != nil {
		c.Monitor.ViolationRemoved(rec.ID, rec.SourceID)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ListDisciplinary returns disciplinary records.
func (c *Controller) ListDisciplinary(ctx echo.Context) error {
	filter := datastore.DisciplinaryFilter{
		DateFilter: datastore.DateFilter{
			StartDate: ctx.QueryParam("start"),
			EndDate:   ctx.QueryParam("end"),
		},
		Department:    ctx.QueryParam("department"),
		StudentNumber: ctx.QueryParam("student"),
	}
	recs, err := c.DS.QueryDisciplinary(ctx.Request().Context(), filter)
	if err != nil {
		return c.handleServiceError(ctx, err, "Failed to list disciplinary records")
	}
	return ctx.JSON(http.StatusOK, recs)
}
