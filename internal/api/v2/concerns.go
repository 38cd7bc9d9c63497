package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/review"
)

// ReviewUpdateRequest is the body of PATCH /concerns/:id/review.
type ReviewUpdateRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// DeleteConfirmRequest is the body of DELETE /concerns/:id.
type DeleteConfirmRequest struct {
	Token string `json:"token"`
}

// DeleteRequestResponse tells the client how long the request stays open.
type DeleteRequestResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c *Controller) initConcernRoutes() {
	c.Group.GET("/concerns", c.ListConcerns)
	c.Group.POST("/concerns", c.SubmitConcern)
	c.Group.GET("/concerns/:id", c.GetConcern)
	c.Group.PATCH("/concerns/:id/review", c.UpdateConcernReview)
	c.Group.POST("/concerns/:id/delete-request", c.RequestConcernDelete)
	c.Group.DELETE("/concerns/:id", c.ConfirmConcernDelete)
}

// ListConcerns returns concerns or permits of one kind.
func (c *Controller) ListConcerns(ctx echo.Context) error {
	kind := ctx.QueryParam("kind")
	if kind == "" {
		kind = datastore.KindConcern
	}
	recs, err := c.Reviews.ListConcerns(ctx.Request().Context(), kind, ctx.QueryParam("subject"))
	if err != nil {
		return c.handleServiceError(ctx, err, "Failed to list concerns")
	}
	return ctx.JSON(http.StatusOK, recs)
}

// SubmitConcern files a new concern or permit request.
func (c *Controller) SubmitConcern(ctx echo.Context) error {
	var s review.Submission
	if err := ctx.Bind(&s); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	rec, err := c.Reviews.Submit(ctx.Request().Context(), s)
	if err != nil {
		return c.handleServiceError(ctx, err, "Failed to submit concern")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

// GetConcern returns one concern or permit.
func (c *Controller) GetConcern(ctx echo.Context) error {
	rec, err := c.Reviews.GetConcern(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.handleServiceError(ctx, err, "Concern not found")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// UpdateConcernReview sets the review status of a concern or permit.
func (c *Controller) UpdateConcernReview(ctx echo.Context) error {
	var req ReviewUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	rec, err := c.Reviews.UpdateReview(ctx.Request().Context(), ctx.Param("id"), c.reviewer(ctx), req.Status, req.Notes)
	if err != nil {
		return c.handleServiceError(ctx, err, "Failed to update review")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// RequestConcernDelete opens a delete request that must be confirmed.
func (c *Controller) RequestConcernDelete(ctx echo.Context) error {
	id := ctx.Param("id")
	expires, err := c.Reviews.RequestDelete(ctx.Request().Context(), id)
	if err != nil {
		return c.handleServiceError(ctx, err, "Failed to request delete")
	}
	return ctx.JSON(http.StatusAccepted, DeleteRequestResponse{ID: id, ExpiresAt: expires})
}

// ConfirmConcernDelete deletes a concern after a matching confirmation.
func (c *Controller) ConfirmConcernDelete(ctx echo.Context) error {
	var req DeleteConfirmRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if err := c.Reviews.ConfirmDelete(ctx.Request().Context(), ctx.Param("id"), req.Token); err != nil {
		return c.handleServiceError(ctx, err, "Failed to delete concern")
	}
	return ctx.NoContent(http.StatusNoContent)
}
