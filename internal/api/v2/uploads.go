package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// UploadResponse carries the stored evidence reference.
type UploadResponse struct {
	Path string `json:"path"`
}

// UploadEvidence stores a multipart "file" under the optional "folder".
func (c *Controller) UploadEvidence(ctx echo.Context) error {
	if c.Evidence == nil {
		return c.HandleError(ctx, nil, "Evidence storage is not configured", http.StatusServiceUnavailable)
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return c.HandleError(ctx, err, "Missing file", http.StatusBadRequest)
	}
	src, err := fh.Open()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read upload", http.StatusBadRequest)
	}
	defer src.Close()

	ref, err := c.Evidence.Upload(src, fh.Filename, ctx.FormValue("folder"))
	if err != nil {
		return c.handleServiceError(ctx, err, "Failed to store upload")
	}
	return ctx.JSON(http.StatusCreated, UploadResponse{Path: ref})
}
