// internal/api/v2/api.go
package api

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campusfit/campusfit-go/internal/buildinfo"
	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/evidence"
	"github.com/campusfit/campusfit-go/internal/logger"
	"github.com/campusfit/campusfit-go/internal/monitor"
	"github.com/campusfit/campusfit-go/internal/review"
)

// ReviewerHeader carries the reviewer identity. Authentication happens in
// front of this API.
const ReviewerHeader = "X-Reviewer"

// GetLogger returns the module logger for the API
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// MonitorState is the part of the live monitor the API reads and updates.
type MonitorState interface {
	Snapshot() monitor.Snapshot
	ViolationRemoved(id, sourceID string)
	ViolationUpdated(v *datastore.ViolationRecord)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings
	Reviews  *review.Manager
	DS       datastore.Interface
	Monitor  MonitorState    // optional, nil in report-only setups
	Evidence *evidence.Store // optional, uploads return 503 without it
	Metrics  http.Handler    // optional prometheus handler
	Build    *buildinfo.Context
	logger   logger.Logger
	location *time.Location
	now      func() time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithMonitor attaches the live monitor.
func WithMonitor(m MonitorState) Option {
	return func(c *Controller) { c.Monitor = m }
}

// WithEvidence attaches the evidence store used by uploads.
func WithEvidence(s *evidence.Store) Option {
	return func(c *Controller) { c.Evidence = s }
}

// WithMetricsHandler exposes h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *Controller) { c.Metrics = h }
}

// WithBuildInfo reports build metadata from /health.
func WithBuildInfo(info *buildinfo.Context) Option {
	return func(c *Controller) { c.Build = info }
}

// WithClock overrides the time source used for "today".
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates the API controller and registers its routes under /api/v2.
func New(e *echo.Echo, ds datastore.Interface, reviews *review.Manager, settings *conf.Settings, opts ...Option) *Controller {
	c := &Controller{
		Echo:     e,
		Group:    e.Group("/api/v2"),
		Settings: settings,
		Reviews:  reviews,
		DS:       ds,
		logger:   GetLogger(),
		location: settings.Location(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/monitor/state", c.GetMonitorState)

	c.initViolationRoutes()
	c.initConcernRoutes()
	c.initAnalyticsRoutes()
	c.Group.POST("/uploads", c.UploadEvidence)

	if c.Metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.Metrics))
	}
}

// HealthCheck reports liveness
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": c.Build.GetVersion(),
	})
}

// GetMonitorState returns the live monitor snapshot
func (c *Controller) GetMonitorState(ctx echo.Context) error {
	if c.Monitor == nil {
		return c.HandleError(ctx, nil, "Monitor is not running", http.StatusServiceUnavailable)
	}
	return ctx.JSON(http.StatusOK, c.Monitor.Snapshot())
}

// today returns the current time in the configured location.
func (c *Controller) today() time.Time {
	return c.now().In(c.location)
}

// reviewer returns the acting reviewer for a request.
func (c *Controller) reviewer(ctx echo.Context) string {
	if r := ctx.Request().Header.Get(ReviewerHeader); r != "" {
		return r
	}
	return c.Settings.Review.DefaultReviewer
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error         string            `json:"error"`
	Message       string            `json:"message"`
	Code          int               `json:"code"`
	Fields        map[string]string `json:"fields,omitempty"`
	CorrelationID string            `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	resp := &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
	var fields review.ValidationErrors
	if errors.As(err, &fields) {
		resp.Fields = fields
	}
	return resp
}

// generateCorrelationID creates a short random identifier for error tracking
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err and writes it as a JSON error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)
	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.logger.Error("API error", fields...)
	} else {
		c.logger.Debug("API request rejected", fields...)
	}
	return ctx.JSON(code, resp)
}

// handleServiceError maps a domain error to its HTTP status.
func (c *Controller) handleServiceError(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.IsNotFound(err), errors.Is(err, review.ErrNotFound):
		return http.StatusNotFound
	case errors.IsConflict(err), errors.Is(err, review.ErrAlreadyFinalized),
		errors.Is(err, review.ErrConfirmationRequired):
		return http.StatusConflict
	case errors.IsCategory(err, errors.CategoryTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
