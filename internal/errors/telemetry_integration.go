package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
	capture func(*sentry.Event)
}

// NewSentryReporter creates a Sentry reporter. sentry.Init must have been
// called by the caller when enabled is true.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{
		enabled: enabled,
		capture: func(e *sentry.Event) { sentry.CaptureEvent(e) },
	}
}

func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError sends ee to Sentry once, scrubbing URLs and tokens from the message.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}
	ee.MarkReported()

	title := generateErrorTitle(ee)
	message := ScrubURLs(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))

	event := sentry.NewEvent()
	event.Message = message
	event.Level = getErrorLevel(ee.Category)
	event.Tags = map[string]string{
		"error_title": title,
		"component":   ee.Component,
		"category":    string(ee.Category),
		"error_type":  fmt.Sprintf("%T", ee.Err),
	}
	event.Fingerprint = []string{title, ee.Component, string(ee.Category)}
	event.Exception = []sentry.Exception{{Type: title, Value: message}}
	for key, value := range ee.GetContext() {
		if s, ok := value.(string); ok {
			value = ScrubURLs(s)
		}
		event.Contexts[key] = sentry.Context{"value": value}
	}

	sr.capture(event)
}

var titleCaser = cases.Title(language.English)

// generateErrorTitle builds a grouping title like "Review Conflict Approve Violation".
func generateErrorTitle(ee *EnhancedError) string {
	var parts []string
	if ee.Component != "" && ee.Component != ComponentUnknown {
		parts = append(parts, titleCaser.String(ee.Component))
	}
	parts = append(parts, titleCaser.String(strings.ReplaceAll(string(ee.Category), "-", " ")))
	if op, ok := ee.Context["operation"].(string); ok && op != "" {
		parts = append(parts, titleCaser.String(strings.ReplaceAll(op, "_", " ")))
	}
	return strings.Join(parts, " ")
}

func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryTimeout, CategoryMQTTPublish, CategoryNotification:
		return sentry.LevelWarning
	case CategoryValidation, CategoryConflict, CategoryNotFound:
		return sentry.LevelInfo
	default:
		return sentry.LevelError
	}
}

var globalTelemetryReporter atomic.Pointer[TelemetryReporter]

// SetTelemetryReporter sets the global telemetry reporter; nil disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	if reporter == nil {
		globalTelemetryReporter.Store(nil)
		return
	}
	globalTelemetryReporter.Store(&reporter)
}

func reportToTelemetry(ee *EnhancedError) {
	p := globalTelemetryReporter.Load()
	if p == nil {
		return
	}
	if r := *p; r.IsEnabled() {
		r.ReportError(ee)
	}
}

var (
	urlQueryRegex = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	secretRegexes = []*regexp.Regexp{
		regexp.MustCompile(`api[_-]?key[=:]\S+`),
		regexp.MustCompile(`token[=:]\S+`),
		regexp.MustCompile(`password[=:]\S+`),
	}
)

// ScrubURLs strips query strings and obvious credentials from a message.
func ScrubURLs(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	for _, re := range secretRegexes {
		scrubbed = re.ReplaceAllString(scrubbed, "[REDACTED]")
	}
	return scrubbed
}
