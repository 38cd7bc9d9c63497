// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// exemptCategories are the violation categories an exemption may name.
var exemptCategories = []string{"cap", "shorts", "sleeveless"}

const dateLayout = "2006-01-02"

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateSourceSettings,
		validateDetectionSettings,
		validateTrackerSettings,
		validateReviewSettings,
		validateOutputSettings,
		validateMQTTSettings,
		validateNotificationSettings,
		validateSentrySettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateSourceSettings(s *Settings) error {
	u, err := url.Parse(s.Source.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("source.url must be an http(s) URL, got %q", s.Source.URL)
	}
	if s.Source.PollInterval <= 0 {
		return fmt.Errorf("source.pollinterval must be positive")
	}
	if s.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}
	return nil
}

func validateDetectionSettings(s *Settings) error {
	if s.Detection.DedupTTL <= 0 {
		return fmt.Errorf("detection.dedupttl must be positive")
	}
	for i, ex := range s.Detection.Exemptions {
		if !containsFold(exemptCategories, ex.Category) {
			return fmt.Errorf("detection.exemptions[%d]: unknown category %q", i, ex.Category)
		}
		start, err := time.Parse(dateLayout, ex.Start)
		if err != nil {
			return fmt.Errorf("detection.exemptions[%d]: invalid start date %q", i, ex.Start)
		}
		end, err := time.Parse(dateLayout, ex.End)
		if err != nil {
			return fmt.Errorf("detection.exemptions[%d]: invalid end date %q", i, ex.End)
		}
		if end.Before(start) {
			return fmt.Errorf("detection.exemptions[%d]: end before start", i)
		}
	}
	return nil
}

func validateTrackerSettings(s *Settings) error {
	if s.Tracker.Window <= 0 || s.Tracker.RecomputeInterval <= 0 || s.Tracker.AlertDuration <= 0 {
		return fmt.Errorf("tracker window, recomputeinterval and alertduration must be positive")
	}
	return nil
}

func validateReviewSettings(s *Settings) error {
	switch s.Review.TerminalStatus {
	case TerminalStatusApproved, TerminalStatusProcessed:
	default:
		return fmt.Errorf("review.terminalstatus must be %s or %s, got %q",
			TerminalStatusApproved, TerminalStatusProcessed, s.Review.TerminalStatus)
	}
	if strings.TrimSpace(s.Review.ConfirmToken) == "" {
		return fmt.Errorf("review.confirmtoken must not be empty")
	}
	return nil
}

func validateOutputSettings(s *Settings) error {
	if !s.Output.SQLite.Enabled && !s.Output.MySQL.Enabled {
		return fmt.Errorf("one of output.sqlite or output.mysql must be enabled")
	}
	if s.Output.SQLite.Enabled && s.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path is required")
	}
	if s.Output.MySQL.Enabled && (s.Output.MySQL.Host == "" || s.Output.MySQL.Database == "") {
		return fmt.Errorf("output.mysql host and database are required")
	}
	if s.Output.Retry.MaxAttempts < 1 {
		return fmt.Errorf("output.retry.maxattempts must be at least 1")
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	if s.MQTT.Broker == "" || s.MQTT.Topic == "" {
		return fmt.Errorf("mqtt broker and topic are required when mqtt is enabled")
	}
	return nil
}

func validateNotificationSettings(s *Settings) error {
	if s.Notification.Enabled && len(s.Notification.URLs) == 0 {
		return fmt.Errorf("notification.urls must list at least one shoutrrr URL")
	}
	return nil
}

func validateSentrySettings(s *Settings) error {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	return nil
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
