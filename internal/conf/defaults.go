// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Terminal review status names accepted in review.terminalstatus.
const (
	TerminalStatusApproved  = "Approved"
	TerminalStatusProcessed = "Processed"
)

// DefaultConfirmToken is the literal that confirms a destructive delete.
const DefaultConfirmToken = "confirm"

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "campusfit")
	v.SetDefault("main.timezone", "Local")

	v.SetDefault("source.url", "http://127.0.0.1:5000/api/detection")
	v.SetDefault("source.pollinterval", 500*time.Millisecond)
	v.SetDefault("source.timeout", 2*time.Second)
	v.SetDefault("source.failureloginterval", 30*time.Second)

	v.SetDefault("detection.dedupttl", 24*time.Hour)
	v.SetDefault("detection.exemptions", []Exemption{})

	v.SetDefault("tracker.window", time.Hour)
	v.SetDefault("tracker.recomputeinterval", time.Minute)
	v.SetDefault("tracker.alertduration", 5*time.Second)

	v.SetDefault("review.terminalstatus", TerminalStatusApproved)
	v.SetDefault("review.confirmtoken", DefaultConfirmToken)
	v.SetDefault("review.deleterequestttl", 5*time.Minute)
	v.SetDefault("review.defaultreviewer", "staff")

	v.SetDefault("output.sqlite.enabled", true)
	v.SetDefault("output.sqlite.path", "campusfit.db")
	v.SetDefault("output.mysql.enabled", false)
	v.SetDefault("output.mysql.host", "localhost")
	v.SetDefault("output.mysql.port", "3306")
	v.SetDefault("output.mysql.database", "campusfit")
	v.SetDefault("output.retry.maxattempts", 3)
	v.SetDefault("output.retry.initialdelay", 100*time.Millisecond)
	v.SetDefault("output.retry.maxdelay", 2*time.Second)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", ":8080")

	v.SetDefault("evidence.path", "data")
	v.SetDefault("evidence.defaultfolder", "uploads")
	v.SetDefault("evidence.maxsizemb", 10)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "campusfit/violations")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.timeout", 10*time.Second)

	v.SetDefault("sentry.enabled", false)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/campusfit.log")
	v.SetDefault("logging.file_output.level", "info")
}
