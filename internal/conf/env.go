// env.go - environment variable bindings for campusfit
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "CAMPUSFIT_DEBUG", validateEnvBool},
		{"main.timezone", "CAMPUSFIT_TIMEZONE", nil},

		{"source.url", "CAMPUSFIT_SOURCE_URL", validateEnvURL},

		{"output.sqlite.path", "CAMPUSFIT_SQLITE_PATH", nil},
		{"output.mysql.enabled", "CAMPUSFIT_MYSQL_ENABLED", validateEnvBool},
		{"output.mysql.host", "CAMPUSFIT_MYSQL_HOST", nil},
		{"output.mysql.port", "CAMPUSFIT_MYSQL_PORT", validateEnvPort},
		{"output.mysql.username", "CAMPUSFIT_MYSQL_USERNAME", nil},
		{"output.mysql.password", "CAMPUSFIT_MYSQL_PASSWORD", nil},
		{"output.mysql.database", "CAMPUSFIT_MYSQL_DATABASE", nil},

		{"webserver.listen", "CAMPUSFIT_LISTEN", nil},

		{"mqtt.broker", "CAMPUSFIT_MQTT_BROKER", validateEnvURL},
		{"mqtt.username", "CAMPUSFIT_MQTT_USERNAME", nil},
		{"mqtt.password", "CAMPUSFIT_MQTT_PASSWORD", nil},

		{"sentry.dsn", "CAMPUSFIT_SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars binds every environment variable and validates values that are set.
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}
