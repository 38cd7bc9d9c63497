// conf/config.go settings model and loading for campusfit
package conf

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings holds process identity settings
type MainSettings struct {
	Name     string // node name used in alerts and MQTT client IDs
	Timezone string // IANA timezone used for calendar-date bucketing
}

// SourceSettings configures the detection feed poller
type SourceSettings struct {
	URL                string        // polling endpoint, e.g. http://127.0.0.1:5000/api/detection
	PollInterval       time.Duration // fixed poll period
	Timeout            time.Duration // per-request timeout
	FailureLogInterval time.Duration // minimum gap between repeated transport failure logs
}

// Exemption allows a violation category during a date window
type Exemption struct {
	Category string `yaml:"category"`
	Start    string `yaml:"start"` // YYYY-MM-DD inclusive
	End      string `yaml:"end"`   // YYYY-MM-DD inclusive
}

// DetectionSettings configures deduplication and exemptions
type DetectionSettings struct {
	DedupTTL   time.Duration // how long accepted source IDs are remembered
	Exemptions []Exemption
}

// TrackerSettings configures the rolling violation rate tracker
type TrackerSettings struct {
	Window            time.Duration // trailing window for hourly count
	RecomputeInterval time.Duration // cleanup tick
	AlertDuration     time.Duration // active/alert flag lifetime
}

// ReviewSettings configures the review lifecycle
type ReviewSettings struct {
	TerminalStatus   string        // Approved or Processed
	ConfirmToken     string        // literal required to confirm concern deletion
	DeleteRequestTTL time.Duration // lifetime of a pending delete request
	DefaultReviewer  string        // reviewer identity when the API caller supplies none
}

// SQLiteSettings configures the embedded database
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings configures the server database
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

// RetrySettings configures store write retries
type RetrySettings struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// OutputSettings selects and configures the persistent store
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
	Retry  RetrySettings
}

// WebServerSettings configures the REST API
type WebServerSettings struct {
	Enabled bool
	Listen  string
}

// EvidenceSettings configures evidence file storage
type EvidenceSettings struct {
	Path          string // root directory for uploads
	DefaultFolder string // folder used when the caller gives none
	MaxSizeMB     int
}

// MQTTSettings configures alert publishing over MQTT
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	Username string
	Password string
	Retain   bool
}

// NotificationSettings configures shoutrrr push alerts
type NotificationSettings struct {
	Enabled bool
	URLs    []string
	Timeout time.Duration
}

// SentrySettings configures error telemetry
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings contains all configuration options
type Settings struct {
	Debug bool

	Main         MainSettings
	Source       SourceSettings
	Detection    DetectionSettings
	Tracker      TrackerSettings
	Review       ReviewSettings
	Output       OutputSettings
	WebServer    WebServerSettings
	Evidence     EvidenceSettings
	MQTT         MQTTSettings
	Notification NotificationSettings
	Sentry       SentrySettings
	Logging      logger.LoggingConfig
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables using the
// global viper instance, which cobra flags are bound to.
func Load() (*Settings, error) {
	settings, err := LoadFrom(viper.GetViper())
	if err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// LoadFrom reads settings through v. When v has no explicit config file and
// none is found on the default paths, the embedded defaults are used.
func LoadFrom(v *viper.Viper) (*Settings, error) {
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if err := readConfig(v); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

func readConfig(v *viper.Viper) error {
	if v.ConfigFileUsed() != "" {
		return v.ReadInConfig()
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range GetDefaultConfigPaths() {
		v.AddConfigPath(path)
	}

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	GetLogger().Info("no config file found, using embedded defaults")
	return v.ReadConfig(bytes.NewReader(getDefaultConfig()))
}

// GetDefaultConfigPaths returns the directories searched for config.yaml.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "campusfit"))
	}
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/campusfit")
	}
	return paths
}

// getDefaultConfig returns the embedded default config.yaml.
func getDefaultConfig() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return data
}

// GetSettings returns the settings loaded by Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically via a temp file.
// Comments and ordering of an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// Location returns the configured timezone, falling back to local time.
func (s *Settings) Location() *time.Location {
	if s.Main.Timezone == "" || s.Main.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Main.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
