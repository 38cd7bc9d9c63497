package cmd

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/campusfit/campusfit-go/cmd/monitor"
	"github.com/campusfit/campusfit-go/cmd/report"
	"github.com/campusfit/campusfit-go/internal/buildinfo"
	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
)

const sentryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command. settings is filled in
// before any sub-command runs.
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "campusfit",
		Short:         "CampusFit dress-code monitoring",
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		monitor.Command(settings, info),
		report.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		}
		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded
		return initialize(settings, info)
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if settings.Sentry.Enabled {
			sentry.Flush(sentryFlushTimeout)
		}
		_ = logger.Global().Flush()
	}

	return rootCmd
}

// initialize sets up logging and error telemetry from loaded settings.
func initialize(settings *conf.Settings, info *buildinfo.Context) error {
	logCfg := settings.Logging
	if settings.Debug {
		logCfg.DefaultLevel = "debug"
		if logCfg.Console != nil {
			console := *logCfg.Console
			console.Level = "debug"
			logCfg.Console = &console
		}
	}
	central, err := logger.NewCentralLogger(&logCfg)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(central)

	if settings.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              settings.Sentry.DSN,
			ServerName:       settings.Main.Name,
			Release:          info.GetVersion(),
			AttachStacktrace: true,
		}); err != nil {
			return errors.New(err).
				Component("cmd").
				Category(errors.CategoryConfiguration).
				Context("operation", "sentry_init").
				Build()
		}
	}
	errors.SetTelemetryReporter(errors.NewSentryReporter(settings.Sentry.Enabled))
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config.yaml")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("source", "", "Detection feed URL")
	flags.String("listen", "", "HTTP API listen address")
	flags.String("db", "", "SQLite database path")

	bindings := map[string]string{
		"debug":              "debug",
		"source.url":         "source",
		"webserver.listen":   "listen",
		"output.sqlite.path": "db",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
