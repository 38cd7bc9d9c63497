// Package monitor implements the long-running "monitor" command: detection
// ingestion, rate tracking, alert fan-out and the HTTP API.
package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	api "github.com/campusfit/campusfit-go/internal/api/v2"
	"github.com/campusfit/campusfit-go/internal/buildinfo"
	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/datastore"
	"github.com/campusfit/campusfit-go/internal/detection"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/evidence"
	"github.com/campusfit/campusfit-go/internal/httpclient"
	"github.com/campusfit/campusfit-go/internal/ingest"
	"github.com/campusfit/campusfit-go/internal/logger"
	"github.com/campusfit/campusfit-go/internal/monitor"
	"github.com/campusfit/campusfit-go/internal/mqtt"
	"github.com/campusfit/campusfit-go/internal/notification"
	"github.com/campusfit/campusfit-go/internal/observability"
	"github.com/campusfit/campusfit-go/internal/ratetracker"
	"github.com/campusfit/campusfit-go/internal/review"
)

const shutdownTimeout = 10 * time.Second

// Command creates the monitor command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Poll the detection feed and serve the review API",
		Long:  "Continuously poll the detection feed, record violations for review, track the hourly violation rate and serve the REST API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings, info)
		},
	}
}

// Run wires every component and blocks until ctx is cancelled.
func Run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) error {
	log := logger.Global().Module("main")
	log.Info("starting campusfit",
		logger.String("version", info.GetVersion()),
		logger.String("build_date", info.GetBuildDate()),
		logger.String("node", settings.Main.Name))

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	store, err := datastore.New(settings)
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close store", logger.Error(err))
		}
	}()
	datastore.SetMetrics(store, m.Datastore)

	reviewOpts := review.OptionsFromSettings(settings.Review)
	reviewOpts.Observer = m.Review
	reviews := review.NewManager(store, reviewOpts)

	exemptions, err := exemptionsFromSettings(settings.Detection.Exemptions)
	if err != nil {
		return err
	}

	client := httpclient.New(&httpclient.Config{
		DefaultTimeout: settings.Source.Timeout,
		UserAgent:      info.UserAgent(),
	})
	poller := ingest.NewPoller(settings.Source.URL, client,
		ingest.WithObserver(m.Ingest),
		ingest.WithFailureLogInterval(settings.Source.FailureLogInterval))

	sinks, closeSinks := alertSinks(ctx, settings, m, log)
	defer closeSinks()

	mon := monitor.New(monitor.ConfigFromSettings(settings), monitor.Deps{
		Source:    poller,
		Dedup:     detection.NewDeduplicator(settings.Detection.DedupTTL, exemptions),
		Tracker:   ratetracker.New(ratetracker.RealClock{}, settings.Tracker.Window, settings.Tracker.AlertDuration),
		Reviews:   reviews,
		Store:     store,
		Sinks:     sinks,
		Decisions: m.Ingest,
		States:    m.Tracker,
	})
	if err := mon.Start(ctx); err != nil {
		return err
	}

	var server *echo.Echo
	serverErr := make(chan error, 1)
	if settings.WebServer.Enabled {
		server, err = newServer(settings, info, store, reviews, mon, m)
		if err != nil {
			_ = mon.Stop()
			return err
		}
		go func() {
			if err := server.Start(settings.WebServer.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
		log.Info("HTTP API listening", logger.String("listen", settings.WebServer.Listen))
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case runErr = <-serverErr:
		log.Error("HTTP server failed", logger.Error(runErr))
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server shutdown failed", logger.Error(err))
		}
		cancel()
	}
	if err := mon.Stop(); err != nil {
		log.Warn("monitor stopped with error", logger.Error(err))
	}
	return runErr
}

func newServer(settings *conf.Settings, info *buildinfo.Context, store datastore.Interface, reviews *review.Manager, mon *monitor.Monitor, m *observability.Metrics) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			api.GetLogger().Debug("request",
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status))
			return nil
		},
	}))

	opts := []api.Option{
		api.WithMonitor(mon),
		api.WithMetricsHandler(m.Handler()),
		api.WithBuildInfo(info),
	}
	ev, err := evidence.NewFromSettings(settings.Evidence)
	if err != nil {
		return nil, err
	}
	opts = append(opts, api.WithEvidence(ev))
	api.New(e, store, reviews, settings, opts...)
	return e, nil
}

// alertSinks builds the enabled alert sinks. A sink that fails to start is
// logged and skipped so alerts never block monitoring.
func alertSinks(ctx context.Context, settings *conf.Settings, m *observability.Metrics, log logger.Logger) (sinks []monitor.AlertSink, closeFn func()) {
	var closers []func()

	if settings.MQTT.Enabled {
		client, err := mqtt.NewClient(settings, m.Alerts)
		if err != nil {
			log.Error("MQTT disabled", logger.Error(err))
		} else {
			if err := client.Connect(ctx); err != nil {
				log.Warn("MQTT broker not reachable, will retry on publish", logger.Error(err))
			}
			sinks = append(sinks, mqtt.NewPublisher(client, settings.MQTT.Topic, settings.Main.Name, m.Alerts))
			closers = append(closers, client.Disconnect)
		}
	}

	if settings.Notification.Enabled {
		sender, err := notification.NewSenderFromSettings(settings, m.Alerts)
		if err != nil {
			log.Error("push notifications disabled", logger.Error(err))
		} else {
			sinks = append(sinks, sender)
		}
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}

func exemptionsFromSettings(in []conf.Exemption) ([]detection.Exemption, error) {
	out := make([]detection.Exemption, 0, len(in))
	for _, x := range in {
		ex, err := detection.NewExemption(x.Category, x.Start, x.End)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}
