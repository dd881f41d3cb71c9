package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	drepo "GexFlow/internal/domain/repository"
	"GexFlow/internal/service/chainfeed"
	"GexFlow/internal/usecase"
	pkgch "GexFlow/pkg/clickhouse"
	"GexFlow/pkg/config"
	xhttp "GexFlow/pkg/http"
	pkgkafka "GexFlow/pkg/kafka"
	applogger "GexFlow/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	provider *chainfeed.Client
	monitor  *usecase.LevelMonitor
	handler  xhttp.Handler

	httpServer *xhttp.Server

	// infrastructure clients, any may be nil when disabled
	producer *pkgkafka.Producer
	chClient *pkgch.Client
	mirror   drepo.SnapshotMirror

	// seedCache runs a background sweep; the app stops it on shutdown
	seedCache interface{ Close() }
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	provider *chainfeed.Client,
	monitor *usecase.LevelMonitor,
	handler xhttp.Handler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	mirror drepo.SnapshotMirror,
	seedCache interface{ Close() },
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		provider:  provider,
		monitor:   monitor,
		handler:   handler,
		producer:  producer,
		chClient:  chClient,
		mirror:    mirror,
		seedCache: seedCache,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.provider.Connect(ctx); err != nil {
		return err
	}

	if err := a.monitor.Start(ctx); err != nil {
		// no automatic retry: the chain stays unloaded until an explicit
		// reload through the API
		a.log.Error("chain load failed", applogger.Error(err))
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
	if err := a.httpServer.Start(); err != nil {
		return err
	}

	a.log.Info("gexflow running",
		applogger.String("underlying", a.cfg.Underlying),
		applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops everything best-effort: each failure is logged and the
// remaining releases still run.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.monitor.Shutdown(ctx); err != nil {
		a.log.Warn("monitor stop error", applogger.Error(err))
	}
	if err := a.provider.Close(); err != nil {
		a.log.Warn("provider close error", applogger.Error(err))
	}

	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Warn("http shutdown error", applogger.Error(err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.log.Warn("mirror close error", applogger.Error(err))
		}
	}
	if a.seedCache != nil {
		a.seedCache.Close()
	}

	a.log.Info("shutdown complete")
	return nil
}
