package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"FxPredict/internal/domain/models"
	"FxPredict/internal/handler/api"
	"FxPredict/internal/scheduler"
	"FxPredict/internal/usecase"
	pkgch "FxPredict/pkg/clickhouse"
	"FxPredict/pkg/config"
	xhttp "FxPredict/pkg/http"
	pkgkafka "FxPredict/pkg/kafka"
	applogger "FxPredict/pkg/logger"
)

// App owns the process lifecycle: HTTP API, snapshot scheduler and snapshot consumer.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	scheduler  *scheduler.Scheduler
	consumer   *pkgkafka.Consumer
	processor  *usecase.SnapshotProcessor
	hub        *api.StreamHub
	chClient   *pkgch.Client
	closers    []io.Closer
}

// New assembles the App; scheduler, consumer and chClient may be nil when disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
	processor *usecase.SnapshotProcessor,
	hub *api.StreamHub,
	chClient *pkgch.Client,
	closers ...io.Closer,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		scheduler:  sched,
		consumer:   consumer,
		processor:  processor,
		hub:        hub,
		chClient:   chClient,
		closers:    closers,
	}
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			a.shutdown()
			return err
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start()
		if a.cfg.Scheduler.RunOnStart {
			go a.scheduler.RunNow()
		}
	}

	a.log.Info("fxpredict started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("backend", a.cfg.Backend.Type),
		applogger.Strings("currencies", models.DefaultCurrencySet().Codes()),
		applogger.Int("port", a.cfg.Server.Port),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

// shutdown stops producers of work before the sinks they write to.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.log.Warn("scheduler stop error", applogger.Error(err))
		}
	}
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.processor != nil {
		a.processor.Close()
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
