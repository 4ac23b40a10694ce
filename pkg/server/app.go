package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "HelixPull/internal/domain/repository"
	mid "HelixPull/internal/middleware"
	"HelixPull/internal/service/broadcast"
	pkgch "HelixPull/pkg/clickhouse"
	"HelixPull/pkg/config"
	xhttp "HelixPull/pkg/http"
	pkgkafka "HelixPull/pkg/kafka"
	applogger "HelixPull/pkg/logger"
)

// Runner is a long-lived worker driven by the app lifecycle. Each
// stream collector is one Runner; a failing Runner affects nobody else.
type Runner interface {
	Run(ctx context.Context)
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	collectors []Runner
	pipeline   *mid.PersistPipeline
	hub        *broadcast.Hub
	httpServer *xhttp.Server

	consumer *pkgkafka.Consumer
	handlers []pkgkafka.MessageHandler

	chClient    *pkgch.Client
	producer    *pkgkafka.Producer
	latestStore domrepo.LatestStore
}

// New creates the App with all dependencies injected. Optional pieces
// (consumer, producer, latest store) may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collectors []Runner,
	pipeline *mid.PersistPipeline,
	hub *broadcast.Hub,
	httpHandler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	latestStore domrepo.LatestStore,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		collectors: collectors,
		pipeline:   pipeline,
		hub:        hub,
		httpServer: xhttp.NewServer(httpHandler,
			xhttp.WithPort(cfg.Server.Port),
			xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		),
		consumer:    consumer,
		handlers:    handlers,
		chClient:    chClient,
		producer:    producer,
		latestStore: latestStore,
	}
}

// Run starts every component and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.pipeline.Start(ctx)

	for _, c := range a.collectors {
		go c.Run(ctx)
	}
	a.log.Info("stream collectors started",
		applogger.Int("collectors", len(a.collectors)),
		applogger.Strings("symbols", a.cfg.Symbols()),
	)

	if a.consumer != nil && len(a.handlers) > 0 {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started",
			applogger.String("group", a.cfg.Kafka.Consumer.GroupID),
		)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops components in dependency order: ingestion first, then
// the fan-out and pipeline, then infrastructure clients.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.hub.Close()
	a.pipeline.Stop(shutdownCtx)

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.latestStore != nil {
		if err := a.latestStore.Close(); err != nil {
			a.log.Warn("latest store close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
