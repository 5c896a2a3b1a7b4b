package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"QuantBench/internal/domain/repository"
	"QuantBench/internal/usecase"
	pkgch "QuantBench/pkg/clickhouse"
	"QuantBench/pkg/config"
	xhttp "QuantBench/pkg/http"
	pkgkafka "QuantBench/pkg/kafka"
	applogger "QuantBench/pkg/logger"
	"QuantBench/pkg/queue"
)

// App encapsulates the entire application lifecycle. Every collaborator
// except the HTTP handler is optional: a nil field means the corresponding
// subsystem is disabled in config and simply never starts.
type App struct {
	cfg *config.Config
	log *applogger.Logger

	collector *usecase.PriceCollector
	consumer  *pkgkafka.Consumer
	signals   *usecase.SignalIngest
	jobQueue  *queue.RedisQueue
	async     *usecase.AsyncBacktest
	store     repository.ResultStore
	chClient  *pkgch.Client
	producer  *pkgkafka.Producer

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.PriceCollector,
	consumer *pkgkafka.Consumer,
	signals *usecase.SignalIngest,
	jobQueue *queue.RedisQueue,
	async *usecase.AsyncBacktest,
	store repository.ResultStore,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		collector:   collector,
		consumer:    consumer,
		signals:     signals,
		jobQueue:    jobQueue,
		async:       async,
		store:       store,
		chClient:    chClient,
		producer:    producer,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ensure result tables exist before anything writes to them.
	if a.store != nil {
		initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
		err := a.store.Init(initCtx)
		initCancel()
		if err != nil {
			return err
		}
		a.log.Info("result store ready", applogger.String("database", a.cfg.ClickHouse.Database))
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestLogger(a.log),
	)

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.log.Error("price collector error", applogger.Error(err))
			}
		}()
		a.log.Info("price collector started", applogger.Strings("symbols", a.cfg.Stream.Symbols))
	}

	if a.consumer != nil && a.signals != nil {
		a.consumer.RegisterHandler(a.signals)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("signal consumer started", applogger.String("topic", a.signals.Topic()))
	}

	if a.jobQueue != nil && a.async != nil {
		a.jobQueue.RegisterJob(a.async)
		if err := a.jobQueue.Start(); err != nil {
			a.log.Error("job queue start error", applogger.Error(err))
			return err
		}
		a.log.Info("job queue started", applogger.Int("workers", a.cfg.Queue.Workers))
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
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services in reverse start order.
func (a *App) shutdown(ctx context.Context) error {
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("price collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
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
