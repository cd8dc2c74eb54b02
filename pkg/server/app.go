package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"daytrade/internal/usecase"
	pkgch "daytrade/pkg/clickhouse"
	"daytrade/pkg/config"
	xhttp "daytrade/pkg/http"
	pkgkafka "daytrade/pkg/kafka"
	applogger "daytrade/pkg/logger"
	"daytrade/pkg/queue"
)

// App encapsulates the long-running service: the HTTP API plus the
// optional stream ingestor, Kafka consumer, and background queue.
type App struct {
	cfg    *config.Config
	logger *applogger.Logger

	httpHandler xhttp.Handler
	httpServer  *xhttp.Server

	consumer   *pkgkafka.Consumer
	barHandler pkgkafka.MessageHandler
	queue      *queue.RedisQueue
	buildJob   queue.Job
	ingestor   *usecase.StreamIngestor
	chClient   *pkgch.Client
}

// New creates the app. Any of consumer, queue, ingestor, and chClient
// may be nil when that subsystem is disabled by config.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpHandler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	barHandler pkgkafka.MessageHandler,
	q *queue.RedisQueue,
	buildJob queue.Job,
	ingestor *usecase.StreamIngestor,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:         cfg,
		logger:      l,
		httpHandler: httpHandler,
		consumer:    consumer,
		barHandler:  barHandler,
		queue:       q,
		buildJob:    buildJob,
		ingestor:    ingestor,
		chClient:    chClient,
	}
}

// Run starts every configured subsystem and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.logger, a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.ingestor != nil {
		go func() {
			if err := a.ingestor.Run(ctx); err != nil {
				a.logger.Error("stream ingestor error", applogger.Error(err))
			}
		}()
		a.logger.Info("stream ingestor started", applogger.Strings("symbols", a.cfg.Market.Symbols))
	}

	if a.consumer != nil && a.barHandler != nil {
		a.consumer.RegisterHandler(a.barHandler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.barHandler.Topic()))
	}

	if a.queue != nil {
		if a.buildJob != nil {
			a.queue.RegisterJob(a.buildJob)
		}
		if err := a.queue.Start(); err != nil {
			a.logger.Error("queue start error", applogger.Error(err))
			return err
		}
		a.logger.Info("background queue started")
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops subsystems in reverse start order.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
