package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "AOWI/internal/middleware"
	"AOWI/internal/usecase"
	"AOWI/pkg/config"
	xhttp "AOWI/pkg/http"
	applogger "AOWI/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	loop       *usecase.DispatchLoop
	pipeline   *mid.OutcomePipeline
	httpServer *xhttp.Server

	summary *usecase.RunSummary
}

// New creates a new App instance with all dependencies. httpServer may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	loop *usecase.DispatchLoop,
	pipeline *mid.OutcomePipeline,
	httpServer *xhttp.Server,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log.With(applogger.String("component", "app")),
		loop:       loop,
		pipeline:   pipeline,
		httpServer: httpServer,
	}
}

// Summary returns the finished run, or nil before Run returns.
func (a *App) Summary() *usecase.RunSummary { return a.summary }

// Run executes the dispatch run and shuts everything down. SIGINT and SIGTERM
// stop the loop between cycles. The returned error is the loop's, if any.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.pipeline.Start(ctx)

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			a.shutdown()
			return err
		}
	}

	a.log.Info("dispatch starting",
		applogger.String("environment", a.cfg.Environment),
		applogger.String("mode", a.cfg.Broker.Mode),
		applogger.Int("cycles", a.cfg.Dispatch.CycleBudget()),
	)
	summary, err := a.loop.Run(ctx)
	a.summary = summary

	if err == nil && a.httpServer != nil && a.cfg.Server.HoldOpen {
		a.log.Info("cycle budget spent, serving until interrupted", applogger.String("addr", a.httpServer.Addr()))
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
		case serr := <-a.httpServer.Errors():
			a.log.Error("http server stopped unexpectedly", applogger.Error(serr))
		}
	}

	a.shutdown()
	return err
}

// shutdown stops the API, then flushes and releases the sinks.
func (a *App) shutdown() {
	a.log.Info("shutting down...")

	if a.httpServer != nil {
		if err := a.httpServer.Stop(context.Background()); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	// the loop drains on its own; this covers a start failure before Run
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout(a.cfg))
	if err := a.pipeline.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("outcome pipeline drain incomplete", applogger.Error(err))
	}
	cancel()
	if err := a.pipeline.Close(); err != nil {
		a.log.Warn("outcome sink close error", applogger.Error(err))
	}
	a.log.Info("shutdown complete")
}

func drainTimeout(cfg *config.Config) time.Duration {
	if cfg.Dispatch.DrainTimeout > 0 {
		return cfg.Dispatch.DrainTimeout
	}
	return 5 * time.Second
}
