package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"docbench/internal/app"
	"docbench/internal/config"
	"docbench/internal/handler"
	"docbench/internal/logger"
	"docbench/internal/repository/postgres"
	"docbench/internal/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "docbench-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("DOCBENCH_CONFIG"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(cfg.Log, os.Stderr)
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build validation core: %w", err)
	}
	defer func() { _ = core.Close() }()

	handlers := router.Handlers{
		Validation: handler.NewValidationHandler(core.Validation),
	}

	var pinger handler.Pinger
	if cfg.FineTune.Enabled {
		db, err := postgres.NewDB(ctx, &cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		pinger = db

		fineTuneSvc, err := app.NewFineTuneService(ctx, cfg, db, log)
		if err != nil {
			return fmt.Errorf("failed to build fine-tune service: %w", err)
		}
		handlers.FineTune = handler.NewFineTuneHandler(fineTuneSvc)
	} else {
		log.Info().Msg("fine-tune workflow disabled")
	}
	handlers.Health = handler.NewHealthHandler(pinger)

	r := router.Setup(handlers, log, router.Options{
		CORSOrigins:        cfg.Server.CORSOrigins,
		MaxMultipartMemory: app.MaxFileSize(cfg),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return serve(ctx, srv, log)
}

func serve(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
