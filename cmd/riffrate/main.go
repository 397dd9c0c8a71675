package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"riffrate/internal/config"
	"riffrate/internal/logging"
)

func main() {
	_ = godotenv.Load("config/local.env")

	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Config{}).Fatal(err, "load configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.SetGlobalLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "initialise dependencies")
	}
	defer deps.Close()

	repo := newRepository(cfg, deps, logger)

	if cfg.SeedDemo {
		if err := seedDemoReviews(ctx, repo, logger); err != nil {
			logger.Fatal(err, "seed demo reviews")
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           newHTTPHandler(cfg, repo, deps.verifier, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "graceful shutdown")
		}
	}()

	logger.Zerolog().Info().
		Str("addr", srv.Addr).
		Str("store", cfg.Store.Backend).
		Str("auth", cfg.Auth.Mode).
		Msg("riffrate API listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err, "server error")
	}
	logger.Info("server stopped")
}
