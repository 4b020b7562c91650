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

	"go.uber.org/zap"

	"github.com/Pland4r/project-ai/internal/analysis"
	"github.com/Pland4r/project-ai/internal/api"
	"github.com/Pland4r/project-ai/internal/config"
	"github.com/Pland4r/project-ai/internal/llm"
	"github.com/Pland4r/project-ai/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	summarizer, err := llm.FromConfig(cfg.Summary)
	if err != nil {
		return err
	}

	// Initialize Handler
	handler := api.NewHandler(api.Options{
		UploadDir:      cfg.Server.UploadDir,
		MaxFileSize:    int64(cfg.Server.MaxUploadMB) * 1024 * 1024,
		SummaryTimeout: cfg.Summary.Timeout(),
		Pipeline:       analysis.NewPipeline(analysis.Options{Ceiling: cfg.Cleaning.Ceiling}, logger),
		Summarizer:     summarizer,
		DefaultDSN:     cfg.Database.DSN(),
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("upload_dir", cfg.Server.UploadDir),
			zap.Strings("cors_origins", cfg.Server.AllowedOrigins),
			zap.String("summary_provider", cfg.Summary.Provider),
			zap.Float64("ceiling", cfg.Cleaning.Ceiling),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
