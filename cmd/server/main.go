package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lanternfly/imagehost/internal/config"
	"github.com/lanternfly/imagehost/internal/html"
	httphandler "github.com/lanternfly/imagehost/internal/http"
	"github.com/lanternfly/imagehost/internal/images"
	"github.com/lanternfly/imagehost/internal/storage"
	"github.com/rs/zerolog"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = newLogger(cfg)
	logger.Info().Str("backend", cfg.StorageBackend).Msg("starting lanternfly image host")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize storage
	store, blobRoot, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	provision, err := store.EnsureContainer(ctx)
	if err != nil {
		logger.Fatal().Err(err).Str("container", store.Container()).Msg("failed to provision container")
	}
	logger.Info().Str("container", store.Container()).Stringer("result", provision).Msg("container ready")

	// Initialize image service and handler
	imageService := images.NewService(store, logger)
	imageHandler := images.NewHandler(imageService, logger)

	landingPage, err := html.NewPage(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to render landing page")
	}

	// Initialize HTTP server
	server := httphandler.NewServer(cfg, logger, imageHandler, landingPage, blobRoot)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// newStore builds the configured backend. blobRoot is non-empty only for the
// local backend, whose files the HTTP server serves itself.
func newStore(ctx context.Context, cfg *config.Config) (storage.Store, string, error) {
	switch cfg.StorageBackend {
	case config.BackendAzure:
		store, err := storage.NewAzureStore(cfg.AzureConnectionString, storage.ContainerName)
		return store, "", err
	case config.BackendS3:
		store, err := storage.NewS3Store(ctx, storage.ContainerName, storage.S3Options{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3PathStyle,
			PublicPolicy:    cfg.S3PublicPolicy,
		})
		return store, "", err
	case config.BackendLocal:
		store := storage.NewLocalStore(cfg.LocalStorageDir, storage.ContainerName, cfg.LocalPublicBaseURL)
		return store, store.Root(), nil
	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
