package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"haven/client"
	"haven/internal/api"
	"haven/internal/config"
	"haven/internal/logging"
	"haven/internal/middleware"
	"haven/internal/snapshot"
	"haven/internal/storage"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Snapshot database; in memory when the cache is disabled
	dbPath := cfg.Database.Path
	if !cfg.Cache.Enabled {
		dbPath = ""
	}
	db, err := storage.OpenDB(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	store, err := snapshot.New(db, snapshot.Options{
		CacheSize:       cfg.Cache.Size,
		CompressMinSize: cfg.Cache.CompressMinSize,
	})
	if err != nil {
		logger.Fatal("failed to initialize snapshot store", zap.Error(err))
	}

	backend := client.New(cfg.Backend.BaseURL,
		client.WithTimeout(time.Duration(cfg.Backend.Timeout)),
		client.WithLogger(logger.Logger),
	)
	source := snapshot.NewSource(backend, store, false, logger.Logger)

	mux := http.NewServeMux()
	api.NewHandler(source, backend, logger).Routes(mux)

	// Apply middleware; RequestID is outermost so every log line carries it
	handler := middleware.Chain(
		mux,
		middleware.Recover(logger),
		middleware.Logger(logger),
		middleware.RequestID,
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("address", srv.Addr),
		zap.String("backend", backend.BaseURL()),
		zap.String("environment", cfg.Environment),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
