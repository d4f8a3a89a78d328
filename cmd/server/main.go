// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/timesheet-relay/internal/api"
	"github.com/andresuchdata/timesheet-relay/internal/api/handlers"
	"github.com/andresuchdata/timesheet-relay/internal/config"
	"github.com/andresuchdata/timesheet-relay/internal/history"
	"github.com/andresuchdata/timesheet-relay/internal/relay"
	"github.com/andresuchdata/timesheet-relay/internal/storage"
	"github.com/andresuchdata/timesheet-relay/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// A missing relay variable is reported per invocation, not at startup.
	if err := cfg.Relay.Validate(); err != nil {
		logger.Log.Warn().Err(err).Msg("relay configuration incomplete, invocations will fail")
	}

	ctx := context.Background()

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to initialize object storage")
	}

	runs, err := history.New(ctx, cfg.History)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("backend", cfg.History.Backend).Msg("Failed to initialize run history")
	}
	defer runs.Close()

	relayHandler := relay.NewHandler(relay.New(cfg.Relay, objects), runs)

	router := api.NewRouter(&api.Services{
		Relay:     relayHandler,
		Runs:      runs,
		Snapshots: handlers.NewSnapshotsHandler(objects, cfg.Relay.Bucket, relay.KeyPrefix),
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Str("storage", cfg.Storage.Backend).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
