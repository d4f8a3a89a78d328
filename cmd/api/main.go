// Command api hosts the relay alone, the way a single-function deployment
// invokes it: every request to / or /relay triggers one relay run.
package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andresuchdata/timesheet-relay/internal/config"
	"github.com/andresuchdata/timesheet-relay/internal/relay"
	"github.com/andresuchdata/timesheet-relay/internal/storage"
	"github.com/andresuchdata/timesheet-relay/pkg/logger"
	"github.com/gorilla/mux"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Configure(cfg.Log.Level, cfg.Log.Format)

	objects, err := storage.New(context.Background(), cfg.Storage)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize object storage")
	}

	// Create router
	r := mux.NewRouter()

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Register routes
	relayHandler := relay.NewHandler(relay.New(cfg.Relay, objects), nil)
	relayHandler.RegisterRoutes(r)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Log.Info().Str("addr", addr).Msg("Relay function listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server stopped")
	}
}
