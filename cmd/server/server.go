// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/courtsidehq/courtside/internal/admission"
	"github.com/courtsidehq/courtside/internal/api"
	"github.com/courtsidehq/courtside/internal/api/blocks"
	"github.com/courtsidehq/courtside/internal/api/checkin"
	"github.com/courtsidehq/courtside/internal/api/courts"
	"github.com/courtsidehq/courtside/internal/cache"
	"github.com/courtsidehq/courtside/internal/config"
	"github.com/courtsidehq/courtside/internal/ratelimit"
	"github.com/courtsidehq/courtside/internal/session"
	"github.com/courtsidehq/courtside/internal/store"
)

func newServer(cfg *config.Config, st store.Store) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	registerRoutes(router, cfg, st)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, cfg *config.Config, st store.Store) {
	checker := admission.NewChecker(admission.Config{
		GeofenceRadiusMiles: cfg.Checkin.GeofenceRadiusMiles,
		AccuracyWarnMeters:  cfg.Checkin.AccuracyWarnMeters,
		BlockDenyWindow:     time.Duration(cfg.Checkin.BlockDenyWindowMins) * time.Minute,
		BlockWarnWindow:     time.Duration(cfg.Checkin.BlockWarnWindowMins) * time.Minute,
	})
	manager, err := session.NewManager(st)
	if err != nil {
		panic(err)
	}

	availabilityCache := cache.New(cfg.CacheTTL(), nil)
	limiter := ratelimit.New(nil)
	courts.InitHandlers(st, availabilityCache)
	checkin.InitHandlers(st, checker, manager, limiter)
	blocks.InitHandlers(st)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Check-in routes
	mux.HandleFunc("/api/v1/checkin", checkin.HandleCheckin)
	mux.HandleFunc("/api/v1/checkout", checkin.HandleCheckout)

	// Court availability routes
	mux.HandleFunc("/api/v1/courts/availability", courts.HandleAvailability)
	mux.HandleFunc("/api/v1/courts/wait", courts.HandleWaitEstimate)
	mux.HandleFunc("/api/v1/courts/roster", courts.HandleRoster)

	// Block administration routes
	mux.HandleFunc("/api/v1/blocks", blocks.HandleCreateBlock)
	mux.HandleFunc("/api/v1/blocks/cancel", blocks.HandleCancelBlock)
	mux.HandleFunc("/api/v1/blocks/recurring", blocks.HandleCreateRecurringBlock)
}
