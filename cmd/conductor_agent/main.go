package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/fare_collection_app/internal/adapters/ledgerclient"
	"github.com/SscSPs/fare_collection_app/internal/core/services"
	"github.com/SscSPs/fare_collection_app/internal/handlers"
	"github.com/SscSPs/fare_collection_app/internal/middleware"
	"github.com/SscSPs/fare_collection_app/internal/platform/config"
	"github.com/SscSPs/fare_collection_app/internal/repositories/database/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadAgentConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	queueDB, err := sqlite.OpenQueueStore(cfg.QueueDBPath)
	if err != nil {
		logger.Error("Failed to open offline queue", slog.String("path", cfg.QueueDBPath), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer queueDB.Close()
	logger.Info("Offline queue opened", slog.String("path", cfg.QueueDBPath))

	gateway := ledgerclient.New(cfg.LedgerServerURL, cfg.AgentToken)
	agent := services.NewAgentContainer(cfg, sqlite.NewQueueRepository(queueDB), gateway)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconcilerDone := make(chan struct{})
	go func() {
		defer close(reconcilerDone)
		if err := agent.Reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Reconciler stopped", slog.String("error", err.Error()))
		}
	}()

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	handlers.RegisterAgentRoutes(r, cfg, agent)

	// The device API is for the local conductor app only
	srv := &http.Server{
		Addr:              "127.0.0.1:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Conductor agent starting",
			slog.String("port", cfg.Port),
			slog.String("ledger_url", cfg.LedgerServerURL),
			slog.String("conductor_id", cfg.ConductorID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Agent API failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down conductor agent...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Agent API forced to shutdown", slog.String("error", err.Error()))
	}
	<-reconcilerDone
	logger.Info("Conductor agent exited")
}
