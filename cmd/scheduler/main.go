package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/catering-scheduler/internal/application"
	"github.com/example/catering-scheduler/internal/config"
	httptransport "github.com/example/catering-scheduler/internal/http"
	"github.com/example/catering-scheduler/internal/persistence"
	"github.com/example/catering-scheduler/internal/persistence/memory"
	"github.com/example/catering-scheduler/internal/persistence/postgres"
	"github.com/example/catering-scheduler/internal/persistence/sqlite"
	"github.com/example/catering-scheduler/internal/schedclient"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storage, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	schedulingService := application.NewSchedulingService(storage, logger)

	// Split deployments point the orchestrator at a remote scheduling
	// service; otherwise conflicts are checked in process.
	var checker application.ConflictChecker = schedulingService
	if cfg.SchedulingServiceURL != "" {
		checker = schedclient.New(cfg.SchedulingServiceURL, schedclient.WithTimeout(cfg.ConflictCheckTimeout))
		logger.Info("using remote conflict checker",
			"url", cfg.SchedulingServiceURL,
			"timeout", cfg.ConflictCheckTimeout)
	}
	assignmentService := application.NewAssignmentService(storage, checker, application.AssignmentPolicy{
		AllowDegraded: cfg.AllowDegradedMode(),
	}, logger)

	healthHandler := httptransport.NewHealthHandler(schedulingService, logger)
	schedulingHandler := httptransport.NewSchedulingHandler(schedulingService, logger)
	assignmentHandler := httptransport.NewAssignmentHandler(assignmentService, logger)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Health:      healthHandler,
		Scheduling:  schedulingHandler,
		Assignments: assignmentHandler,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst, logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduling service listening", "addr", server.Addr, "driver", cfg.StorageDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.Config) (persistence.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.Options{
			EnforceExclusion: cfg.EnforceExclusion,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case config.DriverMemory:
		return memory.Open(time.Now), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
