package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/riandyrn/otelchi"
	"github.com/spf13/cobra"

	"github.com/neomorfeo/apiplane/internal/adapter/fsm"
	handler "github.com/neomorfeo/apiplane/internal/adapter/http"
	"github.com/neomorfeo/apiplane/internal/adapter/metrics"
	oteladapter "github.com/neomorfeo/apiplane/internal/adapter/otel"
	"github.com/neomorfeo/apiplane/internal/adapter/rbac"
	riveradapter "github.com/neomorfeo/apiplane/internal/adapter/river"
	"github.com/neomorfeo/apiplane/internal/adapter/sqlite"
	"github.com/neomorfeo/apiplane/internal/app"
	"github.com/neomorfeo/apiplane/internal/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:          "apiplane",
		Short:        "API management control plane",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			slog.SetDefault(newLogger(cfg.LogLevel))
			return nil
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the event worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrateDB(cmd.Context(), cfg.DatabasePath)
		},
	}

	root.AddCommand(serve, migrate)
	// Serve when no subcommand is given.
	root.RunE = serve.RunE

	return root
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func migrateDB(ctx context.Context, path string) error {
	store, err := sqlite.New(path)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()

	if err := riveradapter.Migrate(ctx, store.DB()); err != nil {
		return err
	}
	slog.InfoContext(ctx, "migrations applied", "database", path)
	return nil
}

// run wires every adapter and serves until ctx is canceled.
func run(ctx context.Context, cfg config.Config) error {
	// --- Telemetry ---
	providers, err := oteladapter.Setup(ctx, oteladapter.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	riverClient, err := riveradapter.Setup(ctx, db, store.Audit, cfg.Workers)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	// River stops through Stop below, not through ctx.
	if err := riverClient.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(registry)

	oracle := rbac.New(store.Memberships, rbac.Config{
		Admins:    cfg.Admins,
		CacheSize: cfg.PermissionCache.Size,
		CacheTTL:  cfg.PermissionCache.TTL.Duration,
	})

	// --- Application ---
	svc := app.New(app.Deps{
		APIs:          oteladapter.NewTracingAPIRepository(store.APIs),
		Plans:         store.Plans,
		Subscriptions: oteladapter.NewTracingSubscriptionRepository(store.Subscriptions),
		Applications:  store.Applications,
		Memberships:   store.Memberships,
		Pages:         store.Pages,
		Alerts:        store.Alerts,
		Audit:         store.Audit,
		Oracle:        oracle,
		Validator:     fsm.New(),
		Publisher:     oteladapter.NewTracingPublisher(riveradapter.NewPublisher(riverClient)),
		Metrics:       recorder,
		Cache:         oracle,
	}, app.Options{
		ReviewEnabled: cfg.ReviewEnabled,
		StrictIfMatch: cfg.StrictIfMatch,
	})

	// --- Adapters (in) ---
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(svc, recorder, db),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("apiplane listening", "addr", srv.Addr, "docs", "/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("river shutdown", "error", err)
	}

	slog.Info("stopped")
	return nil
}

func newRouter(svc *app.Services, recorder *metrics.Recorder, db *sql.DB) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("apiplane", otelchi.WithChiRoutes(router)))

	router.Handle("/metrics", recorder.Handler())

	api := humachi.New(router, huma.DefaultConfig("apiplane", version))
	handler.Register(api, svc)
	handler.RegisterHealth(api, db.PingContext)

	return router
}
