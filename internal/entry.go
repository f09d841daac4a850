// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/skillvault/internal/api"
	"github.com/starford/skillvault/internal/keylock"
	"github.com/starford/skillvault/internal/linkgraph"
	"github.com/starford/skillvault/internal/render"
	"github.com/starford/skillvault/internal/seeding"
	"github.com/starford/skillvault/internal/skillservice"
	"github.com/starford/skillvault/internal/sse"
	"github.com/starford/skillvault/internal/storage"
	"github.com/starford/skillvault/internal/store"
)

// App holds the wired components shared by every command.
type App struct {
	Config *Config
	Logger *slog.Logger
	DB     *store.DB
	Links  *linkgraph.Synchronizer
	Skills *skillservice.Service
	Broker *sse.Broker
	// Seeder is nil when no templates directory is configured.
	Seeder *seeding.Seeder
}

// Close releases the broker and the database.
func (a *App) Close() error {
	if a.Broker != nil {
		a.Broker.Close()
	}
	return a.DB.Close()
}

// New builds the application from options. The caller must Close it.
func New(ctx context.Context, opts ...Option) (*App, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(app.logOutput, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("ownership_policy", cfg.Links.OwnershipPolicy),
		slog.String("templates_dir", cfg.Seeding.TemplatesDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	links := linkgraph.New(db,
		linkgraph.WithPolicy(linkgraph.Policy(cfg.Links.OwnershipPolicy)),
		linkgraph.WithLogger(logger))
	locks := keylock.New()
	broker := sse.NewBroker(cfg.Events.GraphThrottle, cfg.Events.KeepAlive)
	skills := skillservice.New(db, links, render.New(db, cfg.Render.SkillsPrefix),
		skillservice.WithLogger(logger),
		skillservice.WithPublisher(broker),
		skillservice.WithLocker(locks))

	a := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Links:  links,
		Skills: skills,
		Broker: broker,
	}

	if dir := cfg.Seeding.TemplatesDir; dir != "" {
		templates, err := storage.OpenFolder(dir, false)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("init templates: %w", err)
		}
		a.Seeder = seeding.New(db, links, templates, logger, seeding.WithLocker(locks))
	}

	return a, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Seed refreshes seeded skills and seeds userID (or the configured seed user
// when userID is empty).
func (a *App) Seed(ctx context.Context, userID string) (seeding.SyncResult, seeding.Result, error) {
	if a.Seeder == nil {
		return seeding.SyncResult{}, seeding.Result{}, fmt.Errorf("seeding: templates_dir is not configured")
	}
	synced, err := a.Seeder.SyncAll(ctx)
	if err != nil {
		return synced, seeding.Result{}, err
	}
	if userID == "" {
		userID = a.Config.Seeding.SeedUserID
	}
	if userID == "" {
		return synced, seeding.Result{}, nil
	}
	seeded, err := a.Seeder.SeedForUser(ctx, userID)
	return synced, seeded, err
}

// Handler builds the HTTP handler: health checks plus the API under /api.
func (a *App) Handler() http.Handler {
	cfg := a.Config
	apiRouter := api.NewRouter(a.Skills, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		UserHeader:  cfg.Auth.UserHeader,
	}, a.Broker, a.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := a.DB.ListSkills(req.Context(), store.ListFilter{Limit: 1}); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)
	return r
}

// Run starts the HTTP server with the given options and blocks until a
// shutdown signal or context cancellation.
func Run(ctx context.Context, opts ...Option) error {
	a, err := New(ctx, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Config
	logger := a.Logger

	if a.Seeder != nil {
		if _, _, err := a.Seed(ctx, ""); err != nil {
			logger.Warn("initial seeding failed", slog.String("error", err.Error()))
		}
	}

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: a.Handler(),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if a.Seeder != nil && cfg.Seeding.Watch {
		g.Go(func() error {
			if err := a.Seeder.WatchAndSync(gCtx, cfg.Seeding.TemplatesDir, cfg.Seeding.SeedUserID); err != nil {
				logger.Error("template watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// open SSE streams hold Shutdown until the broker closes them
		a.Broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
