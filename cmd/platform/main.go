package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authmodule "github.com/civicgrid/platform/internal/auth"
	"github.com/civicgrid/platform/internal/classifier"
	"github.com/civicgrid/platform/internal/department"
	reportapi "github.com/civicgrid/platform/internal/report/api"
	"github.com/civicgrid/platform/internal/report/domain"
	"github.com/civicgrid/platform/internal/report/infrastructure"
	sharedauth "github.com/civicgrid/platform/internal/shared/auth"
	"github.com/civicgrid/platform/internal/shared/cache"
	"github.com/civicgrid/platform/internal/shared/config"
	"github.com/civicgrid/platform/internal/shared/database"
	"github.com/civicgrid/platform/internal/shared/events"
	"github.com/civicgrid/platform/internal/shared/logging"
	"github.com/civicgrid/platform/internal/shared/metrics"
	secmiddleware "github.com/civicgrid/platform/internal/shared/middleware"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Cache  *cache.Cache
	Bus    *events.Bus
	Logger *zap.Logger
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("database not available", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool, logger.Named("migrate")); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Redis is optional: the department resolver falls through to the
	// database when the cache is absent.
	resolverCache, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis not available, resolver cache disabled", zap.Error(err))
		resolverCache = nil
	}
	defer resolverCache.Close()

	bus := events.NewBus(logger)
	bus.SubscribeAll(events.NewAuditSubscriber(logger.Named("audit")))

	app := &App{Config: cfg, DB: db, Cache: resolverCache, Bus: bus, Logger: logger}

	// Department module
	deptRepo := department.NewRepository(db.Pool)
	deptResolver := department.NewResolver(deptRepo, resolverCache)
	deptHandler := department.NewHandler(deptRepo, deptResolver)

	// Report module
	engine := domain.NewEngine(deptResolver)
	classifierSvc := classifier.NewService(cfg.Classifier, deptResolver, logger.Named("classifier"))
	reportRepo := infrastructure.NewPostgresRepository(db.Pool)
	reportHandler := reportapi.NewHandler(reportRepo, engine, classifierSvc, bus, logger.Named("report"))

	// Auth module
	userRepo := authmodule.NewRepository(db.Pool)
	tokens := authmodule.NewTokenService(cfg.Auth)
	verifier := authmodule.NewCredentialVerifier(userRepo)
	authHandler := authmodule.NewHandler(userRepo, tokens, verifier, deptResolver, reportRepo, logger.Named("auth"))

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.CORS)
	r.Use(secmiddleware.BodyLimit)
	r.Use(secmiddleware.RequestLogger(logger.Named("http")))
	r.Use(metrics.Middleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Credential endpoints sit behind a per-IP limiter.
		authLimiter := secmiddleware.NewIPRateLimiter(5, 10)
		r.With(authLimiter.Middleware).Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(sharedauth.Middleware(tokens))

			r.Mount("/reports", reportHandler.Routes())
			r.Mount("/departments", deptHandler.Routes())
			r.Mount("/users", authHandler.ProfileRoutes())
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		close(done)
	}()

	logger.Info("civicgrid platform started",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("classifier_enabled", cfg.Classifier.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	<-done
	logger.Info("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "CivicGrid Issue Reporting Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}
		ready := true

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
			ready = false
		} else {
			checks["database"] = "ready"
		}

		if app.Cache != nil {
			if err := app.Cache.Health(r.Context()); err != nil {
				checks["redis"] = "not ready: " + err.Error()
			} else {
				checks["redis"] = "ready"
			}
		} else {
			checks["redis"] = "not configured"
		}

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(checks)
	}
}
