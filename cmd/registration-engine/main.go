package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wellbeing-foundation/registration-engine/internal/api"
	"github.com/wellbeing-foundation/registration-engine/internal/catalog"
	"github.com/wellbeing-foundation/registration-engine/internal/cleanup"
	"github.com/wellbeing-foundation/registration-engine/internal/config"
	"github.com/wellbeing-foundation/registration-engine/internal/i18n"
	"github.com/wellbeing-foundation/registration-engine/internal/queue"
	"github.com/wellbeing-foundation/registration-engine/internal/questionnaire"
	"github.com/wellbeing-foundation/registration-engine/internal/registration"
	"github.com/wellbeing-foundation/registration-engine/internal/storage"
	"github.com/wellbeing-foundation/registration-engine/pkg/client"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting registration-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"upstream", cfg.Upstream.BaseURL,
	)

	settings, err := config.LoadQuestionnaireSettings(cfg.Questionnaire.SettingsPath)
	if err != nil {
		slog.Error("failed to load questionnaire settings", "error", err)
		os.Exit(1)
	}

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	upstream := client.NewClient(cfg.Upstream.BaseURL,
		client.WithAPIKey(cfg.Upstream.APIKey),
		client.WithTimeout(cfg.Upstream.Timeout),
	)

	ready := make(map[string]api.Pinger)
	loaderOpts := []catalog.LoaderOption{catalog.WithLogger(logger)}
	flowOpts := []registration.Option{
		registration.WithLogger(logger),
		registration.WithEnrollmentsPath(cfg.Registration.EnrollmentsPath),
		registration.WithSentinels(questionnaire.NewSentinels(settings.UnansweredSentinels)),
	}

	// Profile cache (optional)
	var cache *catalog.RedisCache
	if cfg.Redis.Address != "" {
		cache, err = catalog.NewRedisCache(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		loaderOpts = append(loaderOpts, catalog.WithProfileCache(cache, cfg.Redis.ProfileCacheTTL))
		ready["redis"] = cache
		slog.Info("profile cache enabled", "address", cfg.Redis.Address, "ttl", cfg.Redis.ProfileCacheTTL)
	}

	// Outcome ledger (optional)
	var ledger storage.Repository
	if cfg.Database.DSN != "" {
		repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: int32(cfg.Database.MaxOpenConns),
			MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		})
		if err != nil {
			slog.Error("failed to create database repository", "error", err)
			os.Exit(1)
		}
		ledger = repo
		flowOpts = append(flowOpts, registration.WithRecorder(repo))
		ready["postgres"] = repo
		slog.Info("database connected successfully")
	}

	// Enrollment notifications (optional)
	if cfg.AMQP.URL != "" {
		flowOpts = append(flowOpts, registration.WithPublisher(queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger)))
		slog.Info("enrollment publishing enabled", "queue", cfg.AMQP.Queue)
	}

	flows := registration.NewRegistry(logger, flowOpts...)

	// Initialize cleanup worker
	cleaner := cleanup.NewCleaner(flows, cfg.Cleanup.Interval, cfg.Registration.IdleTTL)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, api.Deps{
		Loader:     catalog.NewLoader(upstream, loaderOpts...),
		Upstream:   upstream,
		Flows:      flows,
		Ledger:     ledger,
		Translator: i18n.NewTranslator(cfg.I18n.DefaultLocale),
		Identity:   api.NewIdentityMiddleware(cfg.Auth.JWTSecret),
		Ready:      ready,
	})

	// No write timeout: registration streams are long-lived
	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Open flows hold questionnaire state only; drop them
	flows.Sweep(time.Now().Add(time.Hour))

	if ledger != nil {
		if err := ledger.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}
	if cache != nil {
		if err := cache.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}

	slog.Info("registration-engine stopped")
}
