package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"earnzy/internal/auth"
	"earnzy/internal/cache"
	"earnzy/internal/config"
	"earnzy/internal/dashboard"
	"earnzy/internal/httpserver"
	"earnzy/internal/localstore"
	"earnzy/internal/logging"
	"earnzy/internal/metrics"
	"earnzy/internal/realtime"
	"earnzy/internal/repo"
	"earnzy/internal/supa"
	"earnzy/internal/tasks"
	"earnzy/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.AppEnv)
	logger.Info("starting earnzy", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	repository, err := repo.New(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer repository.Close()

	if err := repository.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated")

	store, err := localstore.Open(ctx, cfg.SessionStorePath, migrations.Files, logger)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer store.Close()

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed", "error", err)
	}

	supaClient := supa.New(supa.Config{
		BaseURL: cfg.SupabaseURL,
		AnonKey: cfg.SupabaseAnonKey,
		Timeout: cfg.SupabaseTimeout,
	}, logger, metricRegistry)

	listener := realtime.NewListener(cfg.DatabaseURL, logger, metricRegistry)

	router := httpserver.NewRouter()

	authController := auth.New(repository, supaClient, store, router, cfg.OAuthRedirect, logger, metricRegistry)
	dashboardController := dashboard.New(repository, store, authController, listener, router, logger, metricRegistry)
	defer dashboardController.Close()
	taskController := tasks.New(repository, store, authController, supaClient, redisClient, tasks.Config{
		ProofBucket:  cfg.ProofBucket,
		TaskCacheTTL: cfg.TaskCacheTTL,
	}, logger, metricRegistry)

	webhookHandler := supa.NewWebhookHandler(logger, metricRegistry, cfg.WebhookSecret, realtime.NewBridge(listener))

	listenerCtx, cancelListener := context.WithCancel(ctx)
	defer cancelListener()
	go func() {
		if err := listener.Run(listenerCtx); err != nil {
			logger.Error("realtime listener stopped", "error", err)
			stop()
		}
	}()

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry, httpserver.Handlers{
		Auth:      authController,
		Dashboard: dashboardController,
		Tasks:     taskController,
		Webhook:   webhookHandler,
		Router:    router,
	}, cfg.PublicBasePath)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
