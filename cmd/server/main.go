package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/classify"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/connection"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/history"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/httpserver"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/metrics"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/platform/config"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/platform/logging"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/postgres"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/router"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/tenant"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/version"
)

func main() {
	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	build := version.Get()
	slog.Info("Starting realtime service",
		"version", build.Version,
		"commit", build.Commit,
		"go_version", build.GoVersion,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := setupDB(cfg)
	defer db.Close()

	rdb := setupRedis(ctx, cfg)
	defer func() { _ = rdb.Close() }()

	tenantRepo := postgres.NewTenantConfigRepo(db)
	resolver := tenant.NewResolver(tenantRepo)
	invalidator := tenant.NewInvalidator(resolver, rdb)

	invalidationSub := tenant.NewInvalidationSubscriber(rdb, resolver)
	go invalidationSub.Start(ctx)

	agg := metrics.NewAggregator()
	rtr := router.New(history.NewPublisher(rdb))
	hook := classify.NewHook(newAnnotator(cfg), cfg.ClassifierTimeout)

	manager := connection.NewManager(connection.ManagerConfig{
		Dialer:         &connection.WebsocketDialer{BaseURL: cfg.UpstreamWSURL},
		Hook:           hook,
		Router:         rtr,
		Aggregator:     agg,
		Resolver:       resolver,
		MaxConnections: cfg.MaxConnections,
		ConnectRate:    cfg.ConnectRatePerTenant,
		ConnectBurst:   cfg.ConnectBurstPerTenant,
	})

	checks := []httpserver.HealthCheck{
		{Name: "postgres", Check: func(ctx context.Context) error { return db.Ping(ctx) }},
		{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}

	srv := httpserver.NewServer(manager, tenantRepo, invalidator, checks)

	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(cfg, srv, manager)
}

func waitForShutdown(cfg *config.Config, srv *httpserver.Server, manager *connection.Manager) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	slog.Info("Shutdown signal received, cleaning up...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		slog.Error("Connection teardown error", "error", err)
	}
	slog.Info("Shutdown complete")
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not initialized yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		slog.Error("Failed to ensure schema", "error", err)
		os.Exit(1)
	}
	return db
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		os.Exit(1)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// newAnnotator selects the annotator implementation. Without a configured
// URL there is no annotator and classification passes messages through
// untouched.
func newAnnotator(cfg *config.Config) classify.Annotator {
	if cfg.AnnotatorURL == "" {
		return nil
	}
	return classify.NewHTTPAnnotator(cfg.AnnotatorURL, nil)
}
