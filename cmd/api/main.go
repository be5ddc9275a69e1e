package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/verdana-market/verdana-backend/api/routes"
	"github.com/verdana-market/verdana-backend/internal/cart"
	"github.com/verdana-market/verdana-backend/internal/groups"
	"github.com/verdana-market/verdana-backend/internal/products"
	"github.com/verdana-market/verdana-backend/internal/progression"
	"github.com/verdana-market/verdana-backend/internal/settlement"
	"github.com/verdana-market/verdana-backend/internal/users"
	"github.com/verdana-market/verdana-backend/pkg/config"
	"github.com/verdana-market/verdana-backend/pkg/db"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/metrics"
	"github.com/verdana-market/verdana-backend/pkg/migrate"
	"github.com/verdana-market/verdana-backend/pkg/outbox"
	"github.com/verdana-market/verdana-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gdb := dbClient.DB()
	registry := prometheus.NewRegistry()
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	outboxRepo := outbox.NewRepository(gdb)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	productRepo := products.NewRepository(gdb)
	productService, err := products.NewService(productRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	groupRepo := groups.NewRepository(gdb)
	groupService, err := groups.NewService(groupRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create group service", err)
		os.Exit(1)
	}
	propagator, err := groups.NewPropagator(groupRepo, dbClient, outboxSvc, logg, cfg.Rewards.ContributionShareBps)
	if err != nil {
		logg.Error(context.Background(), "failed to create group propagator", err)
		os.Exit(1)
	}

	progressionService, err := progression.NewService(progression.NewRepository(gdb), dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create progression service", err)
		os.Exit(1)
	}

	dispatcher, err := settlement.NewDispatcher(progressionService, propagator, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement dispatcher", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(gdb)
	settlementService, err := settlement.NewService(
		settlement.NewRepository(gdb),
		productRepo,
		cartRepo,
		dbClient,
		outboxSvc,
		dispatcher,
		cfg.Settlement,
		logg,
		settlementMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:            cfg,
			Logger:            logg,
			DBPinger:          dbClient,
			RedisPinger:       redisClient,
			SettlementService: settlementService,
			ProductService:    productService,
			GroupService:      groupService,
			UserRepo:          users.NewRepository(gdb),
			CartRepo:          cartRepo,
			ProductRepo:       productRepo,
			OutboxRepo:        outboxRepo,
			SettlementMetrics: settlementMetrics,
			MetricsRegistry:   registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
