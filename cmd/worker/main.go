package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	settlementconsumer "github.com/verdana-market/verdana-backend/internal/consumers/settlement"
	"github.com/verdana-market/verdana-backend/internal/groups"
	"github.com/verdana-market/verdana-backend/internal/progression"
	"github.com/verdana-market/verdana-backend/internal/settlement"
	"github.com/verdana-market/verdana-backend/pkg/config"
	"github.com/verdana-market/verdana-backend/pkg/db"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/migrate"
	"github.com/verdana-market/verdana-backend/pkg/outbox"
	"github.com/verdana-market/verdana-backend/pkg/outbox/idempotency"
	"github.com/verdana-market/verdana-backend/pkg/pubsub"
	"github.com/verdana-market/verdana-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	gdb := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)

	groupRepo := groups.NewRepository(gdb)
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

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	consumer, err := settlementconsumer.NewConsumer(
		pubsubClient.SettlementSubscription(),
		dispatcher,
		manager,
		logg,
		nil,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:             cfg,
		Logger:             logg,
		DB:                 dbClient,
		Redis:              redisClient,
		PubSub:             pubsubClient,
		SettlementConsumer: consumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
	})
	logg.Info(ctx, "starting settlement worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
