package main

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/Sairishwanth89/medfirst/internal/config"
	fulfillment "github.com/Sairishwanth89/medfirst/internal/fulfillment/application"
	workerkafka "github.com/Sairishwanth89/medfirst/internal/fulfillment/infrastructure/kafka"
	orderpg "github.com/Sairishwanth89/medfirst/internal/order/infrastructure/postgres"
	"github.com/Sairishwanth89/medfirst/pkg/db"
	"github.com/Sairishwanth89/medfirst/pkg/idempotency"
	"github.com/Sairishwanth89/medfirst/pkg/logging"
	"github.com/Sairishwanth89/medfirst/pkg/metrics"
	"github.com/Sairishwanth89/medfirst/pkg/shutdown"
	"github.com/Sairishwanth89/medfirst/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "medfirst-fulfillment-worker", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	pool, err := db.NewPool(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis ping failed", "err", err)
		os.Exit(1)
	}

	reader := workerkafka.NewReader([]string{cfg.KafkaAddr}, cfg.OrderTopic, "fulfillment-worker")
	defer reader.Close()

	m := metrics.New()

	repo := orderpg.NewRepository(log, pool)
	processor := fulfillment.NewProcessor(log, repo, cfg.PackagingDelay)
	deduper := idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	consumer := workerkafka.NewConsumer(log, reader, processor, deduper, m.WorkerProcessed, m.WorkerSkipped)

	log.Info("fulfillment worker starting", "topic", cfg.OrderTopic)
	if err := consumer.Run(ctx); err != nil {
		log.Error("consumer stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("fulfillment worker shutdown complete")
}
