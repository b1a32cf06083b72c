package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/Sairishwanth89/medfirst/internal/config"
	"github.com/Sairishwanth89/medfirst/pkg/auth"
	"github.com/Sairishwanth89/medfirst/pkg/db"
	"github.com/Sairishwanth89/medfirst/pkg/logging"
	"github.com/Sairishwanth89/medfirst/pkg/metrics"
	"github.com/Sairishwanth89/medfirst/pkg/outbox"
	"github.com/Sairishwanth89/medfirst/pkg/shutdown"
	"github.com/Sairishwanth89/medfirst/pkg/tracing"

	catalogapp "github.com/Sairishwanth89/medfirst/internal/catalog/application"
	catalogpg "github.com/Sairishwanth89/medfirst/internal/catalog/infrastructure/postgres"
	"github.com/Sairishwanth89/medfirst/internal/order/application"
	orderhttp "github.com/Sairishwanth89/medfirst/internal/order/infrastructure/http"
	orderkafka "github.com/Sairishwanth89/medfirst/internal/order/infrastructure/kafka"
	orderpg "github.com/Sairishwanth89/medfirst/internal/order/infrastructure/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "medfirst-api", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	if err := db.Migrate(cfg.PostgresURL, cfg.MigrationsPath); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	pool, err := db.NewPool(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	writer := orderkafka.NewWriter([]string{cfg.KafkaAddr})
	defer writer.Close()

	m := metrics.New()

	catalogRepo := catalogpg.NewRepository(log, pool)
	catalogSvc := catalogapp.NewService(log, catalogRepo)

	orderRepo := orderpg.NewRepository(log, pool)
	orderSvc := application.NewService(log, orderRepo, catalogRepo)

	outboxStore := orderpg.NewOutboxStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OrderTopic)
	relay := outbox.NewRelay(log, outboxStore, dispatch, "medfirst-api-relay")

	reconciler := application.NewReconciler(log, orderRepo,
		cfg.ReconcileInterval, cfg.ReconcileStuckAfter, m.EventsReconciled)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	handler := orderhttp.NewHandler(log, orderSvc, catalogSvc, verifier, m)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()
	go func() {
		if err := reconciler.Run(ctx); err != nil {
			log.Error("reconciler stopped with error", "err", err)
		}
	}()
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("api shutdown complete")
}
