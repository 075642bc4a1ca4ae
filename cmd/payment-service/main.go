package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	commapp "github.com/dmehra2102/payment-engine/internal/commission/application"
	commdomain "github.com/dmehra2102/payment-engine/internal/commission/domain"
	"github.com/dmehra2102/payment-engine/internal/config"
	"github.com/dmehra2102/payment-engine/internal/payment/application"
	"github.com/dmehra2102/payment-engine/internal/payment/infrastructure/gateway"
	paymentgrpc "github.com/dmehra2102/payment-engine/internal/payment/infrastructure/grpc"
	paymenthttp "github.com/dmehra2102/payment-engine/internal/payment/infrastructure/http"
	paymentkafka "github.com/dmehra2102/payment-engine/internal/payment/infrastructure/kafka"
	pg "github.com/dmehra2102/payment-engine/internal/payment/infrastructure/postgres"
	reconapp "github.com/dmehra2102/payment-engine/internal/reconciliation/application"
	"github.com/dmehra2102/payment-engine/pkg/idempotency"
	"github.com/dmehra2102/payment-engine/pkg/logging"
	"github.com/dmehra2102/payment-engine/pkg/outbox"
	"github.com/dmehra2102/payment-engine/pkg/shutdown"
	"github.com/dmehra2102/payment-engine/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	tp, err := tracing.Init(ctx, "payment-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	if err := pg.Migrate(log, cfg.PGURL); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisDB.Close()
	idem := idempotency.NewStore(redisDB, cfg.IdempotencyTTL)

	calc, err := commdomain.NewCalculator(cfg.Rate)
	if err != nil {
		log.Error("commission rate rejected", "err", err)
		os.Exit(1)
	}

	repo := pg.NewRepository(log, pool)
	engine := commapp.NewEngine(log, calc, repo, repo)
	gw := gateway.NewSandbox(cfg.GatewaySecret).WithOrderSource(repo)
	svc := application.NewService(log, repo, gw, repo, engine, cfg.Currency)

	// Outbox relay for payment events
	writer := paymentkafka.NewWriter(cfg.KafkaAddr)
	defer writer.Close()
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutTopic)
	relay := outbox.NewRelay(log, pg.NewOutboxStore(log, pool), dispatch, "payment-service-relay")
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped", "err", err)
		}
	}()

	consumer := paymentkafka.NewConsumer(log, cfg.KafkaAddr, cfg.InTopic, "payment-service", svc, idem)
	go func() {
		// Handler failures are retried inside Run; only a broken reader gets here.
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer reader failed", "err", err)
			cancel()
		}
	}()

	sweeper := reconapp.NewSweeper(log, repo, engine)
	go func() {
		_ = sweeper.Run(ctx, cfg.ReconcileInterval)
	}()

	health := paymentgrpc.NewServer(log,
		func(ctx context.Context) error { return pool.Ping(ctx) },
		func(ctx context.Context) error { return redisDB.Ping(ctx).Err() },
	)
	gs, err := paymentgrpc.Run(cfg.GRPCAddr, health)
	if err != nil {
		log.Error("grpc listen failed", "err", err)
		os.Exit(1)
	}
	go health.Watch(ctx, 10*time.Second)

	auth := paymenthttp.NewAuthenticator(cfg.JWTSecret)
	handler := paymenthttp.NewHandler(log, svc, engine, auth, idem.Middleware(paymenthttp.Scope))

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	gs.GracefulStop()
	log.Info("payment-service shutdown complete")
}
