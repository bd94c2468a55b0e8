package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bartab-service/internal/config"
	"bartab-service/internal/httpx"
	kafkax "bartab-service/internal/kafka"
	"bartab-service/internal/logger"
	"bartab-service/internal/ordering"
	"bartab-service/internal/outbox"
	"bartab-service/internal/postgres"
	"bartab-service/internal/redisx"
	"bartab-service/internal/session"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (sync; the outbox worker needs acks)
	prod := kafkax.NewProducer(cfg.KafkaBrokers)
	defer prod.Close()

	// Repos & stores
	ob := &outbox.Store{DB: db}
	repo := &ordering.Repo{DB: db, Outbox: ob, Service: cfg.ServiceName}
	groups := &ordering.GroupRepo{DB: db, GroupTTL: cfg.GroupTTL}
	store := &session.Store{RDB: rdb, SessionTTL: cfg.SessionTTL}

	// Outbox relay
	worker := &outbox.Worker{
		Source: ob,
		Publish: func(ctx context.Context, topic string, key, value []byte) error {
			return prod.Publish(ctx, topic, key, value)
		},
		Logger: log,
	}
	go worker.Run(ctx)

	// Router & handlers
	router := httpx.NewRouter(cfg.AllowedOrigins)
	oh := &httpx.OrdersHandler{Catalog: repo, Repo: repo, Store: store, Logger: log}
	oh.Register(router)
	gh := &httpx.GroupsHandler{Groups: groups, Store: store, Logger: log}
	gh.Register(router)
	ph := &httpx.PaymentsHandler{Store: store, Repo: repo, Logger: log}
	ph.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel() // stop outbox worker
}
