package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"bartab-service/internal/config"
	kafkax "bartab-service/internal/kafka"
	"bartab-service/internal/logger"
	"bartab-service/internal/notifier"
	"bartab-service/internal/ordering"
	"bartab-service/internal/redisx"
	"bartab-service/internal/session"
	"bartab-service/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

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

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	store := &session.Store{RDB: rdb}
	hub := ws.NewHub(log)

	svc := &notifier.Service{
		Dedup:  &notifier.RedisDeduper{RDB: rdb, Service: "notifier"},
		Sink:   store,
		Hub:    hub,
		Logger: log,
	}

	// Consumers: created & paid (two topics, one group)
	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	created := kafkax.NewConsumer(cfg.KafkaBrokers, group, ordering.TopicOrderCreated, workers, log)
	paid := kafkax.NewConsumer(cfg.KafkaBrokers, group, ordering.TopicOrderPaid, workers, log)
	substituted := kafkax.NewConsumer(cfg.KafkaBrokers, group, ordering.TopicOrderSubstituted, workers, log)

	go func() {
		log.Info("order.created consumer started", zap.String("group", group), zap.Int("workers", workers))
		if err := created.Start(ctx, svc.HandleOrderCreated); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		log.Info("order.paid consumer started", zap.String("group", group), zap.Int("workers", workers))
		if err := paid.Start(ctx, svc.HandleOrderPaid); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		log.Info("order.substituted consumer started", zap.String("group", group), zap.Int("workers", workers))
		if err := substituted.Start(ctx, svc.HandleOrderSubstituted); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// Display websocket endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/ws/kitchen", hub.Handler(ordering.ActionKitchen, store.Notifications))
	mux.Handle("/ws/bar", hub.Handler(ordering.ActionBar, store.Notifications))

	srv := &http.Server{Addr: cfg.NotifierAddr, Handler: mux}
	go func() {
		log.Info("notifier listening", zap.String("addr", cfg.NotifierAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down notifier")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
