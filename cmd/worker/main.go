package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Yasser1728/tec/internal/config"
	kafkax "github.com/Yasser1728/tec/internal/kafka"
	"github.com/Yasser1728/tec/internal/notify"
	"github.com/Yasser1728/tec/internal/orders"
	"github.com/Yasser1728/tec/internal/postgres"
	"github.com/Yasser1728/tec/internal/redisx"
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

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	disp := &notify.Dispatcher{
		Store:       &notify.Service{DB: db, Name: cfg.ServiceName + "-worker"},
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-worker",
	}

	group := getenv("NOTIFY_GROUP", "notify-worker")
	workers := mustAtoi(os.Getenv("NOTIFY_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicNotifyDispatch, workers)

	go func() {
		log.Printf("notify consumer started: group=%s topic=%s workers=%d", group, orders.TopicNotifyDispatch, workers)
		if err := cons.Start(ctx, disp.Handle); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down worker...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
