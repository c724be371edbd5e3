package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Yasser1728/tec/internal/config"
	kafkax "github.com/Yasser1728/tec/internal/kafka"
	"github.com/Yasser1728/tec/internal/notify"
	"github.com/Yasser1728/tec/internal/orders"
	"github.com/Yasser1728/tec/internal/postgres"
	"github.com/Yasser1728/tec/internal/sweeper"
)

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

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 256)
	prod.Start(ctx)

	notifier := &notify.Service{DB: db, Producer: prod, Name: cfg.ServiceName + "-sweeper"}

	// Sweep path never talks to the gateway: hanya PENDING yang dibatalkan.
	svc := &orders.Service{
		Store:    &orders.Repo{DB: db},
		Notifier: notifier,
		Events:   prod,
		Name:     cfg.ServiceName + "-sweeper",
		Settings: orders.Settings{
			GatewayTimeout: cfg.GatewayTimeout,
			EscrowPeriod:   cfg.EscrowPeriod,
			AppFeeRate:     cfg.AppFeeRate,
			ExpireAfter:    cfg.OrderExpiration,
		},
	}

	sw := &sweeper.Sweeper{Orders: svc, Interval: cfg.SweepInterval}
	go func() {
		log.Printf("sweeper started: interval=%s window=%s", cfg.SweepInterval, cfg.OrderExpiration)
		sw.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down sweeper...")
	prod.Close()
	prod.WaitClosed()
	cancel()
}
