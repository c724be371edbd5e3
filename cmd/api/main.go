package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Yasser1728/tec/internal/config"
	"github.com/Yasser1728/tec/internal/growth"
	"github.com/Yasser1728/tec/internal/httpx"
	kafkax "github.com/Yasser1728/tec/internal/kafka"
	"github.com/Yasser1728/tec/internal/notify"
	"github.com/Yasser1728/tec/internal/orders"
	"github.com/Yasser1728/tec/internal/payment"
	"github.com/Yasser1728/tec/internal/postgres"
	"github.com/Yasser1728/tec/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (semua topic lewat satu writer)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	// Collaborators
	gateway := payment.NewPiClient(cfg.PiAPIBaseURL, cfg.PiAPIKey, cfg.GatewayTimeout)
	loyalty := &growth.Service{DB: db, Cfg: growth.Settings{
		PointsPerPi:      cfg.PointsPerPi,
		ReferrerPoints:   cfg.ReferralReferrerPoints,
		RefereePoints:    cfg.ReferralRefereePoints,
		PointsExpiryDays: cfg.PointsExpiryDays,
	}}
	notifier := &notify.Service{DB: db, Producer: prod, Name: cfg.ServiceName}

	// Order state machine
	svc := &orders.Service{
		Store:    &orders.Repo{DB: db},
		Gateway:  gateway,
		Loyalty:  loyalty,
		Notifier: notifier,
		Events:   prod,
		Name:     cfg.ServiceName,
		Settings: orders.Settings{
			GatewayTimeout: cfg.GatewayTimeout,
			EscrowPeriod:   cfg.EscrowPeriod,
			AppFeeRate:     cfg.AppFeeRate,
			ExpireAfter:    cfg.OrderExpiration,
		},
	}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Orders: svc, Redis: rdb}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush & close writer
	prod.WaitClosed()
	cancel()
}
