package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/averith/go-shop-backend/internal/cart"
	"github.com/averith/go-shop-backend/internal/catalog"
	"github.com/averith/go-shop-backend/internal/config"
	"github.com/averith/go-shop-backend/internal/httpx"
	kafkax "github.com/averith/go-shop-backend/internal/kafka"
	"github.com/averith/go-shop-backend/internal/logger"
	"github.com/averith/go-shop-backend/internal/orders"
	"github.com/averith/go-shop-backend/internal/postgres"
	"github.com/averith/go-shop-backend/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.ServiceName)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		logger.Log.Fatal("migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	pPlaced.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStatusChanged, 1024)
	pStatus.Start(ctx)
	pReturn := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderReturned, 1024)
	pReturn.Start(ctx)

	svc := &orders.Service{Store: &orders.PgStore{DB: db}}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Svc:            svc,
		ProducerPlaced: pPlaced,
		ProducerStatus: pStatus,
		ProducerReturn: pReturn,
		Redis:          rdb,
		Service:        cfg.ServiceName,
	}
	oh.Register(router)
	(&httpx.CartHandler{Repo: &cart.Repo{DB: db}}).Register(router)
	(&httpx.CatalogHandler{Repo: &catalog.Repo{DB: db}}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	for _, p := range []*kafkax.Producer{pPlaced, pStatus, pReturn} {
		p.Close() // stop intake, flush queued
	}
	cancel()
	for _, p := range []*kafkax.Producer{pPlaced, pStatus, pReturn} {
		p.WaitClosed()
	}
}
