package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cristianortiz/harvestAuction/internal/auction/application"
	"github.com/cristianortiz/harvestAuction/internal/auction/infra/repository/postgres"
	auctionws "github.com/cristianortiz/harvestAuction/internal/auction/infra/websocket"
	"github.com/cristianortiz/harvestAuction/internal/auction/scheduler"
	bidderpg "github.com/cristianortiz/harvestAuction/internal/bidder/infra/repository/postgres"
	"github.com/cristianortiz/harvestAuction/internal/shared/config"
	"github.com/cristianortiz/harvestAuction/internal/shared/db"
	"github.com/cristianortiz/harvestAuction/internal/shared/db/migrations"
	"github.com/cristianortiz/harvestAuction/internal/shared/eventbus"
	"github.com/cristianortiz/harvestAuction/internal/shared/httpserver"
	"github.com/cristianortiz/harvestAuction/internal/shared/logger"
	sharedws "github.com/cristianortiz/harvestAuction/internal/shared/websocket"
	"go.uber.org/zap"
)

func main() {
	log := logger.GetLogger()
	defer func() { _ = log.Sync() }()

	log.Info("Starting harvest auction engine")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := migrations.Run(cfg.PostgresDSN()); err != nil {
		log.Fatal("Database migration failed", zap.Error(err))
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	defer pool.Close()

	store := postgres.NewLedgerStore(pool)
	bidders := bidderpg.NewBidderRepository(pool)

	var bus eventbus.Bus
	if cfg.RedisAddr != "" {
		redisBus, err := eventbus.NewRedisBus(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal("Redis event bus setup failed", zap.Error(err))
		}
		defer redisBus.Close()
		bus = redisBus
		log.Info("Event bus: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		bus = eventbus.NewInProcBus()
		log.Info("Event bus: in-process")
	}

	sched := scheduler.New(store, scheduler.Options{
		RetryBase:  cfg.CloseRetryBase,
		RetryMax:   cfg.CloseRetryMax,
		MaxRetries: cfg.CloseRetries,
	})
	svc := application.NewAuctionService(store, bidders, bus, sched)
	sched.Attach(svc)

	if err := sched.Start(ctx); err != nil {
		log.Fatal("Deadline scheduler failed to start", zap.Error(err))
	}
	defer sched.Stop()

	hub := sharedws.NewHub()
	go hub.Run(ctx)

	wsHandler := auctionws.NewAuctionWSHandler(svc, hub, bus)
	if err := wsHandler.BridgeEvents(ctx); err != nil {
		log.Fatal("Event bridge failed to start", zap.Error(err))
	}
	go wsHandler.ListenForMessages(ctx)

	server := httpserver.NewServer()
	auctionws.RegisterRoutes(ctx, server.App(), hub, wsHandler)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		cancel()
		_ = server.Shutdown()
	}()

	if err := server.Start(cfg.HTTPAddr); err != nil {
		log.Fatal("HTTP server failed", zap.Error(err))
	}
}
